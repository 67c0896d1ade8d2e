package troupe

import (
	"log"
	"sync"
	"sync/atomic"

	"gitlab.com/gomidi/midi/v2"
)

// requestChanCap is the capacity of every actor inbox. Large enough that a
// full channel means something is badly stuck, not momentarily busy.
const requestChanCap = 1024

// EntityActor wraps one Entity behind a dedicated worker goroutine. All
// interaction with the wrapped entity goes through requests; the effects of
// a request are observed through the actor's audio, MIDI and control
// subscriptions, never through a return value.
type EntityActor struct {
	uid      Uid
	requests chan any
	// controls receives control actions from linked source entities.
	controls chan ControlAction

	// mu guards entity for Peek. The worker is the sole writer; Peek is for
	// inspection off the generation path.
	mu     sync.Mutex
	entity Entity

	soundActive atomic.Bool
}

// NewEntityActor wraps entity and starts its worker. The entity's Uid must
// already be assigned.
func NewEntityActor(entity Entity) *EntityActor {
	a := &EntityActor{
		uid:      entity.Uid(),
		requests: make(chan any, requestChanCap),
		controls: make(chan ControlAction, requestChanCap),
		entity:   entity,
	}
	go a.run()
	return a
}

func (a *EntityActor) Uid() Uid { return a.uid }

// Send enqueues a request without blocking. A full inbox drops the request
// with a log line; by then the pipeline is already broken in a way one more
// message cannot fix.
func (a *EntityActor) Send(msg any) {
	if !TrySend(a.requests, msg) {
		log.Printf("entity %v: dropping request %T, inbox full", a.uid, msg)
	}
}

// Requests exposes the request inbox for subscription registries.
func (a *EntityActor) Requests() chan<- any { return a.requests }

// ControlInbox is the channel other actors subscribe to this entity's
// control links through.
func (a *EntityActor) ControlInbox() chan<- ControlAction { return a.controls }

// SoundActive reports whether the entity's latest generate or transform call
// produced non-silent output. Purely informational, for activity displays.
func (a *EntityActor) SoundActive() bool { return a.soundActive.Load() }

// Peek runs f with the wrapped entity under the actor's lock. Must not be
// called from the generation path; intended for state inspection only.
func (a *EntityActor) Peek(f func(Entity)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	f(a.entity)
}

func (a *EntityActor) run() {
	var (
		audioSub   Subscription[AudioAction]
		midiSub    Subscription[MidiAction]
		controlSub Subscription[ControlAction]
		// linkedIndexes maps a linked source entity to the parameter indexes
		// its control actions are applied to.
		linkedIndexes = make(map[Uid][]ControlIndex)
		buffer        GenerationBuffer
	)

	for {
		select {
		case msg := <-a.requests:
			switch m := msg.(type) {
			case MidiMsg:
				a.handleMidi(m.Channel, m.Message, &midiSub)
			case ControlMsg:
				a.mu.Lock()
				a.entity.SetControl(m.Index, m.Value)
				a.mu.Unlock()
			case WorkMsg:
				a.handleWork(m.Range, &midiSub, &controlSub)
			case NeedsAudioMsg:
				a.handleNeedsAudio(m.Count, &buffer, &audioSub)
			case NeedsTransformationMsg:
				a.handleNeedsTransformation(m.Frames, &buffer, &audioSub)
			case SubscribeAudioMsg:
				audioSub.Subscribe(m.C)
			case UnsubscribeAudioMsg:
				audioSub.Unsubscribe(m.C)
			case SubscribeMidiMsg:
				midiSub.Subscribe(m.C)
			case UnsubscribeMidiMsg:
				midiSub.Unsubscribe(m.C)
			case SubscribeControlMsg:
				controlSub.Subscribe(m.C)
			case UnsubscribeControlMsg:
				controlSub.Unsubscribe(m.C)
			case ControlLinkAddMsg:
				linkedIndexes[m.Source] = append(linkedIndexes[m.Source], m.Index)
			case ControlLinkRemoveMsg:
				indexes := linkedIndexes[m.Source]
				for i, index := range indexes {
					if index == m.Index {
						linkedIndexes[m.Source] = append(indexes[:i], indexes[i+1:]...)
						break
					}
				}
			case QuitMsg:
				a.drainOnQuit(&audioSub)
				return
			}
		case action := <-a.controls:
			indexes, ok := linkedIndexes[action.SourceEntity]
			if !ok {
				continue
			}
			a.mu.Lock()
			for _, index := range indexes {
				a.entity.SetControl(index, action.Value)
			}
			a.mu.Unlock()
		}
	}
}

func (a *EntityActor) handleMidi(channel uint8, message midi.Message, midiSub *Subscription[MidiAction]) {
	handler, ok := a.entity.(MidiHandler)
	if !ok {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	handler.HandleMidi(channel, message, func(c uint8, m midi.Message) {
		midiSub.BroadcastPrune(MidiAction{SourceEntity: a.uid, Channel: c, Message: m})
	})
}

func (a *EntityActor) handleWork(r TimeRange, midiSub *Subscription[MidiAction], controlSub *Subscription[ControlAction]) {
	worker, ok := a.entity.(TimeWorker)
	if !ok {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	worker.Work(r,
		func(c uint8, m midi.Message) {
			midiSub.BroadcastPrune(MidiAction{SourceEntity: a.uid, Channel: c, Message: m})
		},
		func(v ControlValue) {
			controlSub.BroadcastPrune(ControlAction{SourceEntity: a.uid, Value: v})
		})
}

func (a *EntityActor) handleNeedsAudio(count int, buffer *GenerationBuffer, audioSub *Subscription[AudioAction]) {
	buffer.Resize(count)
	buffer.Clear()
	active := false
	if gen, ok := a.entity.(AudioGenerator); ok {
		a.mu.Lock()
		active = gen.Generate(buffer.Frames())
		a.mu.Unlock()
	}
	a.soundActive.Store(active)
	audioSub.BroadcastPrune(AudioAction{SourceEntity: a.uid, Frames: buffer.Clone()})
}

func (a *EntityActor) handleNeedsTransformation(frames []StereoSample, buffer *GenerationBuffer, audioSub *Subscription[AudioAction]) {
	assertBatchLen(frames)
	buffer.Copy(frames)
	if tr, ok := a.entity.(AudioTransformer); ok {
		a.mu.Lock()
		tr.Transform(buffer.Frames())
		a.mu.Unlock()
		a.soundActive.Store(anyAudible(buffer.Frames()))
	}
	audioSub.BroadcastPrune(AudioAction{SourceEntity: a.uid, Transformed: true, Frames: buffer.Clone()})
}

// drainOnQuit answers generation requests that are already queued behind the
// Quit with empty batches, so a track mid-cycle sees an implicit silent
// reply instead of stalling. Requests are FIFO per channel, so anything sent
// before the Quit has already been handled normally.
func (a *EntityActor) drainOnQuit(audioSub *Subscription[AudioAction]) {
	for {
		select {
		case msg := <-a.requests:
			switch msg.(type) {
			case NeedsAudioMsg:
				audioSub.BroadcastPrune(AudioAction{SourceEntity: a.uid})
			case NeedsTransformationMsg:
				audioSub.BroadcastPrune(AudioAction{SourceEntity: a.uid, Transformed: true})
			}
		default:
			return
		}
	}
}

func anyAudible(frames []StereoSample) bool {
	for _, f := range frames {
		if f != SilentSample {
			return true
		}
	}
	return false
}
