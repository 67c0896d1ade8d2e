package troupe

import (
	"fmt"
	"log"
	"sync"
)

type trackState int

const (
	// trackIdle means no generation cycle is in flight. Every cycle starts
	// and ends here.
	trackIdle trackState = iota
	// trackAwaitingSources means the track has asked its sources (send
	// tracks and instruments) for audio and is counting down their replies.
	trackAwaitingSources
	// trackAwaitingEffect means the sources are merged and the effect chain
	// is running, strictly one effect at a time.
	trackAwaitingEffect
)

// TrackActor owns a Track and runs its worker: a single goroutine
// multiplexed over the request inbox and the audio/MIDI action inboxes its
// entities and send tracks publish into.
type TrackActor struct {
	uid      TrackUid
	requests chan any
	audioIn  chan AudioAction
	midiIn   chan MidiAction

	// mu guards inner. The worker locks it per message; Peek locks it for
	// inspection. Never held across a channel operation.
	mu    sync.Mutex
	inner *Track
}

// Track is the state behind a TrackActor: an ordered source set
// (instruments), an ordered effect chain, optional send tracks, and, for the
// aggregating master track, a Mixer.
type Track struct {
	uid        TrackUid
	isMaster   bool
	uidFactory *UidFactory

	audioIn chan<- AudioAction
	midiIn  chan<- MidiAction

	orderedInstrumentUids []Uid
	orderedEffectUids     []Uid
	actors                map[Uid]*EntityActor

	orderedSendUids []TrackUid
	sendRequests    map[TrackUid]chan<- any

	// entityRequests fans requests (MIDI, work, quit) out to every owned
	// entity actor.
	entityRequests Subscription[any]

	// controlLinks records, per source entity, the modulation edges rooted
	// at it. The routing itself lives in the entity actors; this table is
	// for bookkeeping and teardown.
	controlLinks map[Uid][]ControlLink

	mixer *Mixer

	state           trackState
	awaitingSources int
	effectQueue     []Uid
	buffer          GenerationBuffer

	audioSub Subscription[AudioAction]
	midiSub  Subscription[MidiAction]
}

// NewTrackActor builds a track and starts its worker. The master track gets
// a Mixer; ordinary tracks sum their sources unweighted.
func NewTrackActor(uid TrackUid, isMaster bool, uidFactory *UidFactory) *TrackActor {
	a := &TrackActor{
		uid:      uid,
		requests: make(chan any, requestChanCap),
		audioIn:  make(chan AudioAction, requestChanCap),
		midiIn:   make(chan MidiAction, requestChanCap),
	}
	inner := &Track{
		uid:          uid,
		isMaster:     isMaster,
		uidFactory:   uidFactory,
		audioIn:      a.audioIn,
		midiIn:       a.midiIn,
		actors:       make(map[Uid]*EntityActor),
		sendRequests: make(map[TrackUid]chan<- any),
		controlLinks: make(map[Uid][]ControlLink),
	}
	if isMaster {
		inner.mixer = NewMixer()
	}
	a.inner = inner
	go a.run()
	return a
}

func (a *TrackActor) Uid() TrackUid { return a.uid }

// Send enqueues a request without blocking.
func (a *TrackActor) Send(msg any) {
	if !TrySend(a.requests, msg) {
		log.Printf("track %v: dropping request %T, inbox full", a.uid, msg)
	}
}

// Requests exposes the request inbox, for AddSendMsg wiring and engine
// broadcasts.
func (a *TrackActor) Requests() chan<- any { return a.requests }

// AudioInbox is where this track's subscriptions deliver audio actions.
func (a *TrackActor) AudioInbox() chan<- AudioAction { return a.audioIn }

// MidiInbox is where this track's subscriptions deliver MIDI actions.
func (a *TrackActor) MidiInbox() chan<- MidiAction { return a.midiIn }

// Peek runs f with the track state under the actor's lock, for inspection
// off the generation path.
func (a *TrackActor) Peek(f func(*Track)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	f(a.inner)
}

func (a *TrackActor) run() {
	for {
		select {
		case msg := <-a.requests:
			a.mu.Lock()
			quit := a.inner.handleRequest(msg)
			a.mu.Unlock()
			if quit {
				a.drainOnQuit()
				return
			}
		case action := <-a.audioIn:
			a.mu.Lock()
			a.inner.handleAudioAction(action)
			a.mu.Unlock()
		case action := <-a.midiIn:
			a.mu.Lock()
			a.inner.handleMidiAction(action)
			a.mu.Unlock()
		}
	}
}

// drainOnQuit answers queued generation requests with empty batches so that
// a parent awaiting this track sees an implicit silent reply. Same contract
// as EntityActor's drain.
func (a *TrackActor) drainOnQuit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for {
		select {
		case msg := <-a.requests:
			if _, ok := msg.(NeedsAudioMsg); ok {
				a.inner.audioSub.BroadcastPrune(AudioAction{SourceTrack: a.uid})
			}
		default:
			return
		}
	}
}

// handleRequest dispatches one request. It reports true when the worker
// should exit.
func (t *Track) handleRequest(msg any) (quit bool) {
	switch m := msg.(type) {
	case MidiMsg:
		// External MIDI goes to every entity; loop prevention applies only
		// to messages an entity itself emitted.
		t.entityRequests.BroadcastPrune(any(m))
	case WorkMsg:
		t.entityRequests.BroadcastPrune(any(m))
	case NeedsAudioMsg:
		t.handleNeedsAudio(m.Count)
	case AddSendMsg:
		if _, ok := t.sendRequests[m.Uid]; !ok {
			t.orderedSendUids = append(t.orderedSendUids, m.Uid)
		}
		t.sendRequests[m.Uid] = m.Requests
		if t.mixer != nil {
			t.mixer.AddTrack(m.Uid)
		}
	case RemoveSendMsg:
		delete(t.sendRequests, m.Uid)
		for i, uid := range t.orderedSendUids {
			if uid == m.Uid {
				t.orderedSendUids = append(t.orderedSendUids[:i], t.orderedSendUids[i+1:]...)
				break
			}
		}
		if t.mixer != nil {
			t.mixer.RemoveTrack(m.Uid)
		}
	case AddInstrumentMsg:
		uid := t.addEntity(m.Entity)
		t.orderedInstrumentUids = append(t.orderedInstrumentUids, uid)
	case AddEffectMsg:
		uid := t.addEntity(m.Entity)
		t.orderedEffectUids = append(t.orderedEffectUids, uid)
	case RemoveEntityMsg:
		t.removeEntity(m.Uid)
	case LinkControlMsg:
		if err := t.link(m.Source, m.Target, m.Index); err != nil {
			log.Printf("track %v: %v", t.uid, err)
		}
	case UnlinkControlMsg:
		t.unlink(m.Source, m.Target, m.Index)
	case SetMixerLevelMsg:
		if t.mixer != nil {
			t.mixer.SetLevel(m.Track, m.Level)
		}
	case SetMixerMutedMsg:
		if t.mixer != nil {
			t.mixer.SetMuted(m.Track, m.Muted)
		}
	case SubscribeAudioMsg:
		t.audioSub.Subscribe(m.C)
	case UnsubscribeAudioMsg:
		t.audioSub.Unsubscribe(m.C)
	case SubscribeMidiMsg:
		t.midiSub.Subscribe(m.C)
	case UnsubscribeMidiMsg:
		t.midiSub.Unsubscribe(m.C)
	case QuitMsg:
		t.entityRequests.BroadcastPrune(any(QuitMsg{}))
		if t.state != trackIdle {
			// Someone is waiting on this cycle; give them silence rather
			// than a stall.
			t.audioSub.BroadcastPrune(AudioAction{SourceTrack: t.uid})
		}
		return true
	}
	return false
}

// addEntity assigns a fresh Uid, wraps the entity in an actor and wires the
// actor's audio and MIDI output back into this track.
func (t *Track) addEntity(e Entity) Uid {
	e.SetUid(t.uidFactory.Next())
	actor := NewEntityActor(e)
	// These land on the actor's request channel ahead of any generation
	// request, so the wiring is in place for the first cycle.
	actor.Send(SubscribeAudioMsg{C: t.audioIn})
	actor.Send(SubscribeMidiMsg{C: t.midiIn})
	// Control is deliberately not subscribed here: control routing is
	// point-to-point, established by link.
	t.entityRequests.Subscribe(actor.requests)
	t.actors[actor.Uid()] = actor
	return actor.Uid()
}

func (t *Track) removeEntity(uid Uid) {
	actor, ok := t.actors[uid]
	if !ok {
		return
	}
	// Tear down modulation edges rooted at or targeting the entity.
	for _, l := range append([]ControlLink(nil), t.controlLinks[uid]...) {
		t.unlink(uid, l.Target, l.Param)
	}
	for source := range t.controlLinks {
		for _, l := range append([]ControlLink(nil), t.controlLinks[source]...) {
			if l.Target == uid {
				t.unlink(source, l.Target, l.Param)
			}
		}
	}
	t.entityRequests.Unsubscribe(actor.requests)
	actor.Send(UnsubscribeAudioMsg{C: t.audioIn})
	actor.Send(UnsubscribeMidiMsg{C: t.midiIn})
	actor.Send(QuitMsg{})
	delete(t.actors, uid)
	t.orderedInstrumentUids = removeUid(t.orderedInstrumentUids, uid)
	t.orderedEffectUids = removeUid(t.orderedEffectUids, uid)
	delete(t.controlLinks, uid)
}

func (t *Track) link(source, target Uid, index ControlIndex) error {
	sourceActor, ok := t.actors[source]
	if !ok {
		return fmt.Errorf("link: no entity %v", source)
	}
	targetActor, ok := t.actors[target]
	if !ok {
		return fmt.Errorf("link: no entity %v", target)
	}
	sourceActor.Send(SubscribeControlMsg{C: targetActor.ControlInbox()})
	targetActor.Send(ControlLinkAddMsg{Source: source, Index: index})
	t.controlLinks[source] = append(t.controlLinks[source], ControlLink{Target: target, Param: index})
	return nil
}

// unlink removes exactly the (source, target, index) edge and no other.
func (t *Track) unlink(source, target Uid, index ControlIndex) {
	links := t.controlLinks[source]
	found := false
	for i, l := range links {
		if l.Target == target && l.Param == index {
			t.controlLinks[source] = append(links[:i], links[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		return
	}
	sourceActor, sok := t.actors[source]
	targetActor, tok := t.actors[target]
	if !sok || !tok {
		return
	}
	targetActor.Send(ControlLinkRemoveMsg{Source: source, Index: index})
	// Drop the control subscription only when no other link still routes
	// source to target.
	remaining := 0
	for _, l := range t.controlLinks[source] {
		if l.Target == target {
			remaining++
		}
	}
	if remaining == 0 {
		sourceActor.Send(UnsubscribeControlMsg{C: targetActor.ControlInbox()})
	}
}

// handleNeedsAudio starts one generation cycle. The track must be Idle; a
// second NeedsAudio before the cycle completes is a double-dispatch defect
// upstream and is fatal.
func (t *Track) handleNeedsAudio(count int) {
	if t.state != trackIdle {
		panic(fmt.Sprintf("track %v: NeedsAudio while a cycle is in flight (state %d)", t.uid, t.state))
	}
	if count > MaxBatchFrames {
		panic(fmt.Sprintf("track %v: NeedsAudio for %d frames exceeds the %d-frame bound", t.uid, count, MaxBatchFrames))
	}
	t.buffer.Resize(count)
	t.buffer.Clear()

	sources := len(t.sendRequests) + len(t.orderedInstrumentUids)
	if sources == 0 {
		// No sources at all: run the effect chain (if any) over silence and
		// emit, with no intermediate await.
		t.beginEffects()
		return
	}
	t.state = trackAwaitingSources
	t.awaitingSources = sources
	for _, uid := range t.orderedSendUids {
		if !TrySend(t.sendRequests[uid], any(NeedsAudioMsg{Count: count})) {
			log.Printf("track %v: send %v did not accept NeedsAudio", t.uid, uid)
		}
	}
	for _, uid := range t.orderedInstrumentUids {
		t.actors[uid].Send(NeedsAudioMsg{Count: count})
	}
}

func (t *Track) handleAudioAction(action AudioAction) {
	assertBatchLen(action.Frames)
	switch t.state {
	case trackIdle:
		panic(fmt.Sprintf("track %v: received frames while idle", t.uid))
	case trackAwaitingSources:
		if t.mixer != nil && action.SourceTrack != 0 {
			t.mixer.Mix(action.SourceTrack, action.Frames, t.buffer.Frames())
		} else {
			t.buffer.Merge(action.Frames)
		}
		t.awaitingSources--
		if t.awaitingSources == 0 {
			t.beginEffects()
		}
	case trackAwaitingEffect:
		// An effect finished; its output replaces the working buffer. An
		// empty batch is a quitting effect's implicit reply: keep what we
		// have.
		if len(action.Frames) > 0 {
			t.buffer.Copy(action.Frames)
		}
		t.advanceEffects()
	}
}

// beginEffects seeds the effect queue in insertion order and starts the
// chain, or emits directly when the chain is empty.
func (t *Track) beginEffects() {
	t.effectQueue = append(t.effectQueue[:0], t.orderedEffectUids...)
	t.state = trackAwaitingEffect
	t.advanceEffects()
}

func (t *Track) advanceEffects() {
	// Queued uids may have been removed since the cycle started; skip them.
	for len(t.effectQueue) > 0 {
		uid := t.effectQueue[0]
		t.effectQueue = t.effectQueue[1:]
		if actor, ok := t.actors[uid]; ok {
			actor.Send(NeedsTransformationMsg{Frames: t.buffer.Clone()})
			return
		}
	}
	t.emitFrames()
}

// emitFrames completes the cycle: exactly one outgoing audio action, then
// back to Idle.
func (t *Track) emitFrames() {
	t.state = trackIdle
	t.audioSub.BroadcastPrune(AudioAction{SourceTrack: t.uid, Frames: t.buffer.Clone()})
}

// handleMidiAction republishes a MIDI message one of this track's entities
// emitted: to the track's own MIDI subscribers, and to every owned entity
// except the one that emitted it.
func (t *Track) handleMidiAction(action MidiAction) {
	t.midiSub.BroadcastPrune(action)
	for _, uid := range t.orderedInstrumentUids {
		if uid != action.SourceEntity {
			t.actors[uid].Send(MidiMsg{Channel: action.Channel, Message: action.Message})
		}
	}
	for _, uid := range t.orderedEffectUids {
		if uid != action.SourceEntity {
			t.actors[uid].Send(MidiMsg{Channel: action.Channel, Message: action.Message})
		}
	}
}

// IsMaster reports whether this is the aggregating master track.
func (t *Track) IsMaster() bool { return t.isMaster }

// InstrumentUids returns the ordered source set.
func (t *Track) InstrumentUids() []Uid { return t.orderedInstrumentUids }

// EffectUids returns the ordered effect chain.
func (t *Track) EffectUids() []Uid { return t.orderedEffectUids }

// Actor returns the actor for one owned entity, or nil.
func (t *Track) Actor(uid Uid) *EntityActor { return t.actors[uid] }

// Mixer returns the master track's mixer, or nil for ordinary tracks.
func (t *Track) Mixer() *Mixer { return t.mixer }

// ControlLinks returns the modulation edges rooted at source.
func (t *Track) ControlLinks(source Uid) []ControlLink { return t.controlLinks[source] }

func removeUid(uids []Uid, uid Uid) []Uid {
	for i, u := range uids {
		if u == uid {
			return append(uids[:i], uids[i+1:]...)
		}
	}
	return uids
}
