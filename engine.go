package troupe

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2"
)

// midiAllNotesOff is the channel-mode controller that releases every
// sounding note.
const midiAllNotesOff = 123

// Engine owns the master track, every ordinary track and the transport. It
// is not an actor itself: the EngineService serializes access to it, and
// every engine method runs on the service worker (or, before the service
// starts, on the constructing goroutine).
type Engine struct {
	masterTrack      *TrackActor
	orderedTrackUids []TrackUid
	tracks           map[TrackUid]*TrackActor

	trackUidFactory  *TrackUidFactory
	entityUidFactory *UidFactory

	// trackRequests fans a request out to the master track and every
	// ordinary track.
	trackRequests Subscription[any]

	transport *Transport
}

func NewEngine() *Engine {
	e := &Engine{
		tracks:           make(map[TrackUid]*TrackActor),
		trackUidFactory:  &TrackUidFactory{},
		entityUidFactory: &UidFactory{},
		transport:        NewTransport(),
	}
	e.masterTrack = NewTrackActor(e.trackUidFactory.Next(), true, e.entityUidFactory)
	e.trackRequests.Subscribe(e.masterTrack.requests)
	return e
}

// MasterTrack returns the aggregating track every ordinary track sends to.
func (e *Engine) MasterTrack() *TrackActor { return e.masterTrack }

// TrackUids returns the ordinary tracks in creation order.
func (e *Engine) TrackUids() []TrackUid { return e.orderedTrackUids }

// Track returns an ordinary track's actor, or nil.
func (e *Engine) Track(uid TrackUid) *TrackActor { return e.tracks[uid] }

func (e *Engine) Transport() *Transport { return e.transport }

// SubscribeAudio routes the engine's final mixed audio (the master track's
// output) to c.
func (e *Engine) SubscribeAudio(c chan<- AudioAction) {
	e.masterTrack.Send(SubscribeAudioMsg{C: c})
}

// SubscribeMidi routes MIDI that bubbles up to the master track to c.
func (e *Engine) SubscribeMidi(c chan<- MidiAction) {
	e.masterTrack.Send(SubscribeMidiMsg{C: c})
}

// CreateTrack mints a TrackUid, builds the track and wires it as a send
// into the master track: its completed audio feeds the master's source set
// and its MIDI feeds the shared bus.
func (e *Engine) CreateTrack() (TrackUid, error) {
	uid := e.trackUidFactory.Next()
	actor := NewTrackActor(uid, false, e.entityUidFactory)
	actor.Send(SubscribeAudioMsg{C: e.masterTrack.AudioInbox()})
	actor.Send(SubscribeMidiMsg{C: e.masterTrack.MidiInbox()})
	e.masterTrack.Send(AddSendMsg{Uid: uid, Requests: actor.Requests()})
	e.trackRequests.Subscribe(actor.requests)
	e.orderedTrackUids = append(e.orderedTrackUids, uid)
	e.tracks[uid] = actor
	return uid, nil
}

// DeleteTrack reverses CreateTrack's wiring and asks the track to quit. If
// a generation cycle is in flight, the quitting track answers it with
// silence.
func (e *Engine) DeleteTrack(uid TrackUid) error {
	actor, ok := e.tracks[uid]
	if !ok {
		return fmt.Errorf("engine: no track %v", uid)
	}
	e.masterTrack.Send(RemoveSendMsg{Uid: uid})
	// Quit while the master is still subscribed: a track mid-cycle emits its
	// silent completion on quit, and unsubscribing first would drop it. The
	// subscriptions die with the worker.
	actor.Send(QuitMsg{})
	e.trackRequests.Unsubscribe(actor.requests)
	for i, u := range e.orderedTrackUids {
		if u == uid {
			e.orderedTrackUids = append(e.orderedTrackUids[:i], e.orderedTrackUids[i+1:]...)
			break
		}
	}
	delete(e.tracks, uid)
	return nil
}

// StartGeneration runs one cycle: advance the transport to get the cycle's
// time range, let every track's timed units work (emitting MIDI and control
// changes ahead of the audio pull), then ask the master track for count
// frames.
func (e *Engine) StartGeneration(count int) {
	timeRange := e.transport.Advance(count)
	e.trackRequests.BroadcastPrune(any(WorkMsg{Range: timeRange}))
	e.masterTrack.Send(NeedsAudioMsg{Count: count})
}

// HandleMidi broadcasts an external MIDI message to every track.
func (e *Engine) HandleMidi(channel uint8, message midi.Message) {
	e.trackRequests.BroadcastPrune(any(MidiMsg{Channel: channel, Message: message}))
}

// Stop silences everything by broadcasting an all-notes-off controller
// message to every track.
func (e *Engine) Stop() {
	e.trackRequests.BroadcastPrune(any(MidiMsg{
		Channel: 0,
		Message: midi.ControlChange(0, midiAllNotesOff, 0),
	}))
}

func (e *Engine) SetSampleRate(rate int) { e.transport.SetSampleRate(rate) }

func (e *Engine) SetTempo(bpm float64) { e.transport.SetTempo(bpm) }

func (e *Engine) SetTimeSignature(ts TimeSignature) { e.transport.SetTimeSignature(ts) }

// RequestQuit asks every track, master included, to exit.
func (e *Engine) RequestQuit() {
	e.trackRequests.BroadcastPrune(any(QuitMsg{}))
}
