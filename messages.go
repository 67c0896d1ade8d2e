package troupe

import "gitlab.com/gomidi/midi/v2"

// Requests flow to actors on a single per-actor channel of any, dispatched
// with a type switch. The same message types are understood by entity
// actors, track actors and the engine service wherever the operation makes
// sense; unknown messages are ignored.
type (
	// MidiMsg asks the receiver to handle an incoming MIDI message.
	MidiMsg struct {
		Channel uint8
		Message midi.Message
	}

	// ControlMsg sets one of the receiver's controllable parameters.
	ControlMsg struct {
		Index ControlIndex
		Value ControlValue
	}

	// WorkMsg asks the receiver to perform its timed work for the given
	// slice of musical time.
	WorkMsg struct {
		Range TimeRange
	}

	// NeedsAudioMsg asks the receiver to produce exactly Count frames of
	// audio, Count <= MaxBatchFrames.
	NeedsAudioMsg struct {
		Count int
	}

	// NeedsTransformationMsg asks the receiver to process the given batch in
	// place and emit the result as a Transformed AudioAction.
	NeedsTransformationMsg struct {
		Frames []StereoSample
	}

	// QuitMsg asks the receiver's worker to exit. Advisory and asynchronous:
	// the worker finishes the request it is handling, answers any already
	// queued generation requests with silent batches, then exits.
	QuitMsg struct{}

	// SubscribeAudioMsg connects a receiver channel to the actor's audio
	// actions. UnsubscribeAudioMsg disconnects it.
	SubscribeAudioMsg   struct{ C chan<- AudioAction }
	UnsubscribeAudioMsg struct{ C chan<- AudioAction }

	// SubscribeMidiMsg connects a receiver channel to the actor's MIDI
	// actions. UnsubscribeMidiMsg disconnects it.
	SubscribeMidiMsg   struct{ C chan<- MidiAction }
	UnsubscribeMidiMsg struct{ C chan<- MidiAction }

	// SubscribeControlMsg connects a receiver channel to the actor's control
	// actions. Control routing is point-to-point, so tracks subscribe the
	// link target's control inbox rather than their own.
	SubscribeControlMsg   struct{ C chan<- ControlAction }
	UnsubscribeControlMsg struct{ C chan<- ControlAction }

	// ControlLinkAddMsg tells an entity actor that control actions from
	// Source should be applied to its parameter at Index.
	// ControlLinkRemoveMsg removes exactly that pairing.
	ControlLinkAddMsg struct {
		Source Uid
		Index  ControlIndex
	}
	ControlLinkRemoveMsg struct {
		Source Uid
		Index  ControlIndex
	}
)

// Track-level requests.
type (
	// AddSendMsg tells a track to consume the given track's output as one of
	// its audio sources. The master track mixes sends through its mixer.
	AddSendMsg struct {
		Uid      TrackUid
		Requests chan<- any
	}

	// RemoveSendMsg stops consuming the given track's output.
	RemoveSendMsg struct {
		Uid TrackUid
	}

	// AddInstrumentMsg appends an entity to the track's ordered source set.
	AddInstrumentMsg struct {
		Entity Entity
	}

	// AddEffectMsg appends an entity to the track's ordered effect chain.
	AddEffectMsg struct {
		Entity Entity
	}

	// RemoveEntityMsg removes an entity (source or effect) and quits its
	// actor. Any control links from or to it are removed first.
	RemoveEntityMsg struct {
		Uid Uid
	}

	// LinkControlMsg routes control changes from Source to Target's
	// parameter at Index. UnlinkControlMsg removes exactly that edge.
	LinkControlMsg struct {
		Source Uid
		Target Uid
		Index  ControlIndex
	}
	UnlinkControlMsg struct {
		Source Uid
		Target Uid
		Index  ControlIndex
	}

	// SetMixerLevelMsg adjusts the level of one contributing track in the
	// master track's mixer. SetMixerMutedMsg mutes or unmutes it.
	SetMixerLevelMsg struct {
		Track TrackUid
		Level float64
	}
	SetMixerMutedMsg struct {
		Track TrackUid
		Muted bool
	}
)

// Engine service inputs and events.
type (
	// ConfigureMsg tells the engine service which queue to fill and how the
	// audio device is configured. WavPath, when non-empty, (re)starts WAV
	// capture to that file.
	ConfigureMsg struct {
		SampleRate   int
		ChannelCount int
		Queue        *AudioQueue
		WavPath      string
	}

	// MidiOutEvent is a MIDI message the engine produced, surfaced for
	// forwarding to a hardware or software MIDI sink.
	MidiOutEvent struct {
		Channel uint8
		Message midi.Message
	}

	// ResetEvent announces that the engine started up; receivers keep the
	// pointer for wiring and state inspection off the generation path.
	ResetEvent struct {
		Engine *Engine
	}
)
