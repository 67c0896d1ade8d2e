package troupe

import (
	"fmt"
	"sync/atomic"

	"gitlab.com/gomidi/midi/v2"
)

type (
	// Uid identifies an entity (an instrument or effect) within one engine.
	// Uids are minted by a UidFactory, are unique for the lifetime of that
	// factory and are never reused.
	Uid int

	// TrackUid identifies a track within one engine.
	TrackUid int

	// UidFactory mints entity Uids. Factories are injected at construction
	// rather than being process-wide, so tests can build isolated engines
	// with deterministic uids.
	UidFactory struct {
		counter atomic.Int64
	}

	// TrackUidFactory mints TrackUids.
	TrackUidFactory struct {
		counter atomic.Int64
	}
)

func (f *UidFactory) Next() Uid { return Uid(f.counter.Add(1)) }

func (f *TrackUidFactory) Next() TrackUid { return TrackUid(f.counter.Add(1)) }

func (u Uid) String() string { return fmt.Sprintf("Uid(%d)", int(u)) }

func (u TrackUid) String() string { return fmt.Sprintf("TrackUid(%d)", int(u)) }

// StereoSample is one frame of stereo audio, left then right. Samples are
// additive: mixing two buffers sums them elementwise.
type StereoSample [2]float32

// SilentSample is the zero value of a StereoSample, spelled out.
var SilentSample = StereoSample{}

// MaxBatchFrames bounds the length of every audio batch passed between
// actors. It is a protocol invariant: actors panic on longer batches, since
// one indicates a broken invariant somewhere upstream, not a recoverable
// condition.
const MaxBatchFrames = 64

// assertBatchLen panics if a batch exceeds the protocol bound.
func assertBatchLen(frames []StereoSample) {
	if len(frames) > MaxBatchFrames {
		panic(fmt.Sprintf("troupe: batch of %d frames exceeds the %d-frame bound", len(frames), MaxBatchFrames))
	}
}

// TimeRange is a half-open interval [Start,End) of musical time, in beats.
// The transport advances it monotonically each generation cycle.
type TimeRange struct {
	Start, End float64
}

type (
	// ControlIndex indexes into an entity's set of controllable parameters.
	ControlIndex int

	// ControlValue is a normalized (0..1) value assigned to a parameter.
	ControlValue float64

	// ControlLink is one routed modulation edge: when the link's source
	// entity emits a control change, the target's parameter at Param is set
	// to the emitted value.
	ControlLink struct {
		Target Uid
		Param  ControlIndex
	}
)

type (
	// AudioAction is a batch of audio emitted by an entity or a track.
	// Exactly one of SourceEntity/SourceTrack is set; the master track uses
	// SourceTrack to look up the emitting track's gain in its mixer.
	AudioAction struct {
		SourceEntity Uid
		SourceTrack  TrackUid
		// Transformed is true when the batch is the result of a
		// NeedsTransformation request rather than a NeedsAudio request.
		Transformed bool
		Frames      []StereoSample
	}

	// MidiAction is a MIDI message emitted by an entity or republished by a
	// track.
	MidiAction struct {
		SourceEntity Uid
		Channel      uint8
		Message      midi.Message
	}

	// ControlAction announces that an entity's output signal changed.
	// Entities that hold a control link from the source apply the value to
	// their linked parameters.
	ControlAction struct {
		SourceEntity Uid
		Value        ControlValue
	}
)

type (
	// MidiEventFn receives MIDI messages an entity emits while handling a
	// request.
	MidiEventFn func(channel uint8, message midi.Message)

	// ControlEventFn receives control values an entity emits while working.
	ControlEventFn func(value ControlValue)

	// Entity is the minimal contract every wrapped instrument or effect
	// fulfills: identity plus enumeration and get/set of its controllable
	// parameters. The audio and MIDI capabilities are optional
	// sub-interfaces; an EntityActor probes for them with type assertions.
	Entity interface {
		Uid() Uid
		SetUid(uid Uid)
		Name() string

		ControlCount() int
		ControlName(index ControlIndex) string
		Control(index ControlIndex) ControlValue
		SetControl(index ControlIndex, value ControlValue)
	}

	// AudioGenerator is implemented by entities that produce audio. Generate
	// fills buf completely and reports whether any of the output was
	// non-silent.
	AudioGenerator interface {
		Generate(buf []StereoSample) bool
	}

	// AudioTransformer is implemented by effects that process audio in
	// place.
	AudioTransformer interface {
		Transform(buf []StereoSample)
	}

	// MidiHandler is implemented by entities that respond to MIDI input.
	// Any messages the entity emits in response go through emit.
	MidiHandler interface {
		HandleMidi(channel uint8, message midi.Message, emit MidiEventFn)
	}

	// TimeWorker is implemented by entities that do timed work (sequencers,
	// controllers). Work is called once per generation cycle, before audio
	// is pulled, and may emit MIDI and control events.
	TimeWorker interface {
		Work(r TimeRange, emitMidi MidiEventFn, emitControl ControlEventFn)
	}
)

// EntityBase carries the identity part of the Entity contract and a zero
// parameter set, for embedding in concrete entities.
type EntityBase struct {
	uid  Uid
	name string
}

func NewEntityBase(name string) EntityBase { return EntityBase{name: name} }

func (e *EntityBase) Uid() Uid { return e.uid }

func (e *EntityBase) SetUid(uid Uid) { e.uid = uid }

func (e *EntityBase) Name() string { return e.name }

func (e *EntityBase) ControlCount() int { return 0 }

func (e *EntityBase) ControlName(ControlIndex) string { return "" }

func (e *EntityBase) Control(ControlIndex) ControlValue { return 0 }

func (e *EntityBase) SetControl(ControlIndex, ControlValue) {}
