package troupe

import (
	"testing"
	"time"

	"gitlab.com/gomidi/midi/v2"
)

// constGenerator fills every frame with a fixed value. Generate signals
// started and then blocks on gate when those are set, letting tests hold a
// generation cycle mid-flight deterministically.
type constGenerator struct {
	EntityBase
	value   float32
	gate    chan struct{}
	started chan struct{}
}

func newConstGenerator(value float32) *constGenerator {
	return &constGenerator{EntityBase: NewEntityBase("const"), value: value}
}

func (g *constGenerator) Generate(buf []StereoSample) bool {
	if g.started != nil {
		g.started <- struct{}{}
	}
	if g.gate != nil {
		<-g.gate
	}
	for i := range buf {
		buf[i] = StereoSample{g.value, g.value}
	}
	return g.value != 0
}

func (g *constGenerator) ControlCount() int { return 1 }

func (g *constGenerator) Control(index ControlIndex) ControlValue {
	return ControlValue(g.value)
}

func (g *constGenerator) SetControl(index ControlIndex, value ControlValue) {
	g.value = float32(value)
}

// scaleEffect multiplies audio by a factor in place. Like constGenerator it
// can signal started and block on gate, to hold an effect chain mid-flight.
type scaleEffect struct {
	EntityBase
	factor  float32
	gate    chan struct{}
	started chan struct{}
}

func newScaleEffect(factor float32) *scaleEffect {
	return &scaleEffect{EntityBase: NewEntityBase("scale"), factor: factor}
}

func (e *scaleEffect) Transform(buf []StereoSample) {
	if e.started != nil {
		e.started <- struct{}{}
	}
	if e.gate != nil {
		<-e.gate
	}
	for i := range buf {
		buf[i][0] *= e.factor
		buf[i][1] *= e.factor
	}
}

// offsetEffect adds a constant to every sample, making effect order
// observable when combined with scaleEffect.
type offsetEffect struct {
	EntityBase
	offset float32
}

func newOffsetEffect(offset float32) *offsetEffect {
	return &offsetEffect{EntityBase: NewEntityBase("offset"), offset: offset}
}

func (e *offsetEffect) Transform(buf []StereoSample) {
	for i := range buf {
		buf[i][0] += e.offset
		buf[i][1] += e.offset
	}
}

// midiRecorder records every MIDI message it receives and optionally emits
// a canned message once per Work call.
type midiRecorder struct {
	EntityBase
	received []midi.Message
	emitOn   bool
}

func newMidiRecorder(name string, emitOn bool) *midiRecorder {
	return &midiRecorder{EntityBase: NewEntityBase(name), emitOn: emitOn}
}

func (r *midiRecorder) HandleMidi(channel uint8, message midi.Message, emit MidiEventFn) {
	r.received = append(r.received, message)
}

func (r *midiRecorder) Work(tr TimeRange, emitMidi MidiEventFn, emitControl ControlEventFn) {
	if r.emitOn {
		emitMidi(0, midi.NoteOn(0, 60, 127))
	}
}

// controlEmitter emits a fixed control value once per Work call.
type controlEmitter struct {
	EntityBase
	value ControlValue
}

func newControlEmitter(value ControlValue) *controlEmitter {
	return &controlEmitter{EntityBase: NewEntityBase("emitter"), value: value}
}

func (e *controlEmitter) Work(tr TimeRange, emitMidi MidiEventFn, emitControl ControlEventFn) {
	emitControl(e.value)
}

const testTimeout = 2 * time.Second

func receiveAudio(t *testing.T, c chan AudioAction) AudioAction {
	t.Helper()
	a, ok := TimeoutReceive(c, testTimeout)
	if !ok {
		t.Fatal("timed out waiting for an audio action")
	}
	return a
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(testTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal(msg)
}

func expectValue(t *testing.T, frames []StereoSample, want float32) {
	t.Helper()
	for i, f := range frames {
		for ch := 0; ch < 2; ch++ {
			got := f[ch]
			if diff := got - want; diff > 1e-5 || diff < -1e-5 {
				t.Fatalf("frame %d channel %d: got %v, want %v", i, ch, got, want)
			}
		}
	}
}
