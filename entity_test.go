package troupe

import (
	"testing"
	"time"

	"gitlab.com/gomidi/midi/v2"
)

func newTestEntityActor(e Entity) *EntityActor {
	var factory UidFactory
	e.SetUid(factory.Next())
	return NewEntityActor(e)
}

func TestEntityActorGeneratesRequestedFrames(t *testing.T) {
	actor := newTestEntityActor(newConstGenerator(0.25))
	defer actor.Send(QuitMsg{})
	audio := make(chan AudioAction, 4)
	actor.Send(SubscribeAudioMsg{C: audio})

	actor.Send(NeedsAudioMsg{Count: 16})
	action := receiveAudio(t, audio)
	if len(action.Frames) != 16 {
		t.Fatalf("got %d frames, want 16", len(action.Frames))
	}
	if action.Transformed {
		t.Error("generation reply marked as transformed")
	}
	if action.SourceEntity != actor.Uid() {
		t.Errorf("action from %v, want %v", action.SourceEntity, actor.Uid())
	}
	expectValue(t, action.Frames, 0.25)
	eventually(t, actor.SoundActive, "sound activity not reported")
}

func TestEntityActorSilentGeneratorReportsInactive(t *testing.T) {
	actor := newTestEntityActor(newConstGenerator(0))
	defer actor.Send(QuitMsg{})
	audio := make(chan AudioAction, 4)
	actor.Send(SubscribeAudioMsg{C: audio})

	actor.Send(NeedsAudioMsg{Count: 8})
	receiveAudio(t, audio)
	if actor.SoundActive() {
		t.Error("silent generator reported as active")
	}
}

func TestEntityActorTransformsInPlace(t *testing.T) {
	actor := newTestEntityActor(newScaleEffect(0.5))
	defer actor.Send(QuitMsg{})
	audio := make(chan AudioAction, 4)
	actor.Send(SubscribeAudioMsg{C: audio})

	actor.Send(NeedsTransformationMsg{Frames: []StereoSample{{1, 1}, {0.5, 0.5}}})
	action := receiveAudio(t, audio)
	if !action.Transformed {
		t.Error("transformation reply not marked as transformed")
	}
	want := []StereoSample{{0.5, 0.5}, {0.25, 0.25}}
	for i, f := range action.Frames {
		if f != want[i] {
			t.Fatalf("frame %d: got %v, want %v", i, f, want[i])
		}
	}
}

func TestEntityActorSetsControls(t *testing.T) {
	gen := newConstGenerator(0)
	actor := newTestEntityActor(gen)
	defer actor.Send(QuitMsg{})

	actor.Send(ControlMsg{Index: 0, Value: 0.75})
	eventually(t, func() bool {
		var v ControlValue
		actor.Peek(func(e Entity) { v = e.Control(0) })
		return v == 0.75
	}, "control value not applied")
}

func TestEntityActorAppliesLinkedControlActions(t *testing.T) {
	gen := newConstGenerator(0)
	actor := newTestEntityActor(gen)
	defer actor.Send(QuitMsg{})

	// Control values here are exactly representable as float32, so they
	// survive the round trip through the entity's parameter unchanged.
	actor.Send(ControlLinkAddMsg{Source: 42, Index: 0})
	// The request inbox is FIFO, so once this later request is visible the
	// link add has been processed too.
	actor.Send(ControlMsg{Index: 0, Value: 0.0625})
	eventually(t, func() bool {
		var v ControlValue
		actor.Peek(func(e Entity) { v = e.Control(0) })
		return v == 0.0625
	}, "control value not applied")

	actor.ControlInbox() <- ControlAction{SourceEntity: 42, Value: 0.5}
	eventually(t, func() bool {
		var v ControlValue
		actor.Peek(func(e Entity) { v = e.Control(0) })
		return v == 0.5
	}, "linked control action not applied")

	// Actions from unlinked sources are ignored.
	actor.Send(ControlLinkRemoveMsg{Source: 42, Index: 0})
	actor.Send(ControlMsg{Index: 0, Value: 0.125})
	eventually(t, func() bool {
		var v ControlValue
		actor.Peek(func(e Entity) { v = e.Control(0) })
		return v == 0.125
	}, "control value not applied after unlink")
	actor.ControlInbox() <- ControlAction{SourceEntity: 42, Value: 0.5}
	time.Sleep(50 * time.Millisecond)
	var v ControlValue
	actor.Peek(func(e Entity) { v = e.Control(0) })
	if v != 0.125 {
		t.Fatalf("removed link still applied: control is %v", v)
	}
}

func TestEntityActorWorkEmitsMidiAndControl(t *testing.T) {
	actor := newTestEntityActor(newMidiRecorder("worker", true))
	defer actor.Send(QuitMsg{})
	midiOut := make(chan MidiAction, 4)
	actor.Send(SubscribeMidiMsg{C: midiOut})

	actor.Send(WorkMsg{Range: TimeRange{Start: 0, End: 0.1}})
	action, ok := TimeoutReceive(midiOut, testTimeout)
	if !ok {
		t.Fatal("timed out waiting for MIDI")
	}
	var ch, key, vel uint8
	if !action.Message.GetNoteOn(&ch, &key, &vel) || key != 60 {
		t.Fatalf("unexpected message %v", action.Message)
	}
	if action.SourceEntity != actor.Uid() {
		t.Errorf("MIDI from %v, want %v", action.SourceEntity, actor.Uid())
	}

	emitter := newTestEntityActor(newControlEmitter(0.3))
	defer emitter.Send(QuitMsg{})
	controlOut := make(chan ControlAction, 4)
	emitter.Send(SubscribeControlMsg{C: controlOut})
	emitter.Send(WorkMsg{Range: TimeRange{Start: 0, End: 0.1}})
	control, ok := TimeoutReceive(controlOut, testTimeout)
	if !ok {
		t.Fatal("timed out waiting for a control action")
	}
	if control.Value != 0.3 {
		t.Fatalf("control value %v, want 0.3", control.Value)
	}
}

func TestEntityActorHandlesMidi(t *testing.T) {
	rec := newMidiRecorder("recorder", false)
	actor := newTestEntityActor(rec)
	defer actor.Send(QuitMsg{})

	actor.Send(MidiMsg{Channel: 0, Message: midi.NoteOn(0, 64, 100)})
	eventually(t, func() bool {
		var n int
		actor.Peek(func(Entity) { n = len(rec.received) })
		return n == 1
	}, "MIDI message not delivered to the entity")
}

func TestEntityActorAnswersGenerationQueuedBehindQuit(t *testing.T) {
	gen := newConstGenerator(1)
	gen.gate = make(chan struct{})
	actor := newTestEntityActor(gen)
	audio := make(chan AudioAction, 4)
	actor.Send(SubscribeAudioMsg{C: audio})

	// The worker blocks inside the first generation, so the quit and the
	// second request queue up behind it.
	actor.Send(NeedsAudioMsg{Count: 8})
	actor.Send(QuitMsg{})
	actor.Send(NeedsAudioMsg{Count: 8})
	close(gen.gate)

	first := receiveAudio(t, audio)
	if len(first.Frames) != 8 {
		t.Fatalf("pre-quit request got %d frames, want 8", len(first.Frames))
	}
	second := receiveAudio(t, audio)
	if len(second.Frames) != 0 {
		t.Fatalf("post-quit request got %d frames, want an empty batch", len(second.Frames))
	}
}
