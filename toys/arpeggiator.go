package toys

import (
	"github.com/jkempas/troupe"
	"gitlab.com/gomidi/midi/v2"
)

const defaultBaseNote = 60 // middle C

// Arpeggiator plays one whole note on every other beat, alternating between
// the base note and a fifth above it. An incoming note-on moves the base
// note.
type Arpeggiator struct {
	troupe.EntityBase
	lastBeat    int
	playing     bool
	playLowNote bool
	baseNote    uint8
	currentNote uint8
}

func NewArpeggiator() *Arpeggiator {
	return &Arpeggiator{
		EntityBase: troupe.NewEntityBase("Arpeggiator"),
		baseNote:   defaultBaseNote,
	}
}

func (a *Arpeggiator) HandleMidi(channel uint8, message midi.Message, emit troupe.MidiEventFn) {
	var ch, key, vel uint8
	if message.GetNoteOn(&ch, &key, &vel) {
		a.baseNote = key
	}
}

func (a *Arpeggiator) Work(r troupe.TimeRange, emitMidi troupe.MidiEventFn, emitControl troupe.ControlEventFn) {
	latestBeat := int(r.End)
	beatChanged := latestBeat > a.lastBeat
	if beatChanged {
		a.lastBeat = latestBeat
	}
	if !beatChanged {
		return
	}
	if a.playing {
		emitMidi(0, midi.NoteOff(0, a.currentNote))
		a.playing = false
		a.playLowNote = !a.playLowNote
	} else {
		a.currentNote = a.noteToPlay()
		emitMidi(0, midi.NoteOn(0, a.currentNote, 127))
		a.playing = true
	}
}

func (a *Arpeggiator) noteToPlay() uint8 {
	if a.playLowNote {
		return a.baseNote
	}
	return a.baseNote + 7
}
