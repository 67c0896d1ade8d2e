package toys

import (
	"math"

	"github.com/jkempas/troupe"
	"gitlab.com/gomidi/midi/v2"
)

// Synth is a small polyphonic sine synth: one voice per held note, a short
// linear release on note-off. Its control scales the output level.
type Synth struct {
	troupe.EntityBase
	sampleRate int
	level      float32
	voices     map[uint8]*synthVoice
}

type synthVoice struct {
	phase     float64
	increment float64
	gain      float32
	releasing bool
}

// releaseStep is the per-frame gain decrement of a releasing voice, roughly
// a 10 ms fade at 44.1 kHz.
const releaseStep = 1.0 / 441

const allNotesOffCC = 123

func NewSynth(sampleRate int) *Synth {
	if sampleRate <= 0 {
		sampleRate = troupe.DefaultSampleRate
	}
	return &Synth{
		EntityBase: troupe.NewEntityBase("Synth"),
		sampleRate: sampleRate,
		level:      1,
		voices:     make(map[uint8]*synthVoice),
	}
}

func noteFrequency(key uint8) float64 {
	return 440 * math.Pow(2, (float64(key)-69)/12)
}

func (s *Synth) HandleMidi(channel uint8, message midi.Message, emit troupe.MidiEventFn) {
	var ch, key, vel, cc, val uint8
	switch {
	case message.GetNoteOn(&ch, &key, &vel):
		s.voices[key] = &synthVoice{
			increment: noteFrequency(key) / float64(s.sampleRate),
			gain:      float32(vel) / 127,
		}
	case message.GetNoteOff(&ch, &key, &vel):
		if v, ok := s.voices[key]; ok {
			v.releasing = true
		}
	case message.GetControlChange(&ch, &cc, &val):
		if cc == allNotesOffCC {
			for _, v := range s.voices {
				v.releasing = true
			}
		}
	}
}

func (s *Synth) Generate(buf []troupe.StereoSample) bool {
	for i := range buf {
		buf[i] = troupe.SilentSample
	}
	if len(s.voices) == 0 {
		return false
	}
	active := false
	for key, v := range s.voices {
		for i := range buf {
			if v.releasing {
				v.gain -= releaseStep
				if v.gain <= 0 {
					break
				}
			}
			sample := float32(math.Sin(2*math.Pi*v.phase)) * v.gain * s.level
			buf[i][0] += sample
			buf[i][1] += sample
			v.phase += v.increment
			v.phase -= math.Floor(v.phase)
			active = true
		}
		if v.releasing && v.gain <= 0 {
			delete(s.voices, key)
		}
	}
	return active
}

func (s *Synth) ControlCount() int { return 1 }

func (s *Synth) ControlName(index troupe.ControlIndex) string {
	if index == 0 {
		return "level"
	}
	return ""
}

func (s *Synth) Control(index troupe.ControlIndex) troupe.ControlValue {
	if index == 0 {
		return troupe.ControlValue(s.level)
	}
	return 0
}

func (s *Synth) SetControl(index troupe.ControlIndex, value troupe.ControlValue) {
	if index == 0 {
		s.level = float32(value)
	}
}
