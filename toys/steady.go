package toys

import (
	"github.com/jkempas/troupe"
)

// Steady generates a constant sample value on both channels. Its single
// control sets the value, so it doubles as a control-link target in tests.
type Steady struct {
	troupe.EntityBase
	value float32
}

func NewSteady(value float32) *Steady {
	return &Steady{EntityBase: troupe.NewEntityBase("Steady"), value: value}
}

func (s *Steady) Generate(buf []troupe.StereoSample) bool {
	for i := range buf {
		buf[i] = troupe.StereoSample{s.value, s.value}
	}
	return s.value != 0
}

func (s *Steady) ControlCount() int { return 1 }

func (s *Steady) ControlName(index troupe.ControlIndex) string {
	if index == 0 {
		return "value"
	}
	return ""
}

func (s *Steady) Control(index troupe.ControlIndex) troupe.ControlValue {
	if index == 0 {
		return troupe.ControlValue(s.value)
	}
	return 0
}

func (s *Steady) SetControl(index troupe.ControlIndex, value troupe.ControlValue) {
	if index == 0 {
		s.value = float32(value)
	}
}
