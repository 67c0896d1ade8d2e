package toys

import (
	"github.com/jkempas/troupe"
)

// Gain scales audio in place by a controllable factor.
type Gain struct {
	troupe.EntityBase
	factor float32
}

func NewGain(factor float32) *Gain {
	return &Gain{EntityBase: troupe.NewEntityBase("Gain"), factor: factor}
}

func (g *Gain) Transform(buf []troupe.StereoSample) {
	for i := range buf {
		buf[i][0] *= g.factor
		buf[i][1] *= g.factor
	}
}

func (g *Gain) ControlCount() int { return 1 }

func (g *Gain) ControlName(index troupe.ControlIndex) string {
	if index == 0 {
		return "factor"
	}
	return ""
}

func (g *Gain) Control(index troupe.ControlIndex) troupe.ControlValue {
	if index == 0 {
		return troupe.ControlValue(g.factor)
	}
	return 0
}

func (g *Gain) SetControl(index troupe.ControlIndex, value troupe.ControlValue) {
	if index == 0 {
		g.factor = float32(value)
	}
}
