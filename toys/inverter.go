package toys

import (
	"github.com/jkempas/troupe"
)

// Inverter flips the polarity of audio in place. Summing a signal with its
// inverted copy cancels to silence, which the track tests rely on.
type Inverter struct {
	troupe.EntityBase
}

func NewInverter() *Inverter {
	return &Inverter{EntityBase: troupe.NewEntityBase("Inverter")}
}

func (v *Inverter) Transform(buf []troupe.StereoSample) {
	for i := range buf {
		buf[i][0] = -buf[i][0]
		buf[i][1] = -buf[i][1]
	}
}
