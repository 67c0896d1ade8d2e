package toys

import (
	"github.com/jkempas/troupe"
)

// busySink keeps the compiler from discarding BusyWork's spinning.
var busySink int

// BusyWork burns CPU on every generation request and produces silence. It
// exists to load-test the generation path.
type BusyWork struct {
	troupe.EntityBase
}

func NewBusyWork() *BusyWork {
	return &BusyWork{EntityBase: troupe.NewEntityBase("BusyWork")}
}

func (b *BusyWork) Generate(buf []troupe.StereoSample) bool {
	sum := 0
	for i := 0; i <= 100000; i++ {
		sum += i
	}
	busySink = sum
	for i := range buf {
		buf[i] = troupe.SilentSample
	}
	return false
}
