package toys

import (
	"math"

	"github.com/jkempas/troupe"
)

// Drone is a control source: a 1 Hz oscillator whose output never reaches
// the mix. Each generation cycle advances the oscillator, and Work emits the
// latest value as a control change whenever it moved. Link it to another
// entity's parameter to sweep that parameter slowly.
//
// Work runs before Generate each cycle, so the emitted value is always one
// cycle behind the oscillator.
type Drone struct {
	troupe.EntityBase
	sampleRate int
	phase      float64
	value      troupe.ControlValue
	lastValue  troupe.ControlValue
	emitted    bool
}

const droneFrequency = 1.0

func NewDrone(sampleRate int) *Drone {
	if sampleRate <= 0 {
		sampleRate = troupe.DefaultSampleRate
	}
	return &Drone{EntityBase: troupe.NewEntityBase("Drone"), sampleRate: sampleRate}
}

func (d *Drone) Generate(buf []troupe.StereoSample) bool {
	for i := range buf {
		buf[i] = troupe.SilentSample
	}
	// Normalize the bipolar sine to the 0..1 control range.
	d.value = troupe.ControlValue((math.Sin(2*math.Pi*d.phase) + 1) / 2)
	d.phase += droneFrequency * float64(len(buf)) / float64(d.sampleRate)
	d.phase -= math.Floor(d.phase)
	return false
}

func (d *Drone) Work(r troupe.TimeRange, emitMidi troupe.MidiEventFn, emitControl troupe.ControlEventFn) {
	if !d.emitted || d.value != d.lastValue {
		emitControl(d.value)
		d.lastValue = d.value
		d.emitted = true
	}
}
