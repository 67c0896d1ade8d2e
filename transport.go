package troupe

// Defaults applied to a fresh transport, matching a plain 4/4 song at 120
// BPM rendered at CD-adjacent rates.
const (
	DefaultSampleRate = 44100
	DefaultTempo      = 120.0
)

// TimeSignature is beats per bar over the note value of one beat.
type TimeSignature struct {
	Numerator   int
	Denominator int
}

// Transport is the shared clock. It converts frame counts into musical time
// and hands every generation cycle its TimeRange. Owned and mutated only by
// the engine; timed units see each cycle's range read-only.
type Transport struct {
	sampleRate    int
	tempo         float64
	timeSignature TimeSignature
	position      float64 // in beats
}

func NewTransport() *Transport {
	return &Transport{
		sampleRate:    DefaultSampleRate,
		tempo:         DefaultTempo,
		timeSignature: TimeSignature{Numerator: 4, Denominator: 4},
	}
}

// Advance moves the clock forward by the given number of frames and returns
// the half-open range covered. Ranges from successive calls tile exactly.
func (t *Transport) Advance(frames int) TimeRange {
	start := t.position
	t.position += float64(frames) * t.tempo / 60.0 / float64(t.sampleRate)
	return TimeRange{Start: start, End: t.position}
}

// SkipToStart rewinds the clock to zero.
func (t *Transport) SkipToStart() { t.position = 0 }

func (t *Transport) Position() float64 { return t.position }

func (t *Transport) SampleRate() int { return t.sampleRate }

func (t *Transport) SetSampleRate(rate int) {
	if rate > 0 {
		t.sampleRate = rate
	}
}

func (t *Transport) Tempo() float64 { return t.tempo }

func (t *Transport) SetTempo(bpm float64) {
	if bpm > 0 {
		t.tempo = bpm
	}
}

func (t *Transport) TimeSignature() TimeSignature { return t.timeSignature }

func (t *Transport) SetTimeSignature(ts TimeSignature) {
	if ts.Numerator > 0 && ts.Denominator > 0 {
		t.timeSignature = ts
	}
}
