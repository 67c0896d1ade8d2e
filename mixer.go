package troupe

import "github.com/viterin/vek/vek32"

// DefaultMixerLevel is the level a track gets when it is first registered.
const DefaultMixerLevel = 1.0

type mixerStrip struct {
	level         float64
	muted         bool
	relativeLevel float64
}

// Mixer holds per-track gain and mute state for the tracks feeding an
// aggregating track, and mixes their buffers with proportional weights. A
// track's weight is its level divided by the sum of every registered level;
// muting a track silences its contribution but its level still counts in the
// denominator. Owned and mutated only by the enclosing track's worker.
type Mixer struct {
	orderedTrackUids []TrackUid
	strips           map[TrackUid]*mixerStrip
	scratch          []float32
}

func NewMixer() *Mixer {
	return &Mixer{strips: make(map[TrackUid]*mixerStrip)}
}

// AddTrack registers a contributing track at the default level, unmuted.
func (m *Mixer) AddTrack(uid TrackUid) {
	if _, ok := m.strips[uid]; ok {
		return
	}
	m.orderedTrackUids = append(m.orderedTrackUids, uid)
	m.strips[uid] = &mixerStrip{level: DefaultMixerLevel}
	m.recalcRelativeLevels()
}

// RemoveTrack unregisters a track.
func (m *Mixer) RemoveTrack(uid TrackUid) {
	if _, ok := m.strips[uid]; !ok {
		return
	}
	delete(m.strips, uid)
	for i, u := range m.orderedTrackUids {
		if u == uid {
			m.orderedTrackUids = append(m.orderedTrackUids[:i], m.orderedTrackUids[i+1:]...)
			break
		}
	}
	m.recalcRelativeLevels()
}

// SetLevel sets a track's level, clamped to 0..1, and recomputes weights.
func (m *Mixer) SetLevel(uid TrackUid, level float64) {
	strip, ok := m.strips[uid]
	if !ok {
		return
	}
	strip.level = min(max(level, 0), 1)
	m.recalcRelativeLevels()
}

// SetMuted mutes or unmutes a track. Muting does not change any weight.
func (m *Mixer) SetMuted(uid TrackUid, muted bool) {
	if strip, ok := m.strips[uid]; ok {
		strip.muted = muted
	}
}

func (m *Mixer) Level(uid TrackUid) float64 {
	if strip, ok := m.strips[uid]; ok {
		return strip.level
	}
	return 0
}

func (m *Mixer) Muted(uid TrackUid) bool {
	if strip, ok := m.strips[uid]; ok {
		return strip.muted
	}
	return false
}

// TrackUids returns the registered tracks in registration order.
func (m *Mixer) TrackUids() []TrackUid { return m.orderedTrackUids }

// Mix adds source scaled by the track's relative level into dest. Muted
// tracks and tracks at the minimum level contribute nothing. When every
// level is zero the relative levels are stale, but then every strip is
// skipped anyway.
func (m *Mixer) Mix(uid TrackUid, source, dest []StereoSample) {
	assertBatchLen(source)
	strip, ok := m.strips[uid]
	if !ok {
		return
	}
	if strip.muted || strip.level == 0 {
		return
	}
	n := min(len(source), len(dest)) * 2
	if n == 0 {
		return
	}
	if cap(m.scratch) < n {
		m.scratch = make([]float32, MaxBatchFrames*2)
	}
	scaled := m.scratch[:n]
	vek32.MulNumber_Into(scaled, flatten(source)[:n], float32(strip.relativeLevel))
	vek32.Add_Inplace(flatten(dest)[:n], scaled)
}

func (m *Mixer) recalcRelativeLevels() {
	var total float64
	for _, strip := range m.strips {
		total += strip.level
	}
	if total <= 0 {
		return
	}
	for _, strip := range m.strips {
		strip.relativeLevel = strip.level / total
	}
}
