package troupe

import "testing"

func TestMixerWeightsAreProportional(t *testing.T) {
	m := NewMixer()
	m.AddTrack(1)
	m.AddTrack(2)
	dest := make([]StereoSample, 2)
	m.Mix(1, []StereoSample{{1, 1}, {1, 1}}, dest)
	m.Mix(2, []StereoSample{{0.5, 0.5}, {0.5, 0.5}}, dest)
	// Equal levels give each track half weight.
	expectValue(t, dest, 0.75)
}

func TestMixerMutedTrackStillCountsInDenominator(t *testing.T) {
	m := NewMixer()
	m.AddTrack(1)
	m.AddTrack(2)
	m.SetMuted(2, true)
	dest := make([]StereoSample, 1)
	m.Mix(1, []StereoSample{{1, 1}}, dest)
	m.Mix(2, []StereoSample{{1, 1}}, dest)
	// Track 2 contributes nothing but its level still halves track 1.
	expectValue(t, dest, 0.5)
}

func TestMixerZeroLevelSkips(t *testing.T) {
	m := NewMixer()
	m.AddTrack(1)
	m.SetLevel(1, 0)
	dest := make([]StereoSample, 1)
	m.Mix(1, []StereoSample{{1, 1}}, dest)
	expectValue(t, dest, 0)
}

func TestMixerLevelIsClamped(t *testing.T) {
	m := NewMixer()
	m.AddTrack(1)
	m.SetLevel(1, 1.5)
	if got := m.Level(1); got != 1 {
		t.Fatalf("level not clamped: got %v", got)
	}
	m.SetLevel(1, -0.5)
	if got := m.Level(1); got != 0 {
		t.Fatalf("level not clamped: got %v", got)
	}
}

func TestMixerUnknownTrackIsIgnored(t *testing.T) {
	m := NewMixer()
	dest := make([]StereoSample, 1)
	m.Mix(42, []StereoSample{{1, 1}}, dest)
	expectValue(t, dest, 0)
}

func TestMixerRemoveTrackRebalances(t *testing.T) {
	m := NewMixer()
	m.AddTrack(1)
	m.AddTrack(2)
	m.RemoveTrack(2)
	dest := make([]StereoSample, 1)
	m.Mix(1, []StereoSample{{1, 1}}, dest)
	expectValue(t, dest, 1)
}
