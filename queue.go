package troupe

import "sync"

// AudioQueue is the fixed-capacity ring buffer between the engine and the
// real-time audio callback. The engine force-pushes: on overflow the oldest
// frame is overwritten rather than blocking the generation path. Overflow is
// the caller's cue to log, not an error.
type AudioQueue struct {
	mu    sync.Mutex
	buf   []StereoSample
	head  int
	count int
}

func NewAudioQueue(capacity int) *AudioQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &AudioQueue{buf: make([]StereoSample, capacity)}
}

// ForcePush appends s, overwriting the oldest frame when full. It reports
// whether an overwrite happened.
func (q *AudioQueue) ForcePush(s StereoSample) (overwrote bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	tail := (q.head + q.count) % len(q.buf)
	q.buf[tail] = s
	if q.count == len(q.buf) {
		q.head = (q.head + 1) % len(q.buf)
		return true
	}
	q.count++
	return false
}

// Pop removes and returns the oldest frame. ok is false when empty.
func (q *AudioQueue) Pop() (s StereoSample, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == 0 {
		return SilentSample, false
	}
	s = q.buf[q.head]
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	return s, true
}

// Len reports the number of buffered frames.
func (q *AudioQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Cap reports the fixed capacity.
func (q *AudioQueue) Cap() int { return len(q.buf) }
