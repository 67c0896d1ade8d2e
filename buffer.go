package troupe

import (
	"unsafe"

	"github.com/viterin/vek/vek32"
)

// GenerationBuffer is a reusable working buffer for one generation cycle. It
// never grows beyond MaxBatchFrames.
type GenerationBuffer struct {
	frames  []StereoSample
	scratch []float32
}

// Resize sets the buffer length to n frames, reusing capacity. Contents are
// unspecified afterwards; call Clear before merging into it.
func (g *GenerationBuffer) Resize(n int) {
	if n > MaxBatchFrames {
		panic("troupe: GenerationBuffer resized beyond the batch bound")
	}
	if cap(g.frames) < n {
		g.frames = make([]StereoSample, n, MaxBatchFrames)
	}
	g.frames = g.frames[:n]
}

// Clear zeroes the buffer.
func (g *GenerationBuffer) Clear() {
	clear(g.frames)
}

// Merge adds src elementwise into the buffer. src may be shorter than the
// buffer; a zero-length src is a no-op. Addition is commutative, so sources
// may complete in any order.
func (g *GenerationBuffer) Merge(src []StereoSample) {
	assertBatchLen(src)
	if len(src) == 0 {
		return
	}
	vek32.Add_Inplace(flatten(g.frames[:len(src)]), flatten(src))
}

// MergeScaled adds src*gain elementwise into the buffer.
func (g *GenerationBuffer) MergeScaled(src []StereoSample, gain float32) {
	assertBatchLen(src)
	if len(src) == 0 {
		return
	}
	n := len(src) * 2
	if cap(g.scratch) < n {
		g.scratch = make([]float32, MaxBatchFrames*2)
	}
	g.scratch = g.scratch[:n]
	vek32.MulNumber_Into(g.scratch, flatten(src), gain)
	vek32.Add_Inplace(flatten(g.frames[:len(src)]), g.scratch)
}

// Copy replaces the buffer contents with src, resizing to match.
func (g *GenerationBuffer) Copy(src []StereoSample) {
	assertBatchLen(src)
	g.Resize(len(src))
	copy(g.frames, src)
}

// Frames returns the buffer contents. The slice is only valid until the next
// Resize; callers that publish it must Clone first.
func (g *GenerationBuffer) Frames() []StereoSample { return g.frames }

// Clone returns a copy of the buffer contents safe to hand to another actor.
func (g *GenerationBuffer) Clone() []StereoSample {
	out := make([]StereoSample, len(g.frames))
	copy(out, g.frames)
	return out
}

// flatten reinterprets a stereo buffer as its underlying interleaved floats,
// so the vek kernels can run over it without copying.
func flatten(s []StereoSample) []float32 {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice(&s[0][0], len(s)*2)
}
