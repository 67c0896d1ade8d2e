package troupe

import "testing"

func TestGenerationBufferMergeSums(t *testing.T) {
	var b GenerationBuffer
	b.Resize(4)
	b.Clear()
	b.Merge([]StereoSample{{1, 2}, {3, 4}, {5, 6}, {7, 8}})
	b.Merge([]StereoSample{{1, 1}, {1, 1}, {1, 1}, {1, 1}})
	want := []StereoSample{{2, 3}, {4, 5}, {6, 7}, {8, 9}}
	for i, f := range b.Frames() {
		if f != want[i] {
			t.Fatalf("frame %d: got %v, want %v", i, f, want[i])
		}
	}
}

func TestGenerationBufferMergeEmptyIsNoOp(t *testing.T) {
	var b GenerationBuffer
	b.Resize(2)
	b.Clear()
	b.Merge([]StereoSample{{1, 1}, {1, 1}})
	b.Merge(nil)
	for i, f := range b.Frames() {
		if f != (StereoSample{1, 1}) {
			t.Fatalf("frame %d changed: %v", i, f)
		}
	}
}

func TestGenerationBufferMergeScaled(t *testing.T) {
	var b GenerationBuffer
	b.Resize(2)
	b.Clear()
	b.MergeScaled([]StereoSample{{1, 2}, {3, 4}}, 0.5)
	want := []StereoSample{{0.5, 1}, {1.5, 2}}
	for i, f := range b.Frames() {
		if f != want[i] {
			t.Fatalf("frame %d: got %v, want %v", i, f, want[i])
		}
	}
}

func TestGenerationBufferCloneIsIndependent(t *testing.T) {
	var b GenerationBuffer
	b.Resize(1)
	b.Clear()
	b.Merge([]StereoSample{{1, 1}})
	clone := b.Clone()
	b.Clear()
	if clone[0] != (StereoSample{1, 1}) {
		t.Fatal("clone shares storage with the buffer")
	}
}

func TestGenerationBufferResizeBeyondBoundPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("oversized resize did not panic")
		}
	}()
	var b GenerationBuffer
	b.Resize(MaxBatchFrames + 1)
}
