package stream

import (
	"github.com/pkg/errors"
	"github.com/yolostream/yolostream"
	"github.com/yolostream/yolostream/postprocess"
	"github.com/yolostream/yolostream/source"
	"gocv.io/x/gocv"
	"sync"
)

// step is one read of a fakeSource, a nil error yields a frame
type step struct {
	err error
}

// fakeSource replays steps and counts reads and closes
type fakeSource struct {
	mu     sync.Mutex
	steps  []step
	reads  int
	closes int
	// endless keeps yielding frames once the steps run out
	endless bool
}

func (f *fakeSource) Next() (gocv.Mat, error) {

	f.mu.Lock()
	defer f.mu.Unlock()

	f.reads++

	if f.reads > len(f.steps) {
		if !f.endless {
			return gocv.Mat{}, yolostream.ErrEndOfStream
		}
	} else if err := f.steps[f.reads-1].err; err != nil {
		return gocv.Mat{}, err
	}

	return testFrame(), nil
}

func (f *fakeSource) Close() error {

	f.mu.Lock()
	defer f.mu.Unlock()

	f.closes++
	return nil
}

func (f *fakeSource) counts() (int, int) {

	f.mu.Lock()
	defer f.mu.Unlock()

	return f.reads, f.closes
}

// opener returns an Opener handing out src and counting calls
func opener(src *fakeSource, opens *int) source.Opener {
	return func() (source.FrameSource, error) {
		*opens++
		return src, nil
	}
}

func failingOpener(opens *int) source.Opener {
	return func() (source.FrameSource, error) {
		*opens++
		return nil, errors.Wrap(yolostream.ErrSourceUnavailable, "camera 0 is in use")
	}
}

// frames builds n decodable steps
func frames(n int) []step {
	return make([]step, n)
}

// testFrame is a grey 64x48 BGR frame
func testFrame() gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(90, 90, 90, 0), 48, 64, gocv.MatTypeCV8UC3)
}

// fakeDetector returns dets for every frame and fails on call failOn
type fakeDetector struct {
	dets   []postprocess.DetectResult
	failOn int
	calls  int
	// thresholds records the threshold of every call
	thresholds []float32
}

func (f *fakeDetector) Detect(img gocv.Mat, threshold float32) ([]postprocess.DetectResult, error) {

	f.calls++
	f.thresholds = append(f.thresholds, threshold)

	if f.failOn > 0 && f.calls == f.failOn {
		return nil, errors.New("inference failed")
	}

	return f.dets, nil
}
