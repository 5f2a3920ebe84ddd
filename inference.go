package yolostream

import (
	"github.com/pkg/errors"
	"github.com/yolostream/yolostream/postprocess"
	"github.com/yolostream/yolostream/preprocess"
	"gocv.io/x/gocv"
	"image"
)

// Detect runs the network on a BGR frame and returns the detections scoring
// at least threshold, in frame pixel coordinates.  A threshold of zero uses
// DefaultThreshold.  The frame is not modified
func (r *Runtime) Detect(img gocv.Mat, threshold float32) ([]postprocess.DetectResult, error) {

	if !r.loaded {
		return nil, errors.New("runtime is closed")
	}

	if img.Empty() {
		return nil, errors.New("empty frame")
	}

	if img.Channels() != 3 {
		return nil, errors.Errorf("expected 3 channel frame, got %d", img.Channels())
	}

	// reuse the resizer whilst the frame size is unchanged, which is always
	// the case for a single camera or video file
	if r.resizer == nil || !r.resizer.Fits(img.Cols(), img.Rows()) {
		if r.resizer != nil {
			r.resizer.Close()
		}

		r.resizer = preprocess.NewResizer(img.Cols(), img.Rows(),
			r.inputSize, r.inputSize)
	}

	r.resizer.LetterBoxResize(img, &r.letterbox, preprocess.LetterBoxColor)

	// scale to [0,1] and convert BGR to RGB
	blob := gocv.BlobFromImage(r.letterbox, 1.0/255.0,
		image.Pt(r.inputSize, r.inputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	r.net.SetInput(blob, "")

	output := r.net.Forward("")
	defer output.Close()

	channels, anchors, err := outputShape(output.Size())

	if err != nil {
		return nil, err
	}

	data, err := output.DataPtrFloat32()

	if err != nil {
		return nil, errors.Wrap(err, "error reading network output")
	}

	return r.post.DetectObjects(data, channels, anchors, r.resizer, threshold)
}

// outputShape checks the network output is a single [1, 4+classes, anchors]
// tensor and returns its channel and anchor counts
func outputShape(dims []int) (int, int, error) {

	if len(dims) != 3 || dims[0] != 1 {
		return 0, 0, errors.Errorf("unexpected output shape %v", dims)
	}

	if dims[1] <= 4 || dims[2] <= 0 {
		return 0, 0, errors.Errorf("unexpected output shape %v", dims)
	}

	return dims[1], dims[2], nil
}
