package postprocess

import (
	"github.com/pkg/errors"
	"github.com/yolostream/yolostream/preprocess"
)

// YOLOv8 defines the struct for post processing the output of YOLOv8 and
// YOLO11 detection models exported to ONNX.  Both share the same anchor free
// head producing a [1, 4+classes, anchors] tensor
type YOLOv8 struct {
	// Params are the Model configuration parameters
	Params YOLOv8Params
	// idGen provides the next number for each detection result ID
	idGen *IDGenerator
}

// YOLOv8Params defines the struct containing the YOLOv8 parameters to use
// for post processing operations
type YOLOv8Params struct {
	// BoxThreshold is the minimum probability score required for a bounding box
	// region to be considered for processing
	BoxThreshold float32
	// NMSThreshold is the Non-Maximum Suppression threshold used for defining
	// the maximum allowed Intersection Over Union (IoU) between two
	// bounding boxes for both to be kept
	NMSThreshold float32
	// MaxObjectNumber is the maximum number of objects detected that can be
	// returned
	MaxObjectNumber int
}

// YOLOv8COCOParams returns an instance of YOLOv8Params configured with
// default values for a Model trained on the COCO dataset featuring:
// - Box Threshold: 0.25
// - NMS Threshold: 0.45
// - Maximum Object Number: 300
func YOLOv8COCOParams() YOLOv8Params {
	return YOLOv8Params{
		BoxThreshold:    0.25,
		NMSThreshold:    0.45,
		MaxObjectNumber: 300,
	}
}

// NewYOLOv8 returns an instance of the YOLOv8 post processor
func NewYOLOv8(p YOLOv8Params) *YOLOv8 {
	return &YOLOv8{
		Params: p,
		idGen:  NewIDGenerator(),
	}
}

// candidates holds the boxes that passed the score threshold before NMS
type candidates struct {
	// filterBoxes are the box x, y, w, h in tensor coordinates
	filterBoxes []float32
	objProbs    []float32
	classID     []int
}

// DetectObjects takes the raw model output tensor, laid out channel major as
// [channels][anchors], and returns the detections in source image coordinates.
// A threshold of zero uses Params.BoxThreshold.  Candidates scoring below the
// threshold are discarded
func (y *YOLOv8) DetectObjects(output []float32, channels, anchors int,
	resizer *preprocess.Resizer, threshold float32) ([]DetectResult, error) {

	if channels <= 4 || anchors <= 0 {
		return nil, errors.Errorf("unexpected output shape [%d, %d]", channels, anchors)
	}

	if len(output) < channels*anchors {
		return nil, errors.Errorf("output has %d values, expected %d", len(output), channels*anchors)
	}

	if threshold <= 0 {
		threshold = y.Params.BoxThreshold
	}

	data := y.collect(output, channels, anchors, threshold)
	validCount := len(data.objProbs)

	if validCount == 0 {
		// no object detected
		return []DetectResult{}, nil
	}

	// indexArray is used to keep an index of detect objects contained in
	// the candidates
	indexArray := make([]int, validCount)

	for i := range indexArray {
		indexArray[i] = i
	}

	// create a unique set of ClassID (ie: eliminate any multiples found)
	classSet := make(map[int]bool)

	for _, id := range data.classID {
		classSet[id] = true
	}

	quickSortIndiceInverse(data.objProbs, 0, validCount-1, indexArray)

	for c := range classSet {
		nms(validCount, data.filterBoxes, data.classID, indexArray, c,
			y.Params.NMSThreshold)
	}

	// collate objects into a result for returning
	group := make([]DetectResult, 0)

	for i := 0; i < validCount; i++ {
		if indexArray[i] == -1 || len(group) >= y.Params.MaxObjectNumber {
			continue
		}

		n := indexArray[i]

		x1 := data.filterBoxes[n*4+0]
		y1 := data.filterBoxes[n*4+1]
		x2 := x1 + data.filterBoxes[n*4+2]
		y2 := y1 + data.filterBoxes[n*4+3]

		left, top := resizer.ToSource(x1, y1)
		right, bottom := resizer.ToSource(x2, y2)

		box := BoxRect{Left: left, Top: top, Right: right, Bottom: bottom}

		if !box.Valid() {
			continue
		}

		group = append(group, DetectResult{
			Box:         box,
			Probability: data.objProbs[i],
			Class:       data.classID[n],
			ID:          y.idGen.GetNext(),
		})
	}

	return group, nil
}

// collect scans every anchor for its best class and keeps those meeting the
// threshold
func (y *YOLOv8) collect(output []float32, channels, anchors int,
	threshold float32) *candidates {

	data := &candidates{}
	classNum := channels - 4

	for a := 0; a < anchors; a++ {

		maxScore := float32(-1)
		maxClassID := -1

		for c := 0; c < classNum; c++ {
			score := output[(4+c)*anchors+a]

			if score > maxScore {
				maxScore = score
				maxClassID = c
			}
		}

		if maxScore < threshold {
			continue
		}

		cx := output[0*anchors+a]
		cy := output[1*anchors+a]
		w := output[2*anchors+a]
		h := output[3*anchors+a]

		data.filterBoxes = append(data.filterBoxes, cx-w/2, cy-h/2, w, h)
		data.objProbs = append(data.objProbs, clamp(maxScore, 0, 1))
		data.classID = append(data.classID, maxClassID)
	}

	return data
}
