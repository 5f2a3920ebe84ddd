package render

import (
	"fmt"
	"github.com/pkg/errors"
	"github.com/yolostream/yolostream"
	"github.com/yolostream/yolostream/postprocess"
	"gocv.io/x/gocv"
	"image"
	"image/color"
	"math"
)

// Annotator draws the live stream overlay, an orange box around each
// detection with a green "label NN%" caption above it
type Annotator struct {
	// Labels maps detection class IDs to names
	Labels yolostream.Vocabulary
	// BoxColor is the bounding box color
	BoxColor color.RGBA
	// LineThickness of the bounding box
	LineThickness int
	// Font used for the caption
	Font Font
}

// NewAnnotator returns an Annotator with the stream overlay style
func NewAnnotator(labels yolostream.Vocabulary) *Annotator {
	return &Annotator{
		Labels:        labels,
		BoxColor:      Orange,
		LineThickness: 2,
		Font:          StreamFont(),
	}
}

// Caption returns the text drawn for a detection, the confidence is
// rounded to a whole percentage
func (a *Annotator) Caption(det postprocess.DetectResult) string {
	return fmt.Sprintf("%s %d%%", a.Labels.Label(det.Class),
		int(math.Round(float64(det.Probability)*100)))
}

// Annotate draws every detection onto img in place.  The same frame and
// detections always produce the same pixels.  A detection with a class ID
// outside the vocabulary panics
func (a *Annotator) Annotate(img *gocv.Mat, dets []postprocess.DetectResult) error {

	if img == nil || img.Empty() {
		return errors.New("cannot annotate empty frame")
	}

	for _, det := range dets {

		gocv.Rectangle(img, det.Box.Rect(), a.BoxColor, a.LineThickness)

		text := a.Caption(det)
		textSize := gocv.GetTextSize(text, a.Font.Face, a.Font.Scale, a.Font.Thickness)

		// keep the caption baseline low enough that the text is not cut off
		// by the top edge of the frame
		y := det.Box.Top - a.Font.BottomPad

		if y < textSize.Y {
			y = textSize.Y
		}

		gocv.PutTextWithParams(img, text, image.Pt(det.Box.Left, y),
			a.Font.Face, a.Font.Scale, a.Font.Color, a.Font.Thickness,
			a.Font.LineType, false)
	}

	return nil
}
