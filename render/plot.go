package render

import (
	"fmt"
	"github.com/yolostream/yolostream"
	"github.com/yolostream/yolostream/postprocess"
	"gocv.io/x/gocv"
	"image"
	"image/color"
	"math"
)

// boxLabel defines where the detection object label should be rendered on
// source image
type boxLabel struct {
	rect    image.Rectangle
	clr     color.RGBA
	text    string
	textPos image.Point
}

// ClassColor returns the palette color for a class ID
func ClassColor(class int) color.RGBA {

	if class < 0 {
		class = -class
	}

	return classColors[class%len(classColors)]
}

// PlotLineThickness scales the box line width to the image size, two pixels
// being the minimum
func PlotLineThickness(width, height int) int {

	lw := int(math.Round(float64(width+height) / 2 * 0.003))

	if lw < 2 {
		lw = 2
	}

	return lw
}

// Plot renders detections in the still image style, each box colored by
// class with a filled label box holding "label 0.87" in white.  Labels that
// would leave the top of the image are drawn inside the box instead
func Plot(img *gocv.Mat, dets []postprocess.DetectResult,
	labels yolostream.Vocabulary, font Font) {

	lineThickness := PlotLineThickness(img.Cols(), img.Rows())

	// keep a record of all box labels for later rendering
	boxLabels := make([]boxLabel, 0, len(dets))

	// draw detection boxes
	for _, det := range dets {

		useClr := ClassColor(det.Class)

		// draw rectangle around detected object
		gocv.Rectangle(img, det.Box.Rect(), useClr, lineThickness)

		// create text for label
		text := fmt.Sprintf("%s %.2f", labels.Label(det.Class), det.Probability)
		textSize := gocv.GetTextSize(text, font.Face, font.Scale, font.Thickness)

		boxHeight := textSize.Y + font.TopPad + font.BottomPad
		top := det.Box.Top - boxHeight

		// no room above the box so place the label inside it
		if top < 0 {
			top = det.Box.Top
		}

		left := det.Box.Left - lineThickness/2

		bRect := image.Rect(left, top,
			left+textSize.X+font.LeftPad+font.RightPad, top+boxHeight)

		boxLabels = append(boxLabels, boxLabel{
			rect:    bRect,
			clr:     useClr,
			text:    text,
			textPos: image.Pt(left+font.LeftPad, top+boxHeight-font.BottomPad),
		})
	}

	// draw all precalculated box labels so they are the top most layer on the
	// image and don't get overlapped by neighbouring boxes
	for _, box := range boxLabels {
		// draw box text gets written on
		gocv.Rectangle(img, box.rect, box.clr, -1)

		// Draw the label over box
		gocv.PutTextWithParams(img, box.text, box.textPos,
			font.Face, font.Scale, font.Color, font.Thickness,
			font.LineType, false)
	}
}
