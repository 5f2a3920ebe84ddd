package render

import (
	"github.com/yolostream/yolostream"
	"github.com/yolostream/yolostream/postprocess"
	"gocv.io/x/gocv"
	"go.viam.com/test"
	"testing"
)

// blankFrame returns a black BGR frame
func blankFrame(rows, cols int) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), rows, cols, gocv.MatTypeCV8UC3)
}

func pixel(img gocv.Mat, row, col int) []uint8 {
	v := img.GetVecbAt(row, col)
	return []uint8{v[0], v[1], v[2]}
}

func TestAnnotateNoDetections(t *testing.T) {

	img := blankFrame(120, 160)
	defer img.Close()

	before := img.ToBytes()

	ann := NewAnnotator(yolostream.COCOLabels)
	err := ann.Annotate(&img, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.ToBytes(), test.ShouldResemble, before)
}

func TestAnnotateDrawsBoxAndCaption(t *testing.T) {

	img := blankFrame(120, 160)
	defer img.Close()

	det := postprocess.DetectResult{
		Class:       0,
		Probability: 0.876,
		Box:         postprocess.BoxRect{Left: 30, Top: 40, Right: 100, Bottom: 110},
	}

	ann := NewAnnotator(yolostream.COCOLabels)
	test.That(t, ann.Caption(det), test.ShouldEqual, "person 88%")

	err := ann.Annotate(&img, []postprocess.DetectResult{det})
	test.That(t, err, test.ShouldBeNil)

	// box edge is orange in BGR order
	test.That(t, pixel(img, 40, 60), test.ShouldResemble, []uint8{0, 165, 255})
	test.That(t, pixel(img, 110, 60), test.ShouldResemble, []uint8{0, 165, 255})

	// interior untouched
	test.That(t, pixel(img, 75, 65), test.ShouldResemble, []uint8{0, 0, 0})

	// caption sits above the box and is only ever green
	green := 0

	for row := 20; row < 32; row++ {
		for col := 30; col < 100; col++ {
			p := pixel(img, row, col)

			if p[0] == 0 && p[1] == 255 && p[2] == 0 {
				green++
			}
		}
	}

	test.That(t, green, test.ShouldBeGreaterThan, 0)
}

func TestAnnotateDeterministic(t *testing.T) {

	dets := []postprocess.DetectResult{
		{Class: 2, Probability: 0.7, Box: postprocess.BoxRect{Left: 5, Top: 2, Right: 60, Bottom: 50}},
		{Class: 82, Probability: 0.99, Box: postprocess.BoxRect{Left: 70, Top: 60, Right: 150, Bottom: 115}},
	}

	ann := NewAnnotator(yolostream.COCOLabels)

	a := blankFrame(120, 160)
	defer a.Close()
	b := blankFrame(120, 160)
	defer b.Close()

	test.That(t, ann.Annotate(&a, dets), test.ShouldBeNil)
	test.That(t, ann.Annotate(&b, dets), test.ShouldBeNil)
	test.That(t, a.ToBytes(), test.ShouldResemble, b.ToBytes())
}

func TestAnnotateCaptionAtTopEdge(t *testing.T) {

	img := blankFrame(120, 160)
	defer img.Close()

	det := postprocess.DetectResult{
		Class:       1,
		Probability: 0.9,
		Box:         postprocess.BoxRect{Left: 10, Top: 0, Right: 80, Bottom: 60},
	}

	ann := NewAnnotator(yolostream.COCOLabels)
	test.That(t, ann.Annotate(&img, []postprocess.DetectResult{det}), test.ShouldBeNil)

	// the caption is pushed down into the frame rather than clipped away
	green := 0

	for row := 0; row < 20; row++ {
		for col := 10; col < 100; col++ {
			p := pixel(img, row, col)

			if p[0] == 0 && p[1] == 255 && p[2] == 0 {
				green++
			}
		}
	}

	test.That(t, green, test.ShouldBeGreaterThan, 0)
}

func TestAnnotateErrors(t *testing.T) {

	ann := NewAnnotator(yolostream.COCOLabels)

	empty := gocv.NewMat()
	defer empty.Close()
	test.That(t, ann.Annotate(&empty, nil), test.ShouldNotBeNil)

	img := blankFrame(50, 50)
	defer img.Close()

	bad := []postprocess.DetectResult{
		{Class: 500, Probability: 0.9, Box: postprocess.BoxRect{Left: 1, Top: 1, Right: 10, Bottom: 10}},
	}

	test.That(t, func() { ann.Annotate(&img, bad) }, test.ShouldPanic)
}

func TestPlot(t *testing.T) {

	img := blankFrame(200, 200)
	defer img.Close()

	dets := []postprocess.DetectResult{
		{Class: 0, Probability: 0.5, Box: postprocess.BoxRect{Left: 50, Top: 60, Right: 150, Bottom: 180}},
	}

	Plot(&img, dets, yolostream.COCOLabels, DefaultFont())

	clr := ClassColor(0)
	test.That(t, pixel(img, 120, 50), test.ShouldResemble, []uint8{clr.B, clr.G, clr.R})
	test.That(t, pixel(img, 120, 100), test.ShouldResemble, []uint8{0, 0, 0})
}

func TestPlotLineThickness(t *testing.T) {
	test.That(t, PlotLineThickness(100, 100), test.ShouldEqual, 2)
	test.That(t, PlotLineThickness(1280, 720), test.ShouldEqual, 3)
}

func TestClassColor(t *testing.T) {
	test.That(t, ClassColor(0), test.ShouldResemble, classColors[0])
	test.That(t, ClassColor(len(classColors)), test.ShouldResemble, classColors[0])
	test.That(t, ClassColor(-1), test.ShouldResemble, classColors[1])
}

func TestCaptionRounding(t *testing.T) {

	ann := NewAnnotator(yolostream.COCOLabels)

	tests := []struct {
		prob float32
		want string
	}{
		{0.6, "person 60%"},
		{0.604, "person 60%"},
		{0.876, "person 88%"},
		{0.995, "person 100%"},
		{1, "person 100%"},
	}

	for _, tt := range tests {
		det := postprocess.DetectResult{Class: 0, Probability: tt.prob}
		test.That(t, ann.Caption(det), test.ShouldEqual, tt.want)
	}
}
