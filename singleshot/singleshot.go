// Package singleshot runs detection on a single uploaded image and returns
// the rendered result both persisted and base64 encoded for inline display.
package singleshot

import (
	"bytes"
	"context"
	"encoding/base64"
	"github.com/pkg/errors"
	"github.com/yolostream/yolostream"
	"github.com/yolostream/yolostream/postprocess"
	"github.com/yolostream/yolostream/render"
	"github.com/yolostream/yolostream/storage"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"
)

// encodeExt maps a filename extension to the codec used to write the result
var encodeExt = map[string]gocv.FileExt{
	".jpg":  gocv.JPEGFileExt,
	".jpeg": gocv.JPEGFileExt,
	".png":  gocv.PNGFileExt,
	".bmp":  gocv.FileExt(".bmp"),
	".webp": gocv.FileExt(".webp"),
	".tif":  gocv.FileExt(".tiff"),
	".tiff": gocv.FileExt(".tiff"),
}

// mimeTypes of the encoded results
var mimeTypes = map[gocv.FileExt]string{
	gocv.JPEGFileExt:      "image/jpeg",
	gocv.PNGFileExt:       "image/png",
	gocv.FileExt(".bmp"):  "image/bmp",
	gocv.FileExt(".webp"): "image/webp",
	gocv.FileExt(".tiff"): "image/tiff",
}

// Artifact is the outcome of detecting on one image
type Artifact struct {
	// Filename is the stored name of the result
	Filename string
	// ResultPath is where the result was written
	ResultPath string
	// MIMEType of Image
	MIMEType string
	// Image is the encoded rendered result
	Image []byte
	// Base64 is Image in standard base64
	Base64 string
	// Detections found in the image
	Detections []postprocess.DetectResult
}

// DataURI returns the result as an inline data URI
func (a *Artifact) DataURI() string {
	return "data:" + a.MIMEType + ";base64," + a.Base64
}

// Detector runs single image detection using the model's own default
// threshold and built in box style, which differ from the live stream
type Detector struct {
	det       yolostream.Detector
	labels    yolostream.Vocabulary
	store     *storage.Store
	threshold float32
	font      render.Font
	logger    *zap.SugaredLogger
}

// New returns a Detector persisting results to store
func New(det yolostream.Detector, labels yolostream.Vocabulary,
	store *storage.Store, logger *zap.SugaredLogger) *Detector {

	return &Detector{
		det:       det,
		labels:    labels,
		store:     store,
		threshold: yolostream.DefaultThreshold,
		font:      render.DefaultFont(),
		logger:    logger,
	}
}

// Detect decodes data, runs detection and renders the result, which is
// written to the result directory under filename, replacing any earlier
// result of that name.  Bytes that are not an image return an error wrapping
// yolostream.ErrDecode
func (d *Detector) Detect(ctx context.Context, data []byte, filename string) (*Artifact, error) {

	name, err := storage.CleanName(filename)

	if err != nil {
		return nil, err
	}

	img, err := Decode(data)

	if err != nil {
		return nil, errors.Wrapf(err, "%s", name)
	}

	defer img.Close()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dets, err := d.det.Detect(img, d.threshold)

	if err != nil {
		return nil, errors.Wrapf(err, "error detecting objects in %s", name)
	}

	render.Plot(&img, dets, d.labels, d.font)

	ext, name := resultFormat(name)

	buf, err := gocv.IMEncode(ext, img)

	if err != nil {
		return nil, errors.Wrapf(err, "error encoding result %s", name)
	}

	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())

	path, err := d.store.SaveResult(name, out)

	if err != nil {
		return nil, err
	}

	d.logger.Infow("image detection complete", "file", name,
		"detections", len(dets), "result", path)

	return &Artifact{
		Filename:   name,
		ResultPath: path,
		MIMEType:   mimeTypes[ext],
		Image:      out,
		Base64:     base64.StdEncoding.EncodeToString(out),
		Detections: dets,
	}, nil
}

// resultFormat picks the encoder from the file extension.  Names without a
// supported image extension get ".jpg" appended
func resultFormat(name string) (gocv.FileExt, string) {

	if ext, ok := encodeExt[strings.ToLower(filepath.Ext(name))]; ok {
		return ext, name
	}

	return gocv.JPEGFileExt, name + ".jpg"
}

// Decode converts uploaded bytes into a BGR Mat.  OpenCV's decoders are tried
// first, then the Go image decoders for formats an OpenCV build may lack
func Decode(data []byte) (gocv.Mat, error) {

	if len(data) == 0 {
		return gocv.Mat{}, errors.Wrap(yolostream.ErrDecode, "no data")
	}

	img, err := gocv.IMDecode(data, gocv.IMReadColor)

	if err == nil && !img.Empty() {
		return img, nil
	}

	if err == nil {
		img.Close()
	}

	decoded, format, err := image.Decode(bytes.NewReader(data))

	if err != nil {
		return gocv.Mat{}, errors.Wrapf(yolostream.ErrDecode, "%v", err)
	}

	mat, err := gocv.ImageToMatRGB(decoded)

	if err != nil {
		return gocv.Mat{}, errors.Wrapf(yolostream.ErrDecode, "converting %s: %v", format, err)
	}

	return mat, nil
}
