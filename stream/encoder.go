package stream

import (
	"github.com/pkg/errors"
	"github.com/yolostream/yolostream"
	"gocv.io/x/gocv"
)

// ErrEncode is returned when a frame cannot be encoded
var ErrEncode = errors.New("frame encode failed")

// Encoder converts an annotated frame into a stream Chunk
type Encoder interface {
	Encode(img gocv.Mat) (Chunk, error)
}

// JPEGEncoder encodes frames as JPEG at a fixed quality
type JPEGEncoder struct {
	// Quality is the JPEG quality from 0 to 100
	Quality int
}

// NewJPEGEncoder returns an encoder using yolostream.JPEGQuality
func NewJPEGEncoder() *JPEGEncoder {
	return &JPEGEncoder{Quality: yolostream.JPEGQuality}
}

// Encode compresses the frame to JPEG
func (e *JPEGEncoder) Encode(img gocv.Mat) (Chunk, error) {

	if img.Empty() {
		return Chunk{}, errors.Wrap(ErrEncode, "empty frame")
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img,
		[]int{gocv.IMWriteJpegQuality, e.Quality})

	if err != nil {
		return Chunk{}, errors.Wrapf(ErrEncode, "%v", err)
	}

	defer buf.Close()

	// copy out of the native buffer before it is freed
	data := buf.GetBytes()
	payload := make([]byte, len(data))
	copy(payload, data)

	if len(payload) == 0 {
		return Chunk{}, errors.Wrap(ErrEncode, "encoder produced no data")
	}

	return Chunk{ContentType: PartContentType, Payload: payload}, nil
}
