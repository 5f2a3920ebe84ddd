// Package stream turns a frame source into a multipart JPEG stream of
// annotated frames.
package stream

import (
	"bytes"
	"strconv"
)

const (
	// Boundary separates the parts of the multipart stream
	Boundary = "frame"

	// ContentType is the response content type of a stream
	ContentType = "multipart/x-mixed-replace; boundary=" + Boundary

	// PartContentType is the content type of every part
	PartContentType = "image/jpeg"
)

// Chunk is one encoded frame of a stream
type Chunk struct {
	// ContentType of the payload
	ContentType string
	// Payload is the encoded image
	Payload []byte
}

// Bytes returns the chunk framed as a self delimiting multipart part
func (c Chunk) Bytes() []byte {

	var buf bytes.Buffer
	buf.Grow(len(c.Payload) + 96)

	buf.WriteString("--" + Boundary + "\r\n")
	buf.WriteString("Content-Type: " + c.ContentType + "\r\n")
	buf.WriteString("Content-Length: " + strconv.Itoa(len(c.Payload)) + "\r\n\r\n")
	buf.Write(c.Payload)
	buf.WriteString("\r\n")

	return buf.Bytes()
}
