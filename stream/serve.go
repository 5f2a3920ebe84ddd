package stream

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"io"
	"net/http"
)

// writeHeaders sets the response headers of a multipart stream
func writeHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", ContentType)
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
}

// Serve writes the pipeline to w as a multipart stream until the source is
// exhausted, a frame fails or the client goes away, then closes the
// pipeline.  The first chunk is produced before any header is written so a
// source that cannot be opened is returned as an error with nothing written
// to w, letting the caller choose the status.  Once streaming has started
// failures are logged and Serve returns nil
func Serve(w http.ResponseWriter, r *http.Request, p *Pipeline, logger *zap.SugaredLogger) error {

	defer func() {
		p.Close()

		st := p.Stats()
		logger.Infow("stream finished", "stream", p.ID(), "state", p.State().String(),
			"frames", st.Frames, "bytes", st.Bytes,
			"inference_mean", st.InferenceMean, "inference_stddev", st.InferenceStdDev)
	}()

	ctx := r.Context()
	chunk, err := p.Next(ctx)

	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}

	writeHeaders(w)
	flusher, _ := w.(http.Flusher)

	for err == nil {
		if _, werr := w.Write(chunk.Bytes()); werr != nil {
			logger.Debugw("client write failed", "stream", p.ID(), "error", werr)
			return nil
		}

		if flusher != nil {
			flusher.Flush()
		}

		chunk, err = p.Next(ctx)
	}

	if !errors.Is(err, io.EOF) {
		logger.Debugw("stream ended early", "stream", p.ID(), "error", err)
	}

	return nil
}
