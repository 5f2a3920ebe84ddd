package server

import (
	"bytes"
	"encoding/json"
	"github.com/pkg/errors"
	"github.com/yolostream/yolostream"
	"github.com/yolostream/yolostream/storage"
	"github.com/yolostream/yolostream/stream"
	"html/template"
	"io"
	"mime/multipart"
	"net/http"
)

// indexData is rendered into the index page
type indexData struct {
	// DetectedImage is a data URI of the last image result
	DetectedImage template.URL
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderIndex(w, indexData{})
}

func (s *Server) renderIndex(w http.ResponseWriter, data indexData) {

	var buf bytes.Buffer

	if err := s.index.Execute(&buf, data); err != nil {
		s.logger.Errorw("error rendering index", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (s *Server) handleVideoFeed(w http.ResponseWriter, r *http.Request) {

	p := stream.NewPipeline(s.cfg.Camera, s.cfg.StreamDetector, s.annotator,
		stream.NewJPEGEncoder(), stream.WithLogger(s.logger), stream.WithName("camera"))

	if err := stream.Serve(w, r, p, s.logger); err != nil {
		s.fail(w, err)
	}
}

func (s *Server) handleDetectImage(w http.ResponseWriter, r *http.Request) {

	file, header, ok := s.formFile(w, r, "image")

	if !ok {
		return
	}

	defer file.Close()

	data, err := io.ReadAll(file)

	if err != nil {
		s.fail(w, errors.Wrap(err, "error reading upload"))
		return
	}

	if _, err := s.cfg.Store.SaveUpload(header.Filename, bytes.NewReader(data)); err != nil {
		s.fail(w, err)
		return
	}

	art, err := s.single.Detect(r.Context(), data, header.Filename)

	if err != nil {
		s.fail(w, err)
		return
	}

	s.renderIndex(w, indexData{DetectedImage: template.URL(art.DataURI())})
}

func (s *Server) handleDetectVideo(w http.ResponseWriter, r *http.Request) {

	file, header, ok := s.formFile(w, r, "video")

	if !ok {
		return
	}

	path, err := s.cfg.Store.SaveUpload(header.Filename, file)
	file.Close()

	if err != nil {
		s.fail(w, err)
		return
	}

	p := stream.NewPipeline(s.cfg.OpenVideo(path), s.cfg.UploadDetector, s.annotator,
		stream.NewJPEGEncoder(), stream.WithLogger(s.logger), stream.WithName(path))

	if err := stream.Serve(w, r, p, s.logger); err != nil {
		s.fail(w, err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"classes": s.cfg.Labels.Len(),
	})
}

// formFile returns the uploaded file in field.  A missing field or empty
// file redirects back to the index and returns false
func (s *Server) formFile(w http.ResponseWriter, r *http.Request,
	field string) (multipart.File, *multipart.FileHeader, bool) {

	if r.ContentLength > s.cfg.MaxUpload {
		s.fail(w, &http.MaxBytesError{Limit: s.cfg.MaxUpload})
		return nil, nil, false
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUpload)

	file, header, err := r.FormFile(field)

	if err != nil {
		var tooLarge *http.MaxBytesError

		if errors.As(err, &tooLarge) {
			s.fail(w, err)
			return nil, nil, false
		}

		// missing field, or not a multipart form at all
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return nil, nil, false
	}

	if header.Filename == "" || header.Size == 0 {
		file.Close()
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return nil, nil, false
	}

	return file, header, true
}

// fail logs err and writes the matching status
func (s *Server) fail(w http.ResponseWriter, err error) {

	status := statusCode(err)

	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		s.logger.Errorw("request failed", "error", err)
	} else {
		s.logger.Warnw("request rejected", "status", status, "error", err)
	}

	http.Error(w, http.StatusText(status)+": "+err.Error(), status)
}

// statusCode maps an error to an HTTP status
func statusCode(err error) int {

	var tooLarge *http.MaxBytesError

	switch {
	case errors.Is(err, yolostream.ErrSourceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, yolostream.ErrDecode), errors.Is(err, storage.ErrInvalidFilename):
		return http.StatusBadRequest
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}
