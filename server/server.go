// Package server exposes the detection streams and upload forms over HTTP.
package server

import (
	"embed"
	"github.com/pkg/errors"
	"github.com/rs/cors"
	"github.com/yolostream/yolostream"
	"github.com/yolostream/yolostream/render"
	"github.com/yolostream/yolostream/singleshot"
	"github.com/yolostream/yolostream/source"
	"github.com/yolostream/yolostream/storage"
	"go.uber.org/zap"
	"goji.io"
	"goji.io/pat"
	"html/template"
	"net/http"
)

// DefaultMaxUpload is the largest accepted upload in bytes
const DefaultMaxUpload = 512 << 20

//go:embed templates/index.html
var templates embed.FS

// Config wires the Server to its models and storage
type Config struct {
	// StreamDetector runs on the live camera feed
	StreamDetector yolostream.Detector
	// UploadDetector runs on uploaded images and videos
	UploadDetector yolostream.Detector
	// Labels is the class vocabulary shared by both detectors
	Labels yolostream.Vocabulary
	// Store keeps uploads and results
	Store *storage.Store
	// Camera opens the live feed source
	Camera source.Opener
	// OpenVideo returns the opener for an uploaded video, defaults to
	// source.VideoFileOpener
	OpenVideo func(path string) source.Opener
	// MaxUpload limits request bodies, defaults to DefaultMaxUpload
	MaxUpload int64
	Logger    *zap.SugaredLogger
}

// Server handles the HTTP routes
type Server struct {
	cfg       Config
	logger    *zap.SugaredLogger
	annotator *render.Annotator
	single    *singleshot.Detector
	index     *template.Template
}

// New returns a Server for cfg
func New(cfg Config) (*Server, error) {

	if cfg.StreamDetector == nil || cfg.UploadDetector == nil {
		return nil, errors.New("both stream and upload detectors are required")
	}

	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}

	if cfg.Camera == nil {
		cfg.Camera = source.CameraOpener(yolostream.DefaultCameraDevice)
	}

	if cfg.OpenVideo == nil {
		cfg.OpenVideo = source.VideoFileOpener
	}

	if cfg.MaxUpload <= 0 {
		cfg.MaxUpload = DefaultMaxUpload
	}

	if cfg.Labels == nil {
		cfg.Labels = yolostream.COCOLabels
	}

	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}

	index, err := template.ParseFS(templates, "templates/index.html")

	if err != nil {
		return nil, errors.Wrap(err, "error parsing index template")
	}

	return &Server{
		cfg:       cfg,
		logger:    cfg.Logger,
		annotator: render.NewAnnotator(cfg.Labels),
		single:    singleshot.New(cfg.UploadDetector, cfg.Labels, cfg.Store, cfg.Logger),
		index:     index,
	}, nil
}

// Handler returns the routes wrapped with request logging and CORS
func (s *Server) Handler() http.Handler {

	mux := goji.NewMux()
	mux.Use(s.logRequests)

	mux.HandleFunc(pat.Get("/"), s.handleIndex)
	mux.HandleFunc(pat.Get("/video_feed"), s.handleVideoFeed)
	mux.HandleFunc(pat.Post("/detect_image"), s.handleDetectImage)
	mux.HandleFunc(pat.Post("/detect_video"), s.handleDetectVideo)
	mux.HandleFunc(pat.Get("/healthz"), s.handleHealth)

	return cors.AllowAll().Handler(mux)
}
