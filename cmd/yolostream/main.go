// Command yolostream serves live camera, uploaded video and uploaded image
// object detection over HTTP.
package main

import (
	"context"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"github.com/yolostream/yolostream"
	"github.com/yolostream/yolostream/logging"
	"github.com/yolostream/yolostream/server"
	"github.com/yolostream/yolostream/source"
	"github.com/yolostream/yolostream/storage"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// shutdownTimeout bounds how long open streams are given to finish
const shutdownTimeout = 30 * time.Second

// config holds the process settings taken from flags
type config struct {
	listen      string
	streamModel string
	uploadModel string
	labels      string
	uploadDir   string
	resultDir   string
	camera      int
	poolSize    int
	backend     yolostream.Backend
	debug       bool
}

func main() {

	if err := newApp().Run(os.Args); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "yolostream",
		Usage: "stream YOLO object detection over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "listen",
				Value:   ":5000",
				Usage:   "HTTP listen `ADDRESS`",
				EnvVars: []string{"YOLOSTREAM_LISTEN"},
			},
			&cli.StringFlag{
				Name:    "stream-model",
				Value:   yolostream.DefaultStreamModel,
				Usage:   "ONNX model `FILE` for the live camera feed",
				EnvVars: []string{"YOLOSTREAM_STREAM_MODEL"},
			},
			&cli.StringFlag{
				Name:    "upload-model",
				Value:   yolostream.DefaultUploadModel,
				Usage:   "ONNX model `FILE` for uploaded images and videos",
				EnvVars: []string{"YOLOSTREAM_UPLOAD_MODEL"},
			},
			&cli.StringFlag{
				Name:    "labels",
				Usage:   "class label `FILE`, one per line, defaults to the built in list",
				EnvVars: []string{"YOLOSTREAM_LABELS"},
			},
			&cli.StringFlag{
				Name:    "upload-dir",
				Value:   "uploads",
				Usage:   "directory uploads are saved to",
				EnvVars: []string{"YOLOSTREAM_UPLOAD_DIR"},
			},
			&cli.StringFlag{
				Name:    "result-dir",
				Value:   "results",
				Usage:   "directory image results are saved to",
				EnvVars: []string{"YOLOSTREAM_RESULT_DIR"},
			},
			&cli.IntFlag{
				Name:    "camera",
				Value:   yolostream.DefaultCameraDevice,
				Usage:   "capture device `INDEX` of the live feed",
				EnvVars: []string{"YOLOSTREAM_CAMERA"},
			},
			&cli.IntFlag{
				Name:    "pool-size",
				Value:   1,
				Usage:   "number of network instances loaded per model",
				EnvVars: []string{"YOLOSTREAM_POOL_SIZE"},
			},
			&cli.StringFlag{
				Name:    "backend",
				Value:   "cpu",
				Usage:   "DNN backend, one of cpu, cuda or openvino",
				EnvVars: []string{"YOLOSTREAM_BACKEND"},
			},
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "enable debug logging",
				EnvVars: []string{"YOLOSTREAM_DEBUG"},
			},
		},
		Action: func(c *cli.Context) error {

			cfg, err := configFromContext(c)

			if err != nil {
				return err
			}

			logger, err := logging.NewLogger("yolostream", cfg.debug)

			if err != nil {
				return err
			}

			defer logger.Sync()

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, logger)
		},
	}
}

func configFromContext(c *cli.Context) (config, error) {

	backend, err := yolostream.ParseBackend(c.String("backend"))

	if err != nil {
		return config{}, err
	}

	if c.Int("pool-size") < 1 {
		return config{}, errors.Errorf("pool-size must be at least 1, got %d", c.Int("pool-size"))
	}

	return config{
		listen:      c.String("listen"),
		streamModel: c.String("stream-model"),
		uploadModel: c.String("upload-model"),
		labels:      c.String("labels"),
		uploadDir:   c.String("upload-dir"),
		resultDir:   c.String("result-dir"),
		camera:      c.Int("camera"),
		poolSize:    c.Int("pool-size"),
		backend:     backend,
		debug:       c.Bool("debug"),
	}, nil
}

// loadModels loads the stream and upload models, sharing one when both
// flags name the same file
func loadModels(cfg config, logger *zap.SugaredLogger) (stream, upload *yolostream.Model, err error) {

	load := func(file string) (*yolostream.Model, error) {
		logger.Infow("loading model", "file", file, "backend", cfg.backend.String(), "pool", cfg.poolSize)

		return yolostream.LoadModel(yolostream.ModelConfig{
			ModelFile: file,
			LabelFile: cfg.labels,
			PoolSize:  cfg.poolSize,
			Backend:   cfg.backend,
		})
	}

	stream, err = load(cfg.streamModel)

	if err != nil {
		return nil, nil, err
	}

	if cfg.uploadModel == cfg.streamModel {
		return stream, stream, nil
	}

	upload, err = load(cfg.uploadModel)

	if err != nil {
		return nil, nil, multierr.Append(err, stream.Close())
	}

	return stream, upload, nil
}

func run(ctx context.Context, cfg config, logger *zap.SugaredLogger) (err error) {

	streamModel, uploadModel, err := loadModels(cfg, logger)

	if err != nil {
		return err
	}

	defer func() {
		err = multierr.Append(err, streamModel.Close())

		if uploadModel != streamModel {
			err = multierr.Append(err, uploadModel.Close())
		}
	}()

	store, err := storage.New(cfg.uploadDir, cfg.resultDir)

	if err != nil {
		return err
	}

	srv, err := server.New(server.Config{
		StreamDetector: streamModel,
		UploadDetector: uploadModel,
		Labels:         streamModel.Labels(),
		Store:          store,
		Camera:         source.CameraOpener(cfg.camera),
		Logger:         logger,
	})

	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 60 * time.Second,
	}

	errc := make(chan error, 1)

	go func() {
		logger.Infow("HTTP server listening", "addr", cfg.listen)
		errc <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return errors.Wrap(err, "HTTP server stopped")
	case <-ctx.Done():
	}

	logger.Info("shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		// streams still open after the timeout are cut off
		return multierr.Append(err, httpServer.Close())
	}

	return nil
}
