package stream

import (
	"context"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/yolostream/yolostream"
	"github.com/yolostream/yolostream/postprocess"
	"github.com/yolostream/yolostream/source"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
	"io"
	"sync"
	"time"
)

// ErrClosed is returned by Next after the consumer closed the Pipeline
var ErrClosed = errors.New("pipeline closed")

// State of a Pipeline
type State int

const (
	// Idle is a new Pipeline whose source has not been opened
	Idle State = iota
	// Streaming is an open Pipeline producing chunks
	Streaming
	// Exhausted is a Pipeline whose source ran out of frames
	Exhausted
	// Aborted is a Pipeline stopped by a failure or by its consumer
	Aborted
)

// String returns the name of the state
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Streaming:
		return "streaming"
	case Exhausted:
		return "exhausted"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Annotator draws detections onto a frame in place
type Annotator interface {
	Annotate(img *gocv.Mat, dets []postprocess.DetectResult) error
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithLogger sets the logger, the default discards
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithThreshold sets the minimum confidence of drawn detections, the default
// is yolostream.ConfidenceThreshold
func WithThreshold(threshold float32) Option {
	return func(p *Pipeline) {
		p.threshold = threshold
	}
}

// WithName labels the pipeline's log entries with the source it reads
func WithName(name string) Option {
	return func(p *Pipeline) {
		p.name = name
	}
}

// Pipeline is a lazy, single use sequence of annotated frames read from a
// FrameSource.  Each call to Next reads one frame, detects objects, draws
// those scoring at least the threshold and encodes the result.  The source
// is opened on the first call and released exactly once, when the frames run
// out, when a frame fails or when the consumer calls Close
type Pipeline struct {
	id        string
	name      string
	open      source.Opener
	det       yolostream.Detector
	ann       Annotator
	enc       Encoder
	threshold float32
	logger    *zap.SugaredLogger

	mu    sync.Mutex
	state State
	src   source.FrameSource
	// err is returned by Next once Aborted
	err      error
	released bool
	stats    *collector
}

// NewPipeline returns an Idle Pipeline.  Nothing is opened until the first
// call to Next
func NewPipeline(open source.Opener, det yolostream.Detector, ann Annotator,
	enc Encoder, opts ...Option) *Pipeline {

	p := &Pipeline{
		id:        uuid.NewString(),
		open:      open,
		det:       det,
		ann:       ann,
		enc:       enc,
		threshold: yolostream.ConfidenceThreshold,
		logger:    zap.NewNop().Sugar(),
		state:     Idle,
		stats:     newCollector(),
	}

	for _, opt := range opts {
		opt(p)
	}

	p.logger = p.logger.With("stream", p.id)

	if p.name != "" {
		p.logger = p.logger.With("source", p.name)
	}

	return p
}

// ID returns the unique id of the pipeline used in log entries
func (p *Pipeline) ID() string {
	return p.id
}

// State returns the current state
func (p *Pipeline) State() State {

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.state
}

// Stats returns the counters collected so far
func (p *Pipeline) Stats() Stats {

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.stats.snapshot()
}

// Next returns the next chunk.  It returns io.EOF once the source is
// exhausted, an error wrapping yolostream.ErrSourceUnavailable if the source
// could not be opened and an error wrapping yolostream.ErrFrameProcessing
// if a frame failed.  After the first error every call returns it again
func (p *Pipeline) Next(ctx context.Context) (Chunk, error) {

	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case Exhausted:
		return Chunk{}, io.EOF
	case Aborted:
		return Chunk{}, p.err
	case Idle:
		src, err := p.open()

		if err != nil {
			p.logger.Warnw("unable to open source", "error", err)
			p.state = Aborted
			p.err = err
			return Chunk{}, err
		}

		p.src = src
		p.state = Streaming
		p.logger.Debug("source opened")
	}

	if err := ctx.Err(); err != nil {
		p.abort(err)
		return Chunk{}, err
	}

	frame, err := p.src.Next()

	if err != nil {
		if errors.Is(err, yolostream.ErrEndOfStream) {
			p.state = Exhausted
			p.release()
			p.logger.Infow("stream exhausted", "frames", p.stats.frames)
			return Chunk{}, io.EOF
		}

		err = errors.Wrapf(yolostream.ErrFrameProcessing, "reading frame %d: %v",
			p.stats.frames+1, err)
		p.abort(err)
		return Chunk{}, err
	}

	defer frame.Close()

	chunk, err := p.process(&frame)

	if err != nil {
		err = errors.Wrapf(yolostream.ErrFrameProcessing, "frame %d: %v",
			p.stats.frames+1, err)
		p.abort(err)
		return Chunk{}, err
	}

	p.stats.frames++
	p.stats.bytes += int64(len(chunk.Payload))

	return chunk, nil
}

// process runs detection, annotation and encoding on a single frame
func (p *Pipeline) process(frame *gocv.Mat) (Chunk, error) {

	start := time.Now()
	dets, err := p.det.Detect(*frame, p.threshold)
	p.stats.observe(time.Since(start))

	if err != nil {
		return Chunk{}, errors.Wrap(err, "detect")
	}

	dets = postprocess.FilterByConfidence(dets, p.threshold)

	if err := p.ann.Annotate(frame, dets); err != nil {
		return Chunk{}, errors.Wrap(err, "annotate")
	}

	chunk, err := p.enc.Encode(*frame)

	if err != nil {
		return Chunk{}, errors.Wrap(err, "encode")
	}

	return chunk, nil
}

// abort moves to Aborted and releases the source.  Callers hold mu
func (p *Pipeline) abort(err error) {

	p.state = Aborted
	p.err = err
	p.release()

	if errors.Is(err, ErrClosed) || errors.Is(err, context.Canceled) {
		p.logger.Infow("stream stopped by consumer", "frames", p.stats.frames)
		return
	}

	p.logger.Errorw("stream aborted", "frames", p.stats.frames, "error", err)
}

// release closes the source if it was opened and has not been closed yet.
// Callers hold mu
func (p *Pipeline) release() {

	if p.src == nil || p.released {
		return
	}

	p.released = true

	if err := p.src.Close(); err != nil {
		p.logger.Warnw("error closing source", "error", err)
	}
}

// Close stops the pipeline and releases its source.  A Pipeline that never
// opened its source closes nothing.  Close is safe to call in every state and
// more than once
func (p *Pipeline) Close() error {

	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case Idle:
		p.state = Aborted
		p.err = ErrClosed
	case Streaming:
		p.abort(ErrClosed)
	}

	return nil
}
