package yolostream

import (
	"github.com/pkg/errors"
	"github.com/yolostream/yolostream/postprocess"
	"gocv.io/x/gocv"
)

// Detector locates objects in a single frame.  Implementations must not
// modify the frame
type Detector interface {
	Detect(img gocv.Mat, threshold float32) ([]postprocess.DetectResult, error)
}

// ModelConfig defines how a Model is loaded
type ModelConfig struct {
	// ModelFile is the ONNX model path
	ModelFile string
	// LabelFile is an optional file of class labels, one per line.  When
	// empty COCOLabels is used
	LabelFile string
	// PoolSize is the number of network instances to load, defaults to 1
	PoolSize int
	// Backend is the DNN backend to run on
	Backend Backend
}

// Model is a loaded detection network together with the class vocabulary it
// was trained on.  It is loaded once and shared read only by all requests
type Model struct {
	pool   *Pool
	labels Vocabulary
}

// LoadModel loads the network described by cfg
func LoadModel(cfg ModelConfig) (*Model, error) {

	labels := COCOLabels

	if cfg.LabelFile != "" {
		var err error
		labels, err = LoadLabels(cfg.LabelFile)

		if err != nil {
			return nil, err
		}
	}

	size := cfg.PoolSize

	if size == 0 {
		size = 1
	}

	pool, err := NewPool(size, cfg.ModelFile, cfg.Backend)

	if err != nil {
		return nil, errors.Wrapf(err, "error loading model %s", cfg.ModelFile)
	}

	return &Model{pool: pool, labels: labels}, nil
}

// Detect borrows a runtime from the pool and runs inference on the frame.
// Detections whose class falls outside the vocabulary mean the model and
// labels do not match and are returned as an error
func (m *Model) Detect(img gocv.Mat, threshold float32) ([]postprocess.DetectResult, error) {

	rt := m.pool.Get()

	if rt == nil {
		return nil, errors.New("model is closed")
	}

	defer m.pool.Return(rt)

	dets, err := rt.Detect(img, threshold)

	if err != nil {
		return nil, err
	}

	for _, d := range dets {
		if d.Class < 0 || d.Class >= m.labels.Len() {
			return nil, errors.Errorf("class id %d outside vocabulary of %d labels",
				d.Class, m.labels.Len())
		}
	}

	return dets, nil
}

// Labels returns the class vocabulary of the model
func (m *Model) Labels() Vocabulary {
	return m.labels
}

// Close releases every network instance
func (m *Model) Close() error {
	return m.pool.Close()
}
