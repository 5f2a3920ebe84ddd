package yolostream

import (
	"github.com/pkg/errors"
	"github.com/yolostream/yolostream/postprocess"
	"github.com/yolostream/yolostream/preprocess"
	"gocv.io/x/gocv"
	"os"
)

// Backend selects the OpenCV DNN backend and target the network runs on
type Backend int

const (
	// BackendCPU runs the network with the OpenCV default backend on the CPU
	BackendCPU Backend = iota
	// BackendCUDA runs the network on an NVIDIA GPU, requires OpenCV built
	// with CUDA support
	BackendCUDA
	// BackendOpenVINO runs the network through Intel OpenVINO
	BackendOpenVINO
)

// String returns the name of the backend
func (b Backend) String() string {
	switch b {
	case BackendCPU:
		return "cpu"
	case BackendCUDA:
		return "cuda"
	case BackendOpenVINO:
		return "openvino"
	default:
		return "unknown"
	}
}

// ParseBackend converts a backend name into a Backend
func ParseBackend(name string) (Backend, error) {
	switch name {
	case "", "cpu":
		return BackendCPU, nil
	case "cuda":
		return BackendCUDA, nil
	case "openvino":
		return BackendOpenVINO, nil
	default:
		return BackendCPU, errors.Errorf("unknown backend %q", name)
	}
}

// Runtime defines a single instance of an ONNX detection network loaded
// through the OpenCV DNN module.  A Runtime is not safe for concurrent use,
// share weights across goroutines with a Pool
type Runtime struct {
	// net is the loaded network
	net gocv.Net
	// loaded is false for the zero value so Close is safe to call on it
	loaded bool
	// inputSize is the square input tensor dimension of the network
	inputSize int
	// resizer is cached for the most recent source frame dimensions
	resizer *preprocess.Resizer
	// letterbox holds the padded network input between calls
	letterbox gocv.Mat
	// post decodes the raw network output
	post *postprocess.YOLOv8
}

// NewRuntime returns a Runtime for the ONNX model file.  Provide the full path
// and filename of a YOLOv8 or YOLO11 detection model exported to ONNX
func NewRuntime(modelFile string, backend Backend) (*Runtime, error) {

	if _, err := os.Stat(modelFile); err != nil {
		return nil, errors.Wrapf(err, "model file %s", modelFile)
	}

	net := gocv.ReadNetFromONNX(modelFile)

	if net.Empty() {
		net.Close()
		return nil, errors.Errorf("error loading ONNX model %s", modelFile)
	}

	err := setBackend(&net, backend)

	if err != nil {
		net.Close()
		return nil, err
	}

	r := &Runtime{
		net:       net,
		loaded:    true,
		inputSize: InputSize,
		letterbox: gocv.NewMat(),
		post: postprocess.NewYOLOv8(postprocess.YOLOv8Params{
			BoxThreshold:    DefaultThreshold,
			NMSThreshold:    NMSThreshold,
			MaxObjectNumber: MaxObjectNumber,
		}),
	}

	return r, nil
}

// setBackend applies the preferable backend and target pair to the network
func setBackend(net *gocv.Net, backend Backend) error {

	var b gocv.NetBackendType
	var t gocv.NetTargetType

	switch backend {
	case BackendCUDA:
		b, t = gocv.NetBackendCUDA, gocv.NetTargetCUDA
	case BackendOpenVINO:
		b, t = gocv.NetBackendOpenVINO, gocv.NetTargetCPU
	default:
		b, t = gocv.NetBackendDefault, gocv.NetTargetCPU
	}

	if err := net.SetPreferableBackend(b); err != nil {
		return errors.Wrapf(err, "error setting %s backend", backend)
	}

	if err := net.SetPreferableTarget(t); err != nil {
		return errors.Wrapf(err, "error setting %s target", backend)
	}

	return nil
}

// Close releases the network and buffers held by the Runtime
func (r *Runtime) Close() error {

	if !r.loaded {
		return nil
	}

	r.loaded = false

	if r.resizer != nil {
		r.resizer.Close()
		r.resizer = nil
	}

	r.letterbox.Close()

	return r.net.Close()
}
