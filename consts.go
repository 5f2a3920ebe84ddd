package yolostream

const (
	// ConfidenceThreshold is the minimum score a detection must have to be
	// drawn on the live camera and video file streams
	ConfidenceThreshold float32 = 0.6

	// DefaultThreshold is the detector's own confidence threshold, used by
	// the still image path which does not apply ConfidenceThreshold
	DefaultThreshold float32 = 0.25

	// NMSThreshold is the IoU above which overlapping boxes of the same class
	// are suppressed
	NMSThreshold float32 = 0.45

	// MaxObjectNumber caps the detections returned for a single frame
	MaxObjectNumber = 300

	// InputSize is the square input tensor size of the exported model
	InputSize = 640

	// JPEGQuality is the fixed quality used when encoding stream frames
	JPEGQuality = 95

	// DefaultStreamModel is the model file used for the camera stream
	DefaultStreamModel = "yolo11m.onnx"

	// DefaultUploadModel is the model file used for uploaded images and videos
	DefaultUploadModel = "yolo11x.onnx"

	// DefaultCameraDevice is the index of the camera the live feed binds to
	DefaultCameraDevice = 0
)
