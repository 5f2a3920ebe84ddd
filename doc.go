/*
yolostream exposes a pretrained YOLO object detection model over HTTP for
three input modes: a live camera feed, an uploaded video file and an uploaded
still image.

The root package loads YOLOv8 and YOLO11 detection models exported to ONNX
through the OpenCV DNN module and holds the class vocabulary.  The frame
pipeline is split into sub packages:

  - source reads frames from a camera device or video file
  - preprocess and postprocess convert between frames and network tensors
  - render draws detections onto frames
  - stream annotates and encodes frames into a multipart JPEG stream
  - singleshot runs detection on a single uploaded image
  - server exposes the HTTP routes

See cmd/yolostream for the service entry point.
*/
package yolostream
