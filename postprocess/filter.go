package postprocess

// FilterByConfidence returns the detections whose probability meets or
// exceeds the threshold.  The input slice is not modified
func FilterByConfidence(dets []DetectResult, threshold float32) []DetectResult {

	out := make([]DetectResult, 0, len(dets))

	for _, d := range dets {
		if d.Probability >= threshold {
			out = append(out, d)
		}
	}

	return out
}
