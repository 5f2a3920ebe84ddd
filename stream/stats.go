package stream

import (
	"gonum.org/v1/gonum/stat"
	"time"
)

// latencyWindow is the number of recent inference timings kept
const latencyWindow = 300

// Stats are the counters of a Pipeline
type Stats struct {
	// Frames is the number of chunks produced
	Frames int
	// Bytes is the total encoded payload size
	Bytes int64
	// InferenceMean and InferenceStdDev cover the most recent detections
	InferenceMean   time.Duration
	InferenceStdDev time.Duration
}

type collector struct {
	frames int
	bytes  int64
	// latencies is a ring of recent detection timings in milliseconds
	latencies []float64
	next      int
}

func newCollector() *collector {
	return &collector{
		latencies: make([]float64, 0, latencyWindow),
	}
}

func (c *collector) observe(d time.Duration) {

	ms := float64(d) / float64(time.Millisecond)

	if len(c.latencies) < latencyWindow {
		c.latencies = append(c.latencies, ms)
		return
	}

	c.latencies[c.next] = ms
	c.next = (c.next + 1) % latencyWindow
}

func (c *collector) snapshot() Stats {

	s := Stats{
		Frames: c.frames,
		Bytes:  c.bytes,
	}

	switch len(c.latencies) {
	case 0:
	case 1:
		s.InferenceMean = msToDuration(c.latencies[0])
	default:
		mean, std := stat.MeanStdDev(c.latencies, nil)
		s.InferenceMean = msToDuration(mean)
		s.InferenceStdDev = msToDuration(std)
	}

	return s
}

func msToDuration(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}
