package logging

import "math"

// ProgressSampler throttles per-frame progress to one log line per
// percentage bucket. The first report and the final (100%) report always log.
type ProgressSampler struct {
	bucketSize float64
	lastBucket int
	finished   bool
}

// NewProgressSampler returns a sampler with buckets of bucketSize percent
// (5 when bucketSize is not positive).
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 5
	}
	return &ProgressSampler{bucketSize: bucketSize, lastBucket: -1}
}

// ShouldLog reports whether progress at fraction (0..1) starts a new bucket.
// NaN and negative fractions never log.
func (s *ProgressSampler) ShouldLog(fraction float64) bool {
	if s == nil {
		return true
	}
	if math.IsNaN(fraction) || fraction < 0 || s.finished {
		return false
	}
	if fraction >= 1 {
		s.finished = true
		return true
	}
	bucket := int(fraction * 100 / s.bucketSize)
	if bucket <= s.lastBucket {
		return false
	}
	s.lastBucket = bucket
	return true
}

// Reset prepares the sampler for another render.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastBucket = -1
	s.finished = false
}
