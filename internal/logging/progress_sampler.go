package logging

import "strings"

// ProgressSampler suppresses repetitive progress logs while preserving signal
// when the operation or percentage bucket changes. It is not safe for
// concurrent use; each operation owns its sampler.
type ProgressSampler struct {
	bucketSize float64
	lastOp     string
	lastBucket int
}

// NewProgressSampler constructs a sampler that emits when the percent crosses
// bucket boundaries (default 10%) or when the operation changes.
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 10
	}
	return &ProgressSampler{bucketSize: bucketSize, lastBucket: -1}
}

// ShouldLog reports whether a progress line for operation at percent (0..100)
// should be written. A negative percent means unknown and only an operation
// change can trigger output.
func (s *ProgressSampler) ShouldLog(percent float64, operation string) bool {
	if s == nil {
		return true
	}
	operation = strings.TrimSpace(operation)
	emit := false
	if operation != "" && operation != s.lastOp {
		s.lastOp = operation
		s.lastBucket = -1
		emit = true
	}
	if percent >= 0 {
		if percent > 100 {
			percent = 100
		}
		bucket := int(percent / s.bucketSize)
		if bucket > s.lastBucket {
			s.lastBucket = bucket
			emit = true
		}
	}
	return emit
}

// Reset clears the sampler state.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastOp = ""
	s.lastBucket = -1
}
