package chunk

import "math"

// normalizerMinSamples is the minimum number of observations a rolling
// normalizer must have absorbed before it starts emitting z-scores; before
// that it passes the raw value through unchanged.
const normalizerMinSamples = 10

// normalizerRecomputeInterval bounds how long a normalizer runs on
// incrementally maintained sums before recomputing them directly from the
// ring contents, to keep long streams from drifting on floating-point error.
const normalizerRecomputeInterval = 4096

// RollingNormalizer turns a stream of scalar observations into rolling
// z-scores over a bounded trailing window. It keeps only running sums plus
// a fixed-size ring, not the full history.
type RollingNormalizer struct {
	capacity              int
	ring                  []float64
	writeIdx              int
	filled                bool
	totalSeen             int
	sum                   float64
	sumSq                 float64
	updatesSinceRecompute int
}

// NewRollingNormalizer constructs a normalizer retaining up to capacity
// observations.
func NewRollingNormalizer(capacity int) *RollingNormalizer {
	if capacity <= 0 {
		capacity = 1
	}
	return &RollingNormalizer{
		capacity: capacity,
		ring:     make([]float64, capacity),
	}
}

// Count returns the number of observations currently retained in the ring.
func (n *RollingNormalizer) Count() int {
	if n.filled {
		return n.capacity
	}
	return n.writeIdx
}

// Update folds x into the normalizer and returns its z-score against the
// statistics observed so far (not including x itself). Before
// normalizerMinSamples observations have been seen, it returns x unchanged.
// If the current variance is below 1e-10 (a degenerate, near-constant
// window), it returns 0 rather than dividing by a near-zero stddev.
func (n *RollingNormalizer) Update(x float64) float64 {
	var normalized float64
	if n.totalSeen < normalizerMinSamples {
		normalized = x
	} else {
		count := float64(n.Count())
		mean := n.sum / count
		variance := n.sumSq/count - mean*mean
		if variance < 1e-10 {
			normalized = 0
		} else {
			normalized = (x - mean) / math.Sqrt(variance)
		}
	}
	n.push(x)
	return normalized
}

func (n *RollingNormalizer) push(x float64) {
	if n.filled {
		old := n.ring[n.writeIdx]
		n.sum -= old
		n.sumSq -= old * old
	}
	n.ring[n.writeIdx] = x
	n.sum += x
	n.sumSq += x * x
	n.writeIdx++
	n.totalSeen++
	n.updatesSinceRecompute++

	if n.writeIdx >= n.capacity {
		n.writeIdx = 0
		n.filled = true
	}
	if n.updatesSinceRecompute >= normalizerRecomputeInterval {
		n.recompute()
	}
}

// recompute rebuilds the running sums directly from the ring contents,
// discarding any drift accumulated from repeated incremental add/subtract.
func (n *RollingNormalizer) recompute() {
	var sum, sumSq float64
	limit := n.Count()
	for i := 0; i < limit; i++ {
		v := n.ring[i]
		sum += v
		sumSq += v * v
	}
	n.sum = sum
	n.sumSq = sumSq
	n.updatesSinceRecompute = 0
}

// Reset clears all accumulated state. Only an explicit Reset clears a
// normalizer; committing a chunk does not.
func (n *RollingNormalizer) Reset() {
	n.ring = make([]float64, n.capacity)
	n.writeIdx = 0
	n.filled = false
	n.totalSeen = 0
	n.sum = 0
	n.sumSq = 0
	n.updatesSinceRecompute = 0
}

// SignalNormalizers groups the independent rolling normalizers for the K, S,
// and D signals. B and L never pass through a normalizer.
type SignalNormalizers struct {
	K *RollingNormalizer
	S *RollingNormalizer
	D *RollingNormalizer
}

// NewSignalNormalizers constructs K/S/D normalizers sharing one ring capacity.
func NewSignalNormalizers(capacity int) *SignalNormalizers {
	return &SignalNormalizers{
		K: NewRollingNormalizer(capacity),
		S: NewRollingNormalizer(capacity),
		D: NewRollingNormalizer(capacity),
	}
}

// Normalize folds raw into the three normalizers and returns the resulting
// NormalizedSignals.
func (sn *SignalNormalizers) Normalize(raw RawSignals) NormalizedSignals {
	return NormalizedSignals{
		K: sn.K.Update(raw.K),
		S: sn.S.Update(raw.S),
		D: sn.D.Update(raw.D),
	}
}

// Reset clears all three normalizers.
func (sn *SignalNormalizers) Reset() {
	sn.K.Reset()
	sn.S.Reset()
	sn.D.Reset()
}
