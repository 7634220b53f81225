package chunk

import "math"

// signalWindowBytes is the window width used to compute the entropy and
// variance proxies, centered on the position being scored. It is
// independent of any chunking config value — changing it changes the
// signal semantics, not just a tuning knob.
const signalWindowBytes = 64

// newlineByte is the sole structural boundary recognized in this profile.
const newlineByte = 0x0A

// histogramStats reduces a byte window to its Shannon entropy (bits) and
// population variance. Both are computed via a fixed-size [256]int
// histogram iterated in ascending byte-value order, never a map: map
// iteration order is unspecified in Go, and the caller must reproduce
// bit-identical signals across repeated runs over the same bytes.
func histogramStats(window []byte) (entropy, variance float64) {
	n := len(window)
	if n == 0 {
		return 0, 0
	}

	var hist [256]int
	for _, b := range window {
		hist[b]++
	}

	total := float64(n)
	var mean float64
	for v := 0; v < 256; v++ {
		count := hist[v]
		if count == 0 {
			continue
		}
		p := float64(count) / total
		entropy -= p * math.Log2(p)
		mean += float64(v) * p
	}

	for v := 0; v < 256; v++ {
		count := hist[v]
		if count == 0 {
			continue
		}
		p := float64(count) / total
		diff := float64(v) - mean
		variance += p * diff * diff
	}

	return entropy, variance
}

// ExtractSignals computes the raw cut-score signals at data[pos], using the
// signalWindowBytes-wide window centered on pos: [max(0, pos-w/2), min(N,
// pos-w/2+w)). chunkStart is the absolute offset where the current chunk
// began, used only to derive L.
func ExtractSignals(data []byte, pos int, chunkStart int) RawSignals {
	rawStart := pos - signalWindowBytes/2
	windowStart := rawStart
	if windowStart < 0 {
		windowStart = 0
	}
	windowEnd := rawStart + signalWindowBytes
	if windowEnd > len(data) {
		windowEnd = len(data)
	}
	window := data[windowStart:windowEnd]

	entropy, variance := histogramStats(window)

	b := 0.0
	if data[pos] == newlineByte {
		b = 1.0
	}

	return RawSignals{
		K: entropy,
		S: 8.0 / (1.0 + variance/1000.0),
		D: 0.0,
		B: b,
		L: pos - chunkStart,
	}
}
