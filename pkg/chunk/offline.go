package chunk

import "github.com/saworbit/stablechunk/pkg/config"

// ChunkOffline computes stability-driven boundaries over the entire input in
// one left-to-right pass: it scores every byte position (K/S/D/B, length
// term excluded since no chunk start is fixed yet), finds that score
// sequence's local maxima, then greedily walks the maxima left to right,
// closing a chunk at the first maximum whose distance from the currently
// open chunk's start falls within [MinBytes, MaxBytes]. A maximum that
// would overshoot MaxBytes is left unconsumed — it remains a candidate for
// opening the next chunk — and a hard cut at MaxBytes is emitted instead.
func ChunkOffline(data []byte, cfg config.ChunkingConfig) ([]Chunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &ConfigError{Reason: err.Error()}
	}
	if len(data) == 0 {
		return nil, nil
	}

	raws := make([]RawSignals, len(data))
	norms := make([]NormalizedSignals, len(data))
	baseScores := make([]float64, len(data))

	normalizers := NewSignalNormalizers(cfg.CommitHorizonBytes)
	for pos := range data {
		raw := ExtractSignals(data, pos, 0)
		norm := normalizers.Normalize(raw)
		raws[pos] = raw
		norms[pos] = norm
		baseScores[pos] = composeBaseScore(raw, norm, cfg)
	}

	minDistance := cfg.MinBytes / 4
	if minDistance < 1 {
		minDistance = 1
	}
	maxima := findLocalMaxima(baseScores, minDistance)

	var chunks []Chunk
	cur := 0
	maximaIdx := 0
	index := 0

	for cur < len(data) {
		remaining := len(data) - cur
		if remaining <= cfg.MaxBytes {
			chunks = append(chunks, buildOfflineChunk(data, index, cur, len(data), raws, norms, baseScores, cfg))
			break
		}

		chosen := -1
		for maximaIdx < len(maxima) {
			p := maxima[maximaIdx]
			length := p - cur + 1
			if length < cfg.MinBytes {
				maximaIdx++
				continue
			}
			if length > cfg.MaxBytes {
				break
			}
			chosen = p
			maximaIdx++
			break
		}

		end := cur + cfg.MaxBytes
		if chosen >= 0 {
			end = chosen + 1
		}

		chunks = append(chunks, buildOfflineChunk(data, index, cur, end, raws, norms, baseScores, cfg))
		index++

		next := end - cfg.OverlapBytes
		if next <= cur {
			next = cur + 1
		}
		cur = next
	}

	return chunks, nil
}

// composeBaseScore is ComposeCutScore with the length term forced off: the
// offline pass scores positions before any chunk start is fixed, so the
// length term (which depends on distance from that start) is folded in
// later, at buildOfflineChunk, once the boundary is actually chosen.
func composeBaseScore(raw RawSignals, norm NormalizedSignals, cfg config.ChunkingConfig) float64 {
	r := raw
	r.L = 0
	c := cfg
	c.LTargetBytes = 0
	return ComposeCutScore(r, norm, c)
}

func buildOfflineChunk(data []byte, index, start, end int, raws []RawSignals, norms []NormalizedSignals, baseScores []float64, cfg config.ChunkingConfig) Chunk {
	content := data[start:end]
	lastPos := end - 1

	raw := raws[lastPos]
	raw.L = end - start

	score := baseScores[lastPos]
	if cfg.LTargetBytes > 0 {
		score += cfg.WL * lengthPull(raw.L, cfg.LTargetBytes)
	}

	return Chunk{
		Index:         index,
		ByteStart:     uint64(start),
		ByteEnd:       uint64(end),
		Content:       content,
		ContentSHA256: sha256Hex(content),
		CutScore:      score,
		Raw:           raw,
		Norm:          norms[lastPos],
	}
}

// findLocalMaxima returns, in ascending order, every position whose score is
// the maximum within its own +-minDistance neighborhood. On a plateau of
// tied scores, the earliest position in the plateau is kept.
func findLocalMaxima(scores []float64, minDistance int) []int {
	n := len(scores)
	var maxima []int

	for i := 0; i < n; i++ {
		lo := i - minDistance
		if lo < 0 {
			lo = 0
		}
		hi := i + minDistance
		if hi >= n {
			hi = n - 1
		}

		isMax := true
		for j := lo; j <= hi; j++ {
			if j == i {
				continue
			}
			if scores[j] > scores[i] {
				isMax = false
				break
			}
			if scores[j] == scores[i] && j < i {
				isMax = false
				break
			}
		}
		if isMax {
			maxima = append(maxima, i)
		}
	}

	return maxima
}
