package chunk

import "github.com/saworbit/stablechunk/pkg/config"

// defaultCandidateRingCapacity bounds how many recent scored positions the
// streaming selector keeps around to pick a commit point from.
const defaultCandidateRingCapacity = 256

// StreamingChunker incrementally emits chunks as bytes are fed to it. It
// retains a trailing buffer starting at the currently open chunk's first
// byte (overlap from the previous commit keeps that buffer non-empty at
// context boundaries), scores every new byte position, and commits a chunk
// on a hard trigger (chunk length reaches MaxBytes) or a soft trigger (the
// cut score clears SoftTriggerThreshold for SoftTriggerSustainSteps
// consecutive positions).
//
// Feed after Finalize, or a second Finalize, is a UsageError: the chunker
// is a single-use, forward-only state machine.
type StreamingChunker struct {
	cfg config.ChunkingConfig

	// buffer holds exactly the unconsumed tail of the stream, starting at
	// globalOffset. globalOffset doubles as the absolute start of the
	// chunk currently being built: a commit always trims the buffer back
	// to (at most) the overlap tail of the chunk it just closed, so
	// buffer[0] is the first byte of whatever chunk is open next.
	buffer       []byte
	globalOffset int

	normalizers *SignalNormalizers

	candidates    []Candidate
	bestCandidate *Candidate

	softTriggerCount int
	processedLocal   int

	index      int
	totalBytes uint64
	finalized  bool
}

// NewStreamingChunker constructs a chunker for the given configuration.
func NewStreamingChunker(cfg config.ChunkingConfig) (*StreamingChunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &ConfigError{Reason: err.Error()}
	}
	return &StreamingChunker{
		cfg:         cfg,
		normalizers: NewSignalNormalizers(cfg.CommitHorizonBytes),
	}, nil
}

// BufferSize reports how many bytes are currently retained unconsumed.
func (sc *StreamingChunker) BufferSize() int {
	return len(sc.buffer)
}

// TotalBytesProcessed reports the total number of bytes ever fed in.
func (sc *StreamingChunker) TotalBytesProcessed() uint64 {
	return sc.totalBytes
}

// Feed appends data to the stream and returns any chunks that could be
// committed as a result. Feeding after Finalize is a UsageError.
func (sc *StreamingChunker) Feed(data []byte) ([]Chunk, error) {
	if sc.finalized {
		return nil, &UsageError{Reason: "Feed called after Finalize"}
	}
	sc.buffer = append(sc.buffer, data...)
	sc.totalBytes += uint64(len(data))
	return sc.processBuffer(), nil
}

// Finalize flushes whatever is left in the open chunk as a final chunk and
// marks the chunker unusable for further Feed calls. Calling Finalize twice
// is a UsageError. If nothing is buffered when Finalize is called, that is
// informational (input exhausted exactly at a prior commit boundary) and
// Finalize returns no chunks and no error.
func (sc *StreamingChunker) Finalize() ([]Chunk, error) {
	if sc.finalized {
		return nil, &UsageError{Reason: "Finalize called twice"}
	}
	sc.finalized = true

	if len(sc.buffer) == 0 {
		return nil, nil
	}

	lastPos := len(sc.buffer) - 1
	final := sc.candidateAt(lastPos)
	return []Chunk{sc.commit(final)}, nil
}

// Reset clears all chunker state, including the rolling normalizers,
// returning it to the state of a freshly constructed chunker for the same
// configuration.
func (sc *StreamingChunker) Reset() {
	sc.buffer = nil
	sc.globalOffset = 0
	sc.normalizers = NewSignalNormalizers(sc.cfg.CommitHorizonBytes)
	sc.candidates = nil
	sc.bestCandidate = nil
	sc.softTriggerCount = 0
	sc.processedLocal = 0
	sc.index = 0
	sc.totalBytes = 0
	sc.finalized = false
}

func (sc *StreamingChunker) processBuffer() []Chunk {
	var emitted []Chunk

	for sc.processedLocal < len(sc.buffer) {
		localPos := sc.processedLocal
		raw := ExtractSignals(sc.buffer, localPos, 0)
		norm := sc.normalizers.Normalize(raw)
		score := ComposeCutScore(raw, norm, sc.cfg)

		cand := Candidate{Position: localPos, Score: score, Raw: raw, Norm: norm}
		sc.pushCandidate(cand)

		length := localPos + 1

		if length >= sc.cfg.MaxBytes {
			chosen := sc.chooseHardCommit(localPos)
			emitted = append(emitted, sc.commit(chosen))
			continue
		}

		if score >= sc.cfg.SoftTriggerThreshold {
			sc.softTriggerCount++
		} else {
			sc.softTriggerCount = 0
		}

		if sc.softTriggerCount >= sc.cfg.SoftTriggerSustainSteps && length >= sc.cfg.MinBytes {
			best := sc.bestCandidate
			if best == nil {
				best = &cand
			}
			emitted = append(emitted, sc.commit(*best))
			continue
		}

		sc.processedLocal++
	}

	return emitted
}

func (sc *StreamingChunker) pushCandidate(c Candidate) {
	sc.candidates = append(sc.candidates, c)
	if len(sc.candidates) > defaultCandidateRingCapacity {
		sc.candidates = sc.candidates[1:]
	}
	// Only positions that would close a chunk of at least MinBytes may
	// become the best candidate.
	if c.Position+1 < sc.cfg.MinBytes {
		return
	}
	if sc.bestCandidate == nil || c.Score > sc.bestCandidate.Score {
		cc := c
		sc.bestCandidate = &cc
	}
}

// chooseHardCommit picks the commit point once the open chunk has reached
// MaxBytes: the best candidate if it satisfies MinBytes, else the best
// candidate within [MinBytes, MaxBytes] found by rescanning the ring, else
// a forced cut at hardPos itself.
func (sc *StreamingChunker) chooseHardCommit(hardPos int) Candidate {
	if sc.bestCandidate != nil && sc.bestCandidate.Position+1 >= sc.cfg.MinBytes {
		return *sc.bestCandidate
	}

	var best *Candidate
	for i := range sc.candidates {
		c := sc.candidates[i]
		length := c.Position + 1
		if length < sc.cfg.MinBytes || length > sc.cfg.MaxBytes {
			continue
		}
		if best == nil || c.Score > best.Score {
			cc := c
			best = &cc
		}
	}
	if best != nil {
		return *best
	}

	return sc.candidateAt(hardPos)
}

func (sc *StreamingChunker) candidateAt(pos int) Candidate {
	for i := len(sc.candidates) - 1; i >= 0; i-- {
		if sc.candidates[i].Position == pos {
			return sc.candidates[i]
		}
	}
	// Unreachable in normal operation: pos is always scored and pushed to
	// the ring in the same iteration it is committed from.
	raw := ExtractSignals(sc.buffer, pos, 0)
	norm := sc.normalizers.Normalize(raw)
	return Candidate{Position: pos, Score: ComposeCutScore(raw, norm, sc.cfg), Raw: raw, Norm: norm}
}

func (sc *StreamingChunker) commit(cand Candidate) Chunk {
	end := cand.Position + 1
	content := make([]byte, end)
	copy(content, sc.buffer[:end])

	out := Chunk{
		Index:         sc.index,
		ByteStart:     uint64(sc.globalOffset),
		ByteEnd:       uint64(sc.globalOffset + end),
		Content:       content,
		ContentSHA256: sha256Hex(content),
		CutScore:      cand.Score,
		Raw:           cand.Raw,
		Norm:          cand.Norm,
	}
	sc.index++

	advance := end - sc.cfg.OverlapBytes
	if advance < 1 {
		advance = 1
	}
	sc.buffer = sc.buffer[advance:]
	sc.globalOffset += advance
	// The overlap tail now occupies positions [0, OverlapBytes) of the new
	// buffer frame and must be rescored from scratch: L (bytes since chunk
	// start) is measured relative to position 0 of whichever chunk is
	// currently open, so the same bytes score differently as the tail of
	// the new chunk than they did as the end of the one just committed.
	sc.processedLocal = 0
	sc.candidates = sc.candidates[:0]
	sc.bestCandidate = nil
	sc.softTriggerCount = 0
	// sc.normalizers is deliberately left untouched: only Reset clears it.

	return out
}
