package chunk

import "github.com/saworbit/stablechunk/pkg/config"

// HybridChunk is one chunk emitted by the hybrid orchestrator: either a
// verbatim replay of a chunk from the prior chunking (unchanged or
// offset-shifted by the edit), or a freshly emitted fixed-size micro-chunk
// covering part of the guarded region around the edit.
type HybridChunk struct {
	Chunk

	// ParentChunkIndex is the index of the prior chunk this entry replays,
	// or -1 for a freshly emitted micro-chunk.
	ParentChunkIndex int

	// EditWindowID identifies which edit produced this entry. Empty for
	// verbatim replays, which predate and postdate the edit untouched.
	EditWindowID string

	// Replayed is true for chunks carried over unchanged (or offset-shifted)
	// from the prior chunking, false for freshly emitted micro-chunks.
	Replayed bool
}

// HybridRechunk re-chunks only the bytes around a localized edit. priorChunks
// and oldTotalBytes describe the chunking of the document before the edit,
// in the old document's byte coordinates. editStart/editEnd (also in old
// coordinates) bound the span that changed; newData is the document's full
// content after the edit.
//
// Prior chunks entirely outside [editStart-GuardBandBytes,
// editEnd+GuardBandBytes) are replayed verbatim, with byte offsets shifted
// by the edit's length delta if they fall after it. Prior chunks that
// overlap the guard band are dropped and replaced by fixed-size, overlapping
// micro-chunks spanning the guard band in the new document's coordinates.
func HybridRechunk(priorChunks []Chunk, oldTotalBytes uint64, newData []byte, editStart, editEnd int, hybridCfg config.HybridConfig, editWindowID string) ([]HybridChunk, error) {
	if err := hybridCfg.Validate(); err != nil {
		return nil, &ConfigError{Reason: err.Error()}
	}

	delta := len(newData) - int(oldTotalBytes)

	guardStart := editStart - hybridCfg.GuardBandBytes
	if guardStart < 0 {
		guardStart = 0
	}
	guardEndOld := editEnd + hybridCfg.GuardBandBytes
	if guardEndOld > int(oldTotalBytes) {
		guardEndOld = int(oldTotalBytes)
	}
	guardEndNew := guardEndOld + delta
	if guardEndNew > len(newData) {
		guardEndNew = len(newData)
	}
	if guardEndNew < guardStart {
		guardEndNew = guardStart
	}

	var result []HybridChunk

	for _, c := range priorChunks {
		switch {
		case int(c.ByteEnd) <= guardStart:
			result = append(result, replayChunk(c, newData, int(c.ByteStart), int(c.ByteEnd)))
		case int(c.ByteStart) >= guardEndOld:
			result = append(result, replayChunk(c, newData, int(c.ByteStart)+delta, int(c.ByteEnd)+delta))
		default:
			// overlaps the guard band: superseded by micro-chunks below.
		}
	}

	micro := emitMicroChunks(newData, guardStart, guardEndNew, hybridCfg, editWindowID)
	result = append(result, micro...)

	reindexAndSort(result)

	return result, nil
}

func replayChunk(c Chunk, newData []byte, start, end int) HybridChunk {
	content := newData[start:end]
	return HybridChunk{
		Chunk: Chunk{
			ByteStart:     uint64(start),
			ByteEnd:       uint64(end),
			Content:       content,
			ContentSHA256: sha256Hex(content),
			CutScore:      c.CutScore,
			Raw:           c.Raw,
			Norm:          c.Norm,
		},
		ParentChunkIndex: c.Index,
		Replayed:         true,
	}
}

func emitMicroChunks(data []byte, start, end int, hybridCfg config.HybridConfig, editWindowID string) []HybridChunk {
	var out []HybridChunk

	pos := start
	for pos < end {
		chunkEnd := pos + hybridCfg.MicroChunkBytes
		if chunkEnd > end {
			chunkEnd = end
		}
		content := data[pos:chunkEnd]

		raw := RawSignals{}
		if chunkEnd > pos {
			raw = ExtractSignals(data, chunkEnd-1, pos)
		}

		out = append(out, HybridChunk{
			Chunk: Chunk{
				ByteStart:     uint64(pos),
				ByteEnd:       uint64(chunkEnd),
				Content:       content,
				ContentSHA256: sha256Hex(content),
				Raw:           raw,
			},
			ParentChunkIndex: -1,
			EditWindowID:     editWindowID,
			Replayed:         false,
		})

		next := chunkEnd - hybridCfg.MicroOverlapBytes
		if next <= pos {
			next = pos + 1
		}
		if chunkEnd >= end {
			break
		}
		pos = next
	}

	return out
}

func reindexAndSort(chunks []HybridChunk) {
	// result arrives as all verbatim replays (before and after the guard
	// band, in priorChunks order) followed by the micro-chunks, so the
	// micro-chunks must be moved between the two replay groups; a stable
	// insertion sort by ByteStart does that.
	for i := 1; i < len(chunks); i++ {
		for j := i; j > 0 && chunks[j].ByteStart < chunks[j-1].ByteStart; j-- {
			chunks[j], chunks[j-1] = chunks[j-1], chunks[j]
		}
	}
	for i := range chunks {
		chunks[i].Index = i
	}
}
