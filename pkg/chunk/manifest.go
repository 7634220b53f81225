package chunk

import (
	"fmt"
	"time"

	"github.com/saworbit/stablechunk/pkg/config"
)

// GenerateManifest builds the durable record of one chunking run: the
// document's own content hash, the configuration fingerprint and canonical
// config map, and one ChunkMetadata entry per chunk in order.
func GenerateManifest(docID string, data []byte, chunks []Chunk, cfg config.ChunkingConfig, hybrid config.HybridConfig) (ChunkManifest, error) {
	fingerprint, err := config.Fingerprint(cfg, hybrid)
	if err != nil {
		return ChunkManifest{}, fmt.Errorf("compute config fingerprint: %w", err)
	}

	metas := make([]ChunkMetadata, len(chunks))
	for i, c := range chunks {
		metas[i] = ChunkMetadata{
			Index:         c.Index,
			ByteStart:     c.ByteStart,
			ByteEnd:       c.ByteEnd,
			ByteLength:    c.ByteEnd - c.ByteStart,
			ContentSHA256: c.ContentSHA256,
			CutScore:      c.CutScore,
			Signals:       c.Raw,
			Normalized:    c.Norm,
		}
	}

	return ChunkManifest{
		Version:          ManifestVersion,
		DocID:             docID,
		DocContentSHA256:  sha256Hex(data),
		TotalBytes:        uint64(len(data)),
		ChunkCount:        len(chunks),
		ConfigHash:        fingerprint,
		Config:            config.CanonicalConfig(cfg, hybrid),
		CreatedAt:         time.Now().UTC().Format(time.RFC3339),
		Chunks:            metas,
	}, nil
}

// ValidateManifest performs the structural checks of a manifest taken in
// isolation — it never looks at the chunk bytes themselves. It returns
// whether the manifest is structurally sound and the list of problems found,
// mirroring the (bool, []string) shape of a Go validation result rather than
// raising on the first failure, so a caller can report every problem at once.
func ValidateManifest(m ChunkManifest) (bool, []string) {
	var problems []string

	if m.Version == "" {
		problems = append(problems, "version is empty")
	}
	if m.DocContentSHA256 == "" {
		problems = append(problems, "doc_content_sha256 is empty")
	}
	if m.ConfigHash == "" {
		problems = append(problems, "config_hash is empty")
	}
	if m.ChunkCount != len(m.Chunks) {
		problems = append(problems, fmt.Sprintf("chunk_count %d does not match %d chunk entries", m.ChunkCount, len(m.Chunks)))
	}

	for i, c := range m.Chunks {
		if c.Index != i {
			problems = append(problems, fmt.Sprintf("chunk entry %d has index %d, expected %d", i, c.Index, i))
		}
		if c.ByteEnd < c.ByteStart {
			problems = append(problems, fmt.Sprintf("chunk %d has byte_end %d before byte_start %d", i, c.ByteEnd, c.ByteStart))
			continue
		}
		if c.ByteLength != c.ByteEnd-c.ByteStart {
			problems = append(problems, fmt.Sprintf("chunk %d byte_length %d does not match byte_end-byte_start %d", i, c.ByteLength, c.ByteEnd-c.ByteStart))
		}
		if c.ContentSHA256 == "" {
			problems = append(problems, fmt.Sprintf("chunk %d has empty content_sha256", i))
		}
	}

	recomputed, err := config.FingerprintMap(m.Config)
	if err != nil {
		problems = append(problems, fmt.Sprintf("could not recompute config_hash: %v", err))
	} else if m.ConfigHash != "" && recomputed != m.ConfigHash {
		problems = append(problems, fmt.Sprintf("config_hash %s does not match recomputed %s", m.ConfigHash, recomputed))
	}

	return len(problems) == 0, problems
}

// VerifyChunkIntegrity cross-checks a manifest against the actual Chunk
// values it claims to describe: content hash, byte range, and ordering.
// This is distinct from ValidateManifest, which never sees chunk bytes.
func VerifyChunkIntegrity(m ChunkManifest, chunks []Chunk) (bool, []string) {
	var problems []string

	if len(m.Chunks) != len(chunks) {
		problems = append(problems, fmt.Sprintf("manifest describes %d chunks, got %d actual chunks", len(m.Chunks), len(chunks)))
	}

	n := len(m.Chunks)
	if len(chunks) < n {
		n = len(chunks)
	}

	for i := 0; i < n; i++ {
		meta := m.Chunks[i]
		actual := chunks[i]

		if meta.ByteStart != actual.ByteStart || meta.ByteEnd != actual.ByteEnd {
			problems = append(problems, fmt.Sprintf("chunk %d byte range mismatch: manifest [%d,%d), actual [%d,%d)",
				i, meta.ByteStart, meta.ByteEnd, actual.ByteStart, actual.ByteEnd))
		}
		if meta.ByteLength != uint64(len(actual.Content)) {
			problems = append(problems, fmt.Sprintf("chunk %d byte_length %d does not match actual content length %d",
				i, meta.ByteLength, len(actual.Content)))
		}

		actualHash := sha256Hex(actual.Content)
		if meta.ContentSHA256 != actualHash {
			problems = append(problems, fmt.Sprintf("chunk %d content_sha256 mismatch: manifest %s, actual %s",
				i, meta.ContentSHA256, actualHash))
		}
	}

	return len(problems) == 0, problems
}
