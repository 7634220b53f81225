package chunk

import (
	"testing"

	"github.com/saworbit/stablechunk/pkg/config"
)

func testChunks(data []byte, cfg config.ChunkingConfig) []Chunk {
	chunks, err := ChunkOffline(data, cfg)
	if err != nil {
		panic(err)
	}
	return chunks
}

func TestGenerateManifestRoundTrip(t *testing.T) {
	cfg := config.DefaultChunkingConfig()
	cfg.MinBytes = 16
	cfg.MaxBytes = 64
	cfg.OverlapBytes = 0
	hybrid := config.DefaultHybridConfig()

	data := []byte("manifest generation should describe every chunk in order, with consistent hashes.")
	chunks := testChunks(data, cfg)

	manifest, err := GenerateManifest("doc-1", data, chunks, cfg, hybrid)
	if err != nil {
		t.Fatalf("GenerateManifest() error = %v", err)
	}

	if manifest.Version != ManifestVersion {
		t.Errorf("manifest.Version = %q, want %q", manifest.Version, ManifestVersion)
	}
	if manifest.ChunkCount != len(chunks) {
		t.Errorf("manifest.ChunkCount = %d, want %d", manifest.ChunkCount, len(chunks))
	}
	if manifest.TotalBytes != uint64(len(data)) {
		t.Errorf("manifest.TotalBytes = %d, want %d", manifest.TotalBytes, len(data))
	}
	if manifest.DocContentSHA256 != sha256Hex(data) {
		t.Errorf("manifest.DocContentSHA256 mismatch")
	}

	wantHash, err := config.Fingerprint(cfg, hybrid)
	if err != nil {
		t.Fatalf("config.Fingerprint() error = %v", err)
	}
	if manifest.ConfigHash != wantHash {
		t.Errorf("manifest.ConfigHash = %s, want %s", manifest.ConfigHash, wantHash)
	}

	ok, problems := ValidateManifest(manifest)
	if !ok {
		t.Errorf("ValidateManifest() reported problems for a freshly generated manifest: %v", problems)
	}

	ok, problems = VerifyChunkIntegrity(manifest, chunks)
	if !ok {
		t.Errorf("VerifyChunkIntegrity() reported problems for the chunks the manifest was built from: %v", problems)
	}
}

func TestValidateManifestDetectsChunkCountMismatch(t *testing.T) {
	cfg := config.DefaultChunkingConfig()
	hybrid := config.DefaultHybridConfig()
	data := []byte("short document")
	chunks := testChunks(data, cfg)

	manifest, err := GenerateManifest("doc-2", data, chunks, cfg, hybrid)
	if err != nil {
		t.Fatalf("GenerateManifest() error = %v", err)
	}
	manifest.ChunkCount = manifest.ChunkCount + 1

	ok, problems := ValidateManifest(manifest)
	if ok {
		t.Error("ValidateManifest() should fail when chunk_count does not match the chunk list length")
	}
	if len(problems) == 0 {
		t.Error("ValidateManifest() returned no problems despite failing")
	}
}

func TestValidateManifestDetectsConfigHashTamper(t *testing.T) {
	cfg := config.DefaultChunkingConfig()
	hybrid := config.DefaultHybridConfig()
	data := []byte("short document")
	chunks := testChunks(data, cfg)

	manifest, err := GenerateManifest("doc-3", data, chunks, cfg, hybrid)
	if err != nil {
		t.Fatalf("GenerateManifest() error = %v", err)
	}
	manifest.ConfigHash = "0000000000000000"

	ok, problems := ValidateManifest(manifest)
	if ok {
		t.Error("ValidateManifest() should fail when config_hash does not match the recomputed hash")
	}
	if len(problems) == 0 {
		t.Error("ValidateManifest() returned no problems despite failing")
	}
}

func TestVerifyChunkIntegrityDetectsContentTamper(t *testing.T) {
	cfg := config.DefaultChunkingConfig()
	hybrid := config.DefaultHybridConfig()
	data := []byte("the manifest should catch tampered chunk content")
	chunks := testChunks(data, cfg)

	manifest, err := GenerateManifest("doc-4", data, chunks, cfg, hybrid)
	if err != nil {
		t.Fatalf("GenerateManifest() error = %v", err)
	}

	tampered := make([]Chunk, len(chunks))
	copy(tampered, chunks)
	if len(tampered) > 0 {
		corrupted := make([]byte, len(tampered[0].Content))
		copy(corrupted, tampered[0].Content)
		if len(corrupted) > 0 {
			corrupted[0] ^= 0xFF
		}
		tampered[0].Content = corrupted
	}

	ok, problems := VerifyChunkIntegrity(manifest, tampered)
	if ok {
		t.Error("VerifyChunkIntegrity() should fail when chunk content was tampered with")
	}
	if len(problems) == 0 {
		t.Error("VerifyChunkIntegrity() returned no problems despite failing")
	}
}

func TestVerifyChunkIntegrityDetectsCountMismatch(t *testing.T) {
	cfg := config.DefaultChunkingConfig()
	hybrid := config.DefaultHybridConfig()
	data := []byte("enough content to produce more than one chunk across several sentences of filler text.")
	chunks := testChunks(data, cfg)

	manifest, err := GenerateManifest("doc-5", data, chunks, cfg, hybrid)
	if err != nil {
		t.Fatalf("GenerateManifest() error = %v", err)
	}

	if len(chunks) == 0 {
		t.Skip("not enough chunks produced to test a count mismatch")
	}

	ok, problems := VerifyChunkIntegrity(manifest, chunks[:len(chunks)-1])
	if ok {
		t.Error("VerifyChunkIntegrity() should fail when fewer chunks are supplied than the manifest describes")
	}
	if len(problems) == 0 {
		t.Error("VerifyChunkIntegrity() returned no problems despite failing")
	}
}
