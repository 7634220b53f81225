package config

import (
	"os"
	"testing"
)

func TestDefaultChunkingConfig(t *testing.T) {
	cfg := DefaultChunkingConfig()

	if cfg.MinBytes != 256 {
		t.Errorf("Expected default min_bytes 256, got %d", cfg.MinBytes)
	}
	if cfg.MaxBytes != 4096 {
		t.Errorf("Expected default max_bytes 4096, got %d", cfg.MaxBytes)
	}
	if cfg.OverlapBytes != 64 {
		t.Errorf("Expected default overlap_bytes 64, got %d", cfg.OverlapBytes)
	}
	if cfg.CommitHorizonBytes != 1024 {
		t.Errorf("Expected default commit_horizon_bytes 1024, got %d", cfg.CommitHorizonBytes)
	}
	if cfg.LTargetBytes != 2048 {
		t.Errorf("Expected default L_target_bytes 2048, got %d", cfg.LTargetBytes)
	}
	if !cfg.UseCurvature || cfg.UseDisharmony || !cfg.UseStabilityMargin || !cfg.UseStructuralBoundaries {
		t.Errorf("Unexpected default feature toggles: %+v", cfg)
	}
	if cfg.DiagnosticMode != "proxy_entropy" {
		t.Errorf("Expected default diagnostic_mode 'proxy_entropy', got '%s'", cfg.DiagnosticMode)
	}
}

func TestDefaultHybridConfig(t *testing.T) {
	h := DefaultHybridConfig()

	if h.MicroChunkBytes != 768 {
		t.Errorf("Expected default micro_chunk_bytes 768, got %d", h.MicroChunkBytes)
	}
	if h.MicroOverlapBytes != 96 {
		t.Errorf("Expected default micro_overlap_bytes 96, got %d", h.MicroOverlapBytes)
	}
	if h.GuardBandBytes != 256 {
		t.Errorf("Expected default guard_band_bytes 256, got %d", h.GuardBandBytes)
	}
}

func TestLoadChunkingConfigFromEnv(t *testing.T) {
	os.Setenv("STABLECHUNK_MIN_BYTES", "128")
	os.Setenv("STABLECHUNK_MAX_BYTES", "8192")
	os.Setenv("STABLECHUNK_OVERLAP_BYTES", "32")
	os.Setenv("STABLECHUNK_COMMIT_HORIZON_BYTES", "2048")
	os.Setenv("STABLECHUNK_L_TARGET_BYTES", "0")
	os.Setenv("STABLECHUNK_SOFT_TRIGGER_THRESHOLD", "2.5")
	os.Setenv("STABLECHUNK_SOFT_TRIGGER_SUSTAIN_STEPS", "5")
	os.Setenv("STABLECHUNK_USE_DISHARMONY", "true")
	os.Setenv("STABLECHUNK_DIAGNOSTIC_MODE", "custom_mode")
	defer func() {
		os.Unsetenv("STABLECHUNK_MIN_BYTES")
		os.Unsetenv("STABLECHUNK_MAX_BYTES")
		os.Unsetenv("STABLECHUNK_OVERLAP_BYTES")
		os.Unsetenv("STABLECHUNK_COMMIT_HORIZON_BYTES")
		os.Unsetenv("STABLECHUNK_L_TARGET_BYTES")
		os.Unsetenv("STABLECHUNK_SOFT_TRIGGER_THRESHOLD")
		os.Unsetenv("STABLECHUNK_SOFT_TRIGGER_SUSTAIN_STEPS")
		os.Unsetenv("STABLECHUNK_USE_DISHARMONY")
		os.Unsetenv("STABLECHUNK_DIAGNOSTIC_MODE")
	}()

	cfg := LoadChunkingConfigFromEnv()

	if cfg.MinBytes != 128 {
		t.Errorf("Expected min_bytes 128, got %d", cfg.MinBytes)
	}
	if cfg.MaxBytes != 8192 {
		t.Errorf("Expected max_bytes 8192, got %d", cfg.MaxBytes)
	}
	if cfg.OverlapBytes != 32 {
		t.Errorf("Expected overlap_bytes 32, got %d", cfg.OverlapBytes)
	}
	if cfg.CommitHorizonBytes != 2048 {
		t.Errorf("Expected commit_horizon_bytes 2048, got %d", cfg.CommitHorizonBytes)
	}
	if cfg.LTargetBytes != 0 {
		t.Errorf("Expected L_target_bytes 0, got %d", cfg.LTargetBytes)
	}
	if cfg.SoftTriggerThreshold != 2.5 {
		t.Errorf("Expected soft_trigger_threshold 2.5, got %v", cfg.SoftTriggerThreshold)
	}
	if cfg.SoftTriggerSustainSteps != 5 {
		t.Errorf("Expected soft_trigger_sustain_steps 5, got %d", cfg.SoftTriggerSustainSteps)
	}
	if !cfg.UseDisharmony {
		t.Error("Expected UseDisharmony to be true")
	}
	if cfg.DiagnosticMode != "custom_mode" {
		t.Errorf("Expected diagnostic_mode 'custom_mode', got '%s'", cfg.DiagnosticMode)
	}
}

func TestChunkingConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c ChunkingConfig) ChunkingConfig
		wantErr bool
	}{
		{"valid default config", func(c ChunkingConfig) ChunkingConfig { return c }, false},
		{"non-positive min_bytes", func(c ChunkingConfig) ChunkingConfig {
			c.MinBytes = 0
			return c
		}, true},
		{"max_bytes not exceeding min_bytes", func(c ChunkingConfig) ChunkingConfig {
			c.MaxBytes = c.MinBytes
			return c
		}, true},
		{"overlap_bytes equal to max_bytes", func(c ChunkingConfig) ChunkingConfig {
			c.OverlapBytes = c.MaxBytes
			return c
		}, true},
		{"negative overlap_bytes", func(c ChunkingConfig) ChunkingConfig {
			c.OverlapBytes = -1
			return c
		}, true},
		{"non-positive commit_horizon_bytes", func(c ChunkingConfig) ChunkingConfig {
			c.CommitHorizonBytes = 0
			return c
		}, true},
		{"negative L_target_bytes", func(c ChunkingConfig) ChunkingConfig {
			c.LTargetBytes = -1
			return c
		}, true},
		{"zero L_target_bytes disables length term but is valid", func(c ChunkingConfig) ChunkingConfig {
			c.LTargetBytes = 0
			return c
		}, false},
		{"negative weight", func(c ChunkingConfig) ChunkingConfig {
			c.WB = -1
			return c
		}, true},
		{"non-positive soft_trigger_threshold", func(c ChunkingConfig) ChunkingConfig {
			c.SoftTriggerThreshold = 0
			return c
		}, true},
		{"non-positive soft_trigger_sustain_steps", func(c ChunkingConfig) ChunkingConfig {
			c.SoftTriggerSustainSteps = 0
			return c
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.mutate(DefaultChunkingConfig())
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestHybridConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(h HybridConfig) HybridConfig
		wantErr bool
	}{
		{"valid default config", func(h HybridConfig) HybridConfig { return h }, false},
		{"non-positive micro_chunk_bytes", func(h HybridConfig) HybridConfig {
			h.MicroChunkBytes = 0
			return h
		}, true},
		{"micro_overlap_bytes equal to micro_chunk_bytes", func(h HybridConfig) HybridConfig {
			h.MicroOverlapBytes = h.MicroChunkBytes
			return h
		}, true},
		{"negative guard_band_bytes", func(h HybridConfig) HybridConfig {
			h.GuardBandBytes = -1
			return h
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := tt.mutate(DefaultHybridConfig())
			err := h.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	cfg := DefaultChunkingConfig()
	h := DefaultHybridConfig()

	f1, err := Fingerprint(cfg, h)
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}
	f2, err := Fingerprint(cfg, h)
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}

	if f1 != f2 {
		t.Errorf("Fingerprint() not deterministic: %s != %s", f1, f2)
	}
	if len(f1) != 16 {
		t.Errorf("Expected 16-character fingerprint, got %d characters: %s", len(f1), f1)
	}
}

func TestFingerprintChangesWithConfig(t *testing.T) {
	cfg := DefaultChunkingConfig()
	h := DefaultHybridConfig()

	base, err := Fingerprint(cfg, h)
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}

	cfg.MaxBytes = cfg.MaxBytes * 2
	changed, err := Fingerprint(cfg, h)
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}

	if base == changed {
		t.Error("Fingerprint() did not change after a configuration change")
	}
}

func TestFingerprintMapRoundTrip(t *testing.T) {
	cfg := DefaultChunkingConfig()
	h := DefaultHybridConfig()

	canonical := CanonicalConfig(cfg, h)
	direct, err := Fingerprint(cfg, h)
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}
	fromMap, err := FingerprintMap(canonical)
	if err != nil {
		t.Fatalf("FingerprintMap() error = %v", err)
	}

	if direct != fromMap {
		t.Errorf("FingerprintMap() = %s, want %s", fromMap, direct)
	}
}
