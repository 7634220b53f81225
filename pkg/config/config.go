// Package config holds the tunable parameters for stability-driven chunking:
// byte-length bounds, cut-score weights and thresholds, streaming trigger
// behavior, and the hybrid orchestrator's micro-chunk geometry.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// ChunkingConfig holds the parameters of the stability-driven chunker.
type ChunkingConfig struct {
	// MinBytes is the shortest permissible chunk, except an end-of-input tail.
	MinBytes int

	// MaxBytes is the longest permissible chunk; also the streaming hard-trigger threshold.
	MaxBytes int

	// OverlapBytes is how many bytes of content the next chunk repeats from the previous one.
	OverlapBytes int

	// CommitHorizonBytes sizes the rolling normalizers and the streaming candidate retention window.
	CommitHorizonBytes int

	// LTargetBytes is the soft length target; 0 disables the length term.
	LTargetBytes int

	// Weights applied to each cut-score term.
	WK float64
	WD float64
	WS float64
	WB float64
	WL float64

	// Thresholds applied to normalized signals before the weight.
	K0 float64
	D0 float64
	S0 float64

	// Feature toggles for each cut-score term.
	UseCurvature            bool
	UseDisharmony           bool
	UseStabilityMargin      bool
	UseStructuralBoundaries bool

	// SoftTriggerThreshold is the score a streaming position must reach to start the sustain counter.
	SoftTriggerThreshold float64

	// SoftTriggerSustainSteps is how many consecutive positions must clear the threshold before committing.
	SoftTriggerSustainSteps int

	// DiagnosticMode labels which signal implementation produced K and S.
	// v1 uses entropy/variance proxies rather than a learned curvature model.
	DiagnosticMode string
}

// HybridConfig controls the hybrid orchestrator's guard band and micro-chunk geometry.
type HybridConfig struct {
	MicroChunkBytes   int
	MicroOverlapBytes int
	GuardBandBytes    int
}

// DefaultChunkingConfig returns the baseline profile: moderate chunk sizes,
// curvature and stability-margin signals enabled, disharmony off.
func DefaultChunkingConfig() ChunkingConfig {
	return ChunkingConfig{
		MinBytes:           256,
		MaxBytes:           4096,
		OverlapBytes:       64,
		CommitHorizonBytes: 1024,
		LTargetBytes:       2048,

		WK: 1.0,
		WD: 0.8,
		WS: 0.6,
		WB: 2.0,
		WL: 0.5,

		K0: 0.5,
		D0: 0.5,
		S0: 0.5,

		UseCurvature:            true,
		UseDisharmony:           false,
		UseStabilityMargin:      true,
		UseStructuralBoundaries: true,

		SoftTriggerThreshold:    1.5,
		SoftTriggerSustainSteps: 3,

		DiagnosticMode: "proxy_entropy",
	}
}

// DefaultHybridConfig returns the hybrid orchestrator's default guard band
// and micro-chunk geometry.
func DefaultHybridConfig() HybridConfig {
	return HybridConfig{
		MicroChunkBytes:   768,
		MicroOverlapBytes: 96,
		GuardBandBytes:    256,
	}
}

// LoadChunkingConfigFromEnv overlays STABLECHUNK_* environment variables onto the defaults.
func LoadChunkingConfigFromEnv() ChunkingConfig {
	cfg := DefaultChunkingConfig()

	if v := os.Getenv("STABLECHUNK_MIN_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MinBytes = n
		}
	}
	if v := os.Getenv("STABLECHUNK_MAX_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxBytes = n
		}
	}
	if v := os.Getenv("STABLECHUNK_OVERLAP_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.OverlapBytes = n
		}
	}
	if v := os.Getenv("STABLECHUNK_COMMIT_HORIZON_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CommitHorizonBytes = n
		}
	}
	if v := os.Getenv("STABLECHUNK_L_TARGET_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LTargetBytes = n
		}
	}
	if v := os.Getenv("STABLECHUNK_SOFT_TRIGGER_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.SoftTriggerThreshold = f
		}
	}
	if v := os.Getenv("STABLECHUNK_SOFT_TRIGGER_SUSTAIN_STEPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SoftTriggerSustainSteps = n
		}
	}
	if v := os.Getenv("STABLECHUNK_USE_CURVATURE"); v != "" {
		cfg.UseCurvature = isTruthy(v)
	}
	if v := os.Getenv("STABLECHUNK_USE_DISHARMONY"); v != "" {
		cfg.UseDisharmony = isTruthy(v)
	}
	if v := os.Getenv("STABLECHUNK_USE_STABILITY_MARGIN"); v != "" {
		cfg.UseStabilityMargin = isTruthy(v)
	}
	if v := os.Getenv("STABLECHUNK_USE_STRUCTURAL_BOUNDARIES"); v != "" {
		cfg.UseStructuralBoundaries = isTruthy(v)
	}
	if v := os.Getenv("STABLECHUNK_DIAGNOSTIC_MODE"); v != "" {
		cfg.DiagnosticMode = v
	}

	return cfg
}

func isTruthy(v string) bool {
	return v == "1" || v == "true" || v == "TRUE"
}

// Validate rejects configurations that would make the chunking algorithms
// ill-defined: non-positive sizes, overlap exceeding chunk size, negative
// weights or thresholds.
func (c ChunkingConfig) Validate() error {
	if c.MinBytes <= 0 {
		return fmt.Errorf("min_bytes must be positive, got: %d", c.MinBytes)
	}
	if c.MaxBytes <= c.MinBytes {
		return fmt.Errorf("max_bytes must exceed min_bytes (min=%d max=%d)", c.MinBytes, c.MaxBytes)
	}
	if c.OverlapBytes < 0 || c.OverlapBytes >= c.MaxBytes {
		return fmt.Errorf("overlap_bytes must be in [0, max_bytes) (overlap=%d max=%d)", c.OverlapBytes, c.MaxBytes)
	}
	if c.CommitHorizonBytes <= 0 {
		return fmt.Errorf("commit_horizon_bytes must be positive, got: %d", c.CommitHorizonBytes)
	}
	if c.LTargetBytes < 0 {
		return fmt.Errorf("L_target_bytes must be >= 0, got: %d", c.LTargetBytes)
	}
	weights := map[string]float64{"wK": c.WK, "wD": c.WD, "wS": c.WS, "wB": c.WB, "wL": c.WL}
	for _, name := range []string{"wK", "wD", "wS", "wB", "wL"} {
		if weights[name] < 0 {
			return fmt.Errorf("weight %s must be >= 0, got: %v", name, weights[name])
		}
	}
	if c.SoftTriggerThreshold <= 0 {
		return fmt.Errorf("soft_trigger_threshold must be positive, got: %v", c.SoftTriggerThreshold)
	}
	if c.SoftTriggerSustainSteps <= 0 {
		return fmt.Errorf("soft_trigger_sustain_steps must be positive, got: %d", c.SoftTriggerSustainSteps)
	}
	return nil
}

// Validate checks the hybrid configuration.
func (h HybridConfig) Validate() error {
	if h.MicroChunkBytes <= 0 {
		return fmt.Errorf("micro_chunk_bytes must be positive, got: %d", h.MicroChunkBytes)
	}
	if h.MicroOverlapBytes < 0 || h.MicroOverlapBytes >= h.MicroChunkBytes {
		return fmt.Errorf("micro_overlap_bytes must be in [0, micro_chunk_bytes) (overlap=%d chunk=%d)", h.MicroOverlapBytes, h.MicroChunkBytes)
	}
	if h.GuardBandBytes < 0 {
		return fmt.Errorf("guard_band_bytes must be >= 0, got: %d", h.GuardBandBytes)
	}
	return nil
}

// CanonicalConfig renders both configs into the single key-sorted map the
// fingerprint and the chunk manifest's "config" field are built from.
// encoding/json sorts map string keys on marshal, which is what makes the
// fingerprint independent of struct field order.
func CanonicalConfig(c ChunkingConfig, h HybridConfig) map[string]any {
	return map[string]any{
		"min_bytes":                  c.MinBytes,
		"max_bytes":                  c.MaxBytes,
		"overlap_bytes":              c.OverlapBytes,
		"commit_horizon_bytes":       c.CommitHorizonBytes,
		"L_target_bytes":             c.LTargetBytes,
		"wK":                         c.WK,
		"wD":                         c.WD,
		"wS":                         c.WS,
		"wB":                         c.WB,
		"wL":                         c.WL,
		"k0":                         c.K0,
		"d0":                         c.D0,
		"s0":                         c.S0,
		"use_curvature":              c.UseCurvature,
		"use_disharmony":             c.UseDisharmony,
		"use_stability_margin":       c.UseStabilityMargin,
		"use_structural_boundaries":  c.UseStructuralBoundaries,
		"soft_trigger_threshold":     c.SoftTriggerThreshold,
		"soft_trigger_sustain_steps": c.SoftTriggerSustainSteps,
		"diagnostic_mode":            c.DiagnosticMode,
		"micro_chunk_bytes":          h.MicroChunkBytes,
		"micro_overlap_bytes":        h.MicroOverlapBytes,
		"guard_band_bytes":           h.GuardBandBytes,
	}
}

// Fingerprint computes a stable configuration hash: a SHA-256 over the
// canonical key-sorted representation, truncated to 16 hex characters. Two
// runs with identical fingerprints and identical input must emit identical
// manifests.
func Fingerprint(c ChunkingConfig, h HybridConfig) (string, error) {
	return FingerprintMap(CanonicalConfig(c, h))
}

// FingerprintMap hashes an already-canonicalized configuration map, used when
// revalidating a fingerprint stored in a manifest.
func FingerprintMap(canonical map[string]any) (string, error) {
	encoded, err := json.Marshal(canonical)
	if err != nil {
		return "", fmt.Errorf("marshal canonical config: %w", err)
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])[:16], nil
}
