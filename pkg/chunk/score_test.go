package chunk

import (
	"testing"

	"github.com/saworbit/stablechunk/pkg/config"
)

func TestReLU(t *testing.T) {
	tests := []struct {
		name string
		x    float64
		want float64
	}{
		{"positive", 2.5, 2.5},
		{"zero", 0, 0},
		{"negative", -3.0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := relu(tt.x); got != tt.want {
				t.Errorf("relu(%v) = %v, want %v", tt.x, got, tt.want)
			}
		})
	}
}

func TestLengthPull(t *testing.T) {
	tests := []struct {
		name   string
		l      int
		target int
		want   float64
	}{
		{"below target", 100, 2048, 0},
		{"at target", 2048, 2048, 0},
		{"past target", 4096, 2048, 1.0},
		{"zero target disables the term", 4096, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := lengthPull(tt.l, tt.target); got != tt.want {
				t.Errorf("lengthPull(%d, %d) = %v, want %v", tt.l, tt.target, got, tt.want)
			}
		})
	}
}

func TestComposeCutScoreGatesDisabledTerms(t *testing.T) {
	cfg := config.DefaultChunkingConfig()
	cfg.UseCurvature = false
	cfg.UseDisharmony = false
	cfg.UseStabilityMargin = false
	cfg.UseStructuralBoundaries = false
	cfg.LTargetBytes = 0

	raw := RawSignals{K: 100, D: 100, S: 100, B: 1.0, L: 1_000_000}
	norm := NormalizedSignals{K: 100, D: 100, S: 100}

	score := ComposeCutScore(raw, norm, cfg)
	if score != 0 {
		t.Errorf("ComposeCutScore() with every term disabled = %v, want 0", score)
	}
}

func TestComposeCutScoreNewlineBonus(t *testing.T) {
	cfg := config.DefaultChunkingConfig()
	cfg.UseCurvature = false
	cfg.UseDisharmony = false
	cfg.UseStabilityMargin = false
	cfg.LTargetBytes = 0

	raw := RawSignals{B: 1.0}
	norm := NormalizedSignals{}

	score := ComposeCutScore(raw, norm, cfg)
	if score != cfg.WB {
		t.Errorf("ComposeCutScore() at a newline = %v, want wB (%v)", score, cfg.WB)
	}
}

func TestComposeCutScoreThresholdGate(t *testing.T) {
	cfg := config.DefaultChunkingConfig()
	cfg.UseDisharmony = false
	cfg.UseStabilityMargin = false
	cfg.UseStructuralBoundaries = false
	cfg.LTargetBytes = 0

	below := ComposeCutScore(RawSignals{}, NormalizedSignals{K: cfg.K0 - 0.01}, cfg)
	if below != 0 {
		t.Errorf("ComposeCutScore() below k0 threshold = %v, want 0", below)
	}

	above := ComposeCutScore(RawSignals{}, NormalizedSignals{K: cfg.K0 + 1.0}, cfg)
	if above <= 0 {
		t.Errorf("ComposeCutScore() above k0 threshold = %v, want positive", above)
	}
}

func TestComposeCutScoreStabilityMarginRewardsLowS(t *testing.T) {
	cfg := config.DefaultChunkingConfig()
	cfg.UseCurvature = false
	cfg.UseDisharmony = false
	cfg.UseStructuralBoundaries = false
	cfg.LTargetBytes = 0

	low := ComposeCutScore(RawSignals{}, NormalizedSignals{S: cfg.S0 - 1.0}, cfg)
	if low <= 0 {
		t.Errorf("ComposeCutScore() with S below s0 = %v, want positive (low stability margin should push the score up)", low)
	}

	high := ComposeCutScore(RawSignals{}, NormalizedSignals{S: cfg.S0 + 1.0}, cfg)
	if high != 0 {
		t.Errorf("ComposeCutScore() with S above s0 = %v, want 0 (high stability margin must not contribute)", high)
	}
}
