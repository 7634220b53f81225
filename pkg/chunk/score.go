package chunk

import "github.com/saworbit/stablechunk/pkg/config"

// relu is the hinge function every normalized signal deviation is passed
// through before weighting: only deviations above the configured threshold
// contribute to the cut score.
func relu(x float64) float64 {
	if x > 0 {
		return x
	}
	return 0
}

// lengthPull is the soft pull toward L_target_bytes: zero until the chunk
// reaches the target length, then grows linearly past it. It is only added
// to the cut score when cfg.LTargetBytes > 0.
func lengthPull(l, target int) float64 {
	if target <= 0 || l <= target {
		return 0
	}
	return float64(l-target) / float64(target)
}

// ComposeCutScore combines the raw and normalized signals at a position
// into the single scalar the boundary selectors maximize. Each term is
// independently gated by its cfg.Use* toggle; the length term is gated by
// cfg.LTargetBytes > 0 instead, since a target of 0 means "no target".
func ComposeCutScore(raw RawSignals, norm NormalizedSignals, cfg config.ChunkingConfig) float64 {
	var score float64

	if cfg.UseCurvature {
		score += cfg.WK * relu(norm.K-cfg.K0)
	}
	if cfg.UseDisharmony {
		score += cfg.WD * relu(norm.D-cfg.D0)
	}
	if cfg.UseStabilityMargin {
		// Low S below s0 pushes the score up: boundaries belong where
		// stability margin is low, not high.
		score += cfg.WS * relu(cfg.S0-norm.S)
	}
	if cfg.UseStructuralBoundaries {
		score += cfg.WB * raw.B
	}
	if cfg.LTargetBytes > 0 {
		score += cfg.WL * lengthPull(raw.L, cfg.LTargetBytes)
	}

	return score
}
