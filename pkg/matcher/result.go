package matcher

import "github.com/guardrail-dev/imgmatch/pkg/upstream"

// Matching methods, the closed tag set reported on every result.
const (
	MethodManual    = "manual"
	MethodCatalog   = "catalog"
	MethodHeuristic = "heuristic"
	MethodFuzzy     = "fuzzy"
	// MethodInteractive marks a match confirmed by a human during review;
	// the pipeline itself never produces it.
	MethodInteractive = "interactive"
	MethodNone        = "none"
)

// Tier confidence levels.
const (
	ConfidenceManual    = 1.0
	ConfidenceCatalog   = 0.95
	ConfidenceHeuristic = 0.85
)

// Result is the outcome of matching one source image.
type Result struct {
	// Image is the matched catalog reference, empty for a no-match.
	Image string
	// Confidence is the match confidence in [0,1].
	Confidence float64
	// Method names the tier that produced the match.
	Method string
	// Alternatives lists other plausible targets, populated only by the
	// fuzzy tier.
	Alternatives []string
	// Upstream carries discovery provenance when the source registry was
	// not directly accessible. Present even on a no-match result.
	Upstream *upstream.Result
	// Rationale is free-text reasoning, populated only by the fuzzy tier.
	Rationale string
	// EOLFallback is true when version resolution had to fall back past
	// the source's minor version line.
	EOLFallback bool
}

// Found reports whether a tier produced a match.
func (r Result) Found() bool {
	return r.Image != ""
}
