package matcher

import (
	"context"
	"strings"

	"github.com/guardrail-dev/imgmatch/pkg/image"
	log "github.com/guardrail-dev/imgmatch/pkg/log"
	"github.com/guardrail-dev/imgmatch/pkg/mappings"
	"github.com/guardrail-dev/imgmatch/pkg/oracle"
	"github.com/guardrail-dev/imgmatch/pkg/strategy"
)

// tier attempts to match one source image; ok=false passes control to the
// next tier.
type tier interface {
	match(ctx context.Context, source string) (Result, bool)
}

// normalizeTarget turns a mapping value into a private catalog reference:
// bare names gain the catalog repository prefix, public catalog references
// are rewritten to the private namespace.
func normalizeTarget(target string) string {
	if !strings.Contains(target, "/") {
		return image.CatalogRepository + "/" + target
	}
	return image.ConvertToPrivateCatalog(target)
}

// manualTier resolves exact-string overrides from the user's mapping file.
type manualTier struct {
	table *mappings.Manual
}

func (t *manualTier) match(_ context.Context, source string) (Result, bool) {
	target, ok := t.table.Lookup(source)
	if !ok {
		return Result{}, false
	}
	target = normalizeTarget(target)
	log.Debug("manual override", "source", source, "target", target)
	return Result{Image: target, Confidence: ConfidenceManual, Method: MethodManual}, true
}

// catalogTier resolves pattern-based mappings from the catalog table.
type catalogTier struct {
	table *mappings.Catalog
}

func (t *catalogTier) match(_ context.Context, source string) (Result, bool) {
	target, ok := t.table.MatchImage(source)
	if !ok {
		return Result{}, false
	}
	target = normalizeTarget(target)
	log.Debug("catalog mapping", "source", source, "target", target)
	return Result{Image: target, Confidence: ConfidenceCatalog, Method: MethodCatalog}, true
}

// heuristicTier generates candidate names and verifies each against the
// oracle; the first verified candidate wins.
type heuristicTier struct {
	strategies []strategy.CandidateStrategy
	oracle     oracle.Oracle
}

func (t *heuristicTier) match(ctx context.Context, source string) (Result, bool) {
	for _, candidate := range strategy.GenerateCandidates(t.strategies, source) {
		if t.oracle.Exists(ctx, candidate) {
			log.Debug("heuristic match", "source", source, "target", candidate)
			return Result{Image: candidate, Confidence: ConfidenceHeuristic, Method: MethodHeuristic}, true
		}
	}
	return Result{}, false
}

// fuzzyTier delegates to the injected fuzzy capability. A suggestion is
// accepted only above the capability's own confidence threshold and after an
// independent existence check: the capability validates against the catalog
// internally, but a stale or hallucinated suggestion must not leak through.
type fuzzyTier struct {
	fuzzy  oracle.FuzzyMatcher
	oracle oracle.Oracle
}

func (t *fuzzyTier) match(ctx context.Context, source string) (Result, bool) {
	suggestion, ok := t.fuzzy.Suggest(ctx, source)
	if !ok || suggestion.Image == "" {
		return Result{}, false
	}
	if suggestion.Confidence < t.fuzzy.ConfidenceThreshold() {
		log.Debug("fuzzy suggestion below threshold",
			"source", source, "confidence", suggestion.Confidence)
		return Result{}, false
	}

	target := image.ConvertToPrivateCatalog(suggestion.Image)
	if !t.oracle.Exists(ctx, target) {
		log.Warn("fuzzy suggestion does not exist", "source", source, "target", target)
		return Result{}, false
	}

	log.Debug("fuzzy match", "source", source, "target", target,
		"confidence", suggestion.Confidence)
	return Result{
		Image:      target,
		Confidence: suggestion.Confidence,
		Method:     MethodFuzzy,
		Rationale:  suggestion.Rationale,
	}, true
}
