// Package matcher orchestrates the resolution pipeline: registry access
// check, upstream discovery, tiered matching, FIPS variant substitution,
// and version resolution.
package matcher

import (
	"context"
	"strings"

	"github.com/guardrail-dev/imgmatch/pkg/image"
	log "github.com/guardrail-dev/imgmatch/pkg/log"
	"github.com/guardrail-dev/imgmatch/pkg/mappings"
	"github.com/guardrail-dev/imgmatch/pkg/oracle"
	"github.com/guardrail-dev/imgmatch/pkg/strategy"
	"github.com/guardrail-dev/imgmatch/pkg/upstream"
	"github.com/guardrail-dev/imgmatch/pkg/version"
)

// Options are the per-run scalars controlling post-processing.
type Options struct {
	// PreferFIPS substitutes an existing -fips variant of the matched
	// image.
	PreferFIPS bool
	// ResolveVersions enables version resolution; when false, matched
	// images without a tag or digest get ":latest" appended.
	ResolveVersions bool
	// FreshnessThresholdDays is passed through to the version matcher.
	FreshnessThresholdDays int
}

// Config wires the orchestrator's collaborators. Oracle is required;
// Access, Upstream, Fuzzy, and Versions are optional and disable their
// pipeline step when nil.
type Config struct {
	Manual     *mappings.Manual
	Catalog    *mappings.Catalog
	Strategies []strategy.CandidateStrategy
	Oracle     oracle.Oracle
	Access     oracle.AccessChecker
	Upstream   *upstream.Finder
	Fuzzy      oracle.FuzzyMatcher
	Versions   *version.Matcher
	Options    Options
}

// Matcher resolves source images to catalog images. A single Match call is
// sequential; concurrent Match calls for different sources are safe because
// all shared state lives in concurrency-safe caches.
type Matcher struct {
	tiers    []tier
	oracle   oracle.Oracle
	access   oracle.AccessChecker
	upstream *upstream.Finder
	versions *version.Matcher
	opts     Options
}

// New creates a Matcher from cfg. Nil mapping tables behave as empty.
func New(cfg Config) *Matcher {
	if cfg.Strategies == nil {
		cfg.Strategies = strategy.Default()
	}
	if cfg.Manual == nil {
		cfg.Manual = mappings.LoadManual(nil, "")
	}
	if cfg.Catalog == nil {
		cfg.Catalog = mappings.LoadCatalog(nil, "")
	}

	tiers := []tier{
		&manualTier{table: cfg.Manual},
		&catalogTier{table: cfg.Catalog},
		&heuristicTier{strategies: cfg.Strategies, oracle: cfg.Oracle},
	}
	if cfg.Fuzzy != nil {
		tiers = append(tiers, &fuzzyTier{fuzzy: cfg.Fuzzy, oracle: cfg.Oracle})
	}

	return &Matcher{
		tiers:    tiers,
		oracle:   cfg.Oracle,
		access:   cfg.Access,
		upstream: cfg.Upstream,
		versions: cfg.Versions,
		opts:     cfg.Options,
	}
}

// Match resolves one source image. It never returns an error: every failure
// along the way degrades to the "none" result.
func (m *Matcher) Match(ctx context.Context, source string) Result {
	toMatch := source

	// Upstream discovery runs only for registries we cannot pull from.
	var discovered *upstream.Result
	if m.upstream != nil && !m.accessible(ctx, source) {
		found := m.upstream.Find(ctx, source)
		discovered = &found
		if found.Found() {
			log.Info("upstream found", "source", source,
				"upstream", found.Image, "method", found.Method, "confidence", found.Confidence)
			toMatch = found.Image
		}
	}

	for _, t := range m.tiers {
		result, ok := t.match(ctx, toMatch)
		if !ok {
			continue
		}
		result.Upstream = discovered

		if m.opts.PreferFIPS {
			result.Image = m.fipsVariant(ctx, result.Image)
		}

		if m.versions != nil && m.opts.ResolveVersions {
			result = m.resolveVersion(ctx, source, result)
		} else {
			result.Image = appendLatest(result.Image)
		}
		return result
	}

	log.Debug("no match", "source", toMatch)
	return Result{Method: MethodNone, Upstream: discovered}
}

func (m *Matcher) accessible(ctx context.Context, source string) bool {
	if m.access == nil {
		return true
	}
	return m.access.IsAccessible(ctx, source)
}

// fipsVariant substitutes the -fips form of the matched image when it
// exists. Images already denoting a FIPS variant pass through, so the
// substitution is idempotent.
func (m *Matcher) fipsVariant(ctx context.Context, matched string) string {
	if isFIPSImage(matched) {
		return matched
	}

	var candidate string
	switch {
	case strings.Contains(matched, ":"):
		base, tag, _ := strings.Cut(matched, ":")
		candidate = base + "-fips:" + tag
	case strings.Contains(matched, "@"):
		base, digest, _ := strings.Cut(matched, "@")
		candidate = base + "-fips@" + digest
	default:
		candidate = matched + "-fips"
	}

	if m.oracle.Exists(ctx, candidate) {
		log.Info("FIPS variant found", "image", matched, "fips", candidate)
		return candidate
	}
	return matched
}

func isFIPSImage(ref string) bool {
	return strings.Contains(ref, "-fips:") ||
		strings.Contains(ref, "-fips@") ||
		strings.HasSuffix(ref, "-fips")
}

// resolveVersion replaces the matched image's tag with the resolved one,
// preserving every other result field.
func (m *Matcher) resolveVersion(ctx context.Context, source string, result Result) Result {
	base := result.Image
	if idx := strings.LastIndexAny(base, ":@"); idx > strings.LastIndex(base, "/") {
		base = base[:idx]
	}

	resolved := m.versions.Resolve(ctx, source, base)
	result.Image = base + ":" + resolved.ResolvedTag
	result.EOLFallback = resolved.EOLFallback
	return result
}

// appendLatest tags an untagged, undigested reference with "latest".
func appendLatest(ref string) string {
	if ref == "" {
		return ref
	}
	if idx := strings.LastIndexAny(ref, ":@"); idx > strings.LastIndex(ref, "/") {
		return ref
	}
	return ref + ":" + image.LatestTag
}
