// Package upstream discovers public equivalents of private or internal
// image references. It is the fallback used when a source registry cannot
// be pulled from directly: the discovered upstream replaces the original
// reference before catalog matching.
package upstream

import (
	"context"
	"regexp"
	"strings"

	"github.com/guardrail-dev/imgmatch/pkg/image"
	log "github.com/guardrail-dev/imgmatch/pkg/log"
	"github.com/guardrail-dev/imgmatch/pkg/mappings"
	"github.com/guardrail-dev/imgmatch/pkg/oracle"
)

// Discovery methods, in descending order of trust.
const (
	MethodManual = "manual"
	// MethodRegistryStrip is a verified registry-prefix removal.
	MethodRegistryStrip = "registry_strip"
	// MethodRegistryStripUnverified is the best-guess strip returned when
	// no stripped variant could be verified to exist.
	MethodRegistryStripUnverified = "registry_strip_unverified"
	MethodCommonRegistry          = "common_registry"
	MethodBaseExtract             = "base_extract"
	MethodNone                    = "none"
)

// DefaultMinConfidence is the global floor applied to every strategy.
const DefaultMinConfidence = 0.7

// strategyThresholds is the per-method confidence floor. Error-prone
// strategies require more confidence than they produce: base extraction
// yields 0.70 against a 0.85 floor, so it only ever fires when something
// boosts its confidence.
var strategyThresholds = map[string]float64{
	MethodManual:         0.0,
	MethodRegistryStrip:  0.7,
	MethodCommonRegistry: 0.7,
	MethodBaseExtract:    0.85,
}

// commonRegistries are the public registries probed in order; the Docker
// Hub library namespace first, since official images are the most common
// upstreams.
var commonRegistries = []string{
	"docker.io/library",
	"docker.io",
	"quay.io",
	"ghcr.io",
	"gcr.io",
}

// privateRegistryPatterns recognize references that carry a private or
// cloud-vendor registry prefix worth stripping.
var privateRegistryPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^[a-z0-9.-]+\.(io|com|net|org|dev)/`),
	regexp.MustCompile(`^gcr\.io/[a-z0-9-]+/`),
	regexp.MustCompile(`^[a-z0-9-]+\.gcr\.io/`),
	regexp.MustCompile(`^[0-9]+\.dkr\.ecr\.`),
	regexp.MustCompile(`^.*\.azurecr\.io/`),
}

// toolSuffixes mark derivative tools named <base>-<suffix>. "node-exporter"
// is a tool for nodes, not Node.js, and must not extract to "node".
var toolSuffixes = map[string]struct{}{
	"exporter":   {},
	"operator":   {},
	"controller": {},
	"agent":      {},
	"proxy":      {},
	"gateway":    {},
	"client":     {},
	"driver":     {},
	"registrar":  {},
}

// ambiguousBases only match when they are the whole name or its leading
// segment. "csi-node-driver-registrar" contains "node" but is not Node.js.
var ambiguousBases = map[string]struct{}{
	"node": {},
}

// commonBases are the well-known images base extraction looks for inside
// internal names.
var commonBases = []string{
	"python", "node", "nginx", "postgres", "postgresql", "mysql", "mariadb",
	"redis", "mongo", "mongodb", "golang", "go", "java", "openjdk",
	"ruby", "php", "perl", "alpine", "ubuntu", "debian", "centos",
	"httpd", "apache", "tomcat", "rabbitmq", "kafka", "elasticsearch",
}

// Result is the outcome of an upstream discovery attempt.
type Result struct {
	// Image is the discovered upstream reference, empty when none found.
	Image string
	// Confidence is the strategy's score in [0,1].
	Confidence float64
	// Method names the strategy that produced the result.
	Method string
}

// Found reports whether discovery produced an upstream.
func (r Result) Found() bool {
	return r.Image != ""
}

// Finder discovers public upstream equivalents through a sequence of
// strategies, each gated by the global and per-strategy thresholds.
type Finder struct {
	manual        *mappings.Manual
	oracle        oracle.Oracle
	minConfidence float64
}

// NewFinder creates a Finder. A negative minConfidence selects the default
// global floor; zero is honored as an explicit floor, leaving results gated
// by the per-strategy thresholds alone.
func NewFinder(manual *mappings.Manual, o oracle.Oracle, minConfidence float64) *Finder {
	if minConfidence < 0 {
		minConfidence = DefaultMinConfidence
	}
	return &Finder{manual: manual, oracle: o, minConfidence: minConfidence}
}

// Find tries the strategies in descending order of trust and returns the
// first result that clears its thresholds. No strategy clearing the bar
// yields a Result with MethodNone and zero confidence.
func (f *Finder) Find(ctx context.Context, source string) Result {
	if upstream, ok := f.manual.Lookup(source); ok {
		log.Debug("manual upstream mapping", "source", source, "upstream", upstream)
		return Result{Image: upstream, Confidence: 1.0, Method: MethodManual}
	}

	if r, ok := f.stripRegistry(ctx, source); ok && f.passesThresholds(r) {
		return r
	}
	if r, ok := f.commonRegistry(ctx, source); ok && f.passesThresholds(r) {
		return r
	}
	if r, ok := f.extractBase(ctx, source); ok && f.passesThresholds(r) {
		return r
	}

	log.Debug("no upstream found", "source", source)
	return Result{Method: MethodNone}
}

func (f *Finder) passesThresholds(r Result) bool {
	if r.Confidence < f.minConfidence {
		return false
	}
	if threshold, ok := strategyThresholds[r.Method]; ok && r.Confidence < threshold {
		log.Debug("upstream result below strategy threshold",
			"method", r.Method, "confidence", r.Confidence, "threshold", threshold)
		return false
	}
	return true
}

// stripRegistry removes a private registry prefix and verifies the
// remainder against Docker Hub, trying the full path, the library
// namespace, and the bare final name in turn. When nothing verifies, the
// full stripped path is still returned at reduced confidence so a later
// pull attempt can try it.
func (f *Finder) stripRegistry(ctx context.Context, source string) (Result, bool) {
	if !isPrivateReference(source) {
		return Result{}, false
	}

	parts := strings.Split(source, "/")
	if len(parts) < 2 {
		return Result{}, false
	}
	stripped := strings.Join(parts[1:], "/")
	nameOnly := parts[len(parts)-1]

	if f.exists(ctx, image.DefaultRegistry+"/"+stripped) {
		log.Debug("registry strip verified", "source", source, "upstream", stripped)
		return Result{Image: stripped, Confidence: 0.90, Method: MethodRegistryStrip}, true
	}
	if repo, _, _ := strings.Cut(stripped, ":"); !strings.Contains(repo, "/") {
		if f.exists(ctx, image.DefaultRegistry+"/"+image.DefaultOrganization+"/"+stripped) {
			log.Debug("registry strip verified", "source", source, "upstream", stripped)
			return Result{Image: stripped, Confidence: 0.90, Method: MethodRegistryStrip}, true
		}
	}
	if stripped != nameOnly {
		if f.exists(ctx, image.DefaultRegistry+"/"+nameOnly) ||
			f.exists(ctx, image.DefaultRegistry+"/"+image.DefaultOrganization+"/"+nameOnly) {
			log.Debug("registry strip verified", "source", source, "upstream", nameOnly)
			return Result{Image: nameOnly, Confidence: 0.85, Method: MethodRegistryStrip}, true
		}
	}

	log.Debug("registry strip unverified", "source", source, "upstream", stripped)
	return Result{Image: stripped, Confidence: 0.70, Method: MethodRegistryStripUnverified}, true
}

// commonRegistry probes the well-known public registries for the
// reference's path, full org/name first, then the bare name.
func (f *Finder) commonRegistry(ctx context.Context, source string) (Result, bool) {
	baseName := image.ExtractBaseName(source)
	fullPath := extractFullPath(source)

	for _, registry := range commonRegistries {
		if fullPath != "" && fullPath != baseName {
			candidate := registry + "/" + fullPath
			if f.exists(ctx, candidate) {
				log.Debug("found in common registry", "source", source, "upstream", candidate)
				return Result{Image: candidate, Confidence: 0.80, Method: MethodCommonRegistry}, true
			}
		}
		candidate := registry + "/" + baseName
		if f.exists(ctx, candidate) {
			log.Debug("found in common registry", "source", source, "upstream", candidate)
			return Result{Image: candidate, Confidence: 0.80, Method: MethodCommonRegistry}, true
		}
	}
	return Result{}, false
}

// extractBase looks for a well-known base image embedded in an internal
// name ("company-nginx-prod" contains "nginx"), guarded against tool
// suffixes and ambiguous bases.
func (f *Finder) extractBase(ctx context.Context, source string) (Result, bool) {
	baseName := strings.ToLower(image.ExtractBaseName(source))

	for _, base := range commonBases {
		if isToolFor(baseName, base) {
			continue
		}
		if _, ambiguous := ambiguousBases[base]; ambiguous {
			if baseName != base && !strings.HasPrefix(baseName, base+"-") {
				continue
			}
		}
		if !strings.Contains(baseName, base) {
			continue
		}

		upstream := base + ":" + image.LatestTag
		if f.exists(ctx, image.DefaultRegistry+"/"+image.DefaultOrganization+"/"+upstream) ||
			f.exists(ctx, image.DefaultRegistry+"/"+upstream) {
			log.Debug("base extraction successful", "source", source, "upstream", upstream)
			return Result{Image: upstream, Confidence: 0.70, Method: MethodBaseExtract}, true
		}
	}
	return Result{}, false
}

// isToolFor reports whether name is <base>-<suffix> where the suffix marks
// a derivative tool rather than the base image itself.
func isToolFor(name, base string) bool {
	if !strings.HasPrefix(name, base+"-") {
		return false
	}
	suffix := name[len(base)+1:]
	for tool := range toolSuffixes {
		if suffix == tool || strings.HasPrefix(suffix, tool+"-") {
			return true
		}
	}
	return false
}

func isPrivateReference(source string) bool {
	for _, pattern := range privateRegistryPatterns {
		if pattern.MatchString(source) {
			return true
		}
	}
	return false
}

// extractFullPath returns the org/name path without registry or tag,
// dropping the implicit library org.
func extractFullPath(source string) string {
	ref := image.Parse(source)
	if ref.Organization != "" && ref.Organization != image.DefaultOrganization {
		return strings.ToLower(ref.Organization + "/" + ref.Name)
	}
	return strings.ToLower(ref.Name)
}

func (f *Finder) exists(ctx context.Context, candidate string) bool {
	return f.oracle.Exists(ctx, candidate)
}
