package strategy

import (
	"strings"

	"github.com/guardrail-dev/imgmatch/pkg/image"
)

const vendorBundleMarker = "bitnami"

// VendorBundleStrategy handles images repackaged by a third-party bundling
// vendor. Bundled images map to the catalog's "-iamguarded" variants before
// falling back to a direct name match; the ordering differs with a FIPS
// hint.
type VendorBundleStrategy struct{}

// Generate implements CandidateStrategy.
func (s *VendorBundleStrategy) Generate(baseName, fullImage string, hasFIPS bool) []string {
	if !strings.Contains(strings.ToLower(fullImage), vendorBundleMarker) {
		return nil
	}

	var candidates []string
	if hasFIPS {
		candidates = append(candidates,
			catalogRef(baseName+"-iamguarded-fips"),
			catalogRef(baseName+"-fips"),
			catalogRef(baseName+"-bitnami-fips"),
			catalogRef(baseName+"-iamguarded"),
		)
	} else {
		candidates = append(candidates, catalogRef(baseName+"-iamguarded"))
	}
	return append(candidates, catalogRef(baseName))
}

// flattenSkipPrefixes are organizational namespace segments that carry no
// semantic meaning and are skipped when building hyphenated names.
var flattenSkipPrefixes = map[string]struct{}{
	"library":    {},
	"opensource": {},
	"ironbank":   {},
	"_":          {},
}

// PathFlatteningStrategy flattens multi-segment paths: calico/node becomes
// calico-node, kyverno/background-controller becomes
// kyverno-background-controller.
type PathFlatteningStrategy struct{}

// Generate implements CandidateStrategy.
func (s *PathFlatteningStrategy) Generate(baseName, fullImage string, hasFIPS bool) []string {
	if !strings.Contains(fullImage, "/") {
		return nil
	}

	parts := strings.Split(fullImage, "/")

	last := strings.ToLower(parts[len(parts)-1])
	last = strings.SplitN(last, "@", 2)[0]
	last = strings.SplitN(last, ":", 2)[0]
	// Strip a FIPS marker so candidates are not double-suffixed.
	last = image.StripFIPSSuffix(last)

	var candidates []string
	if last != baseName {
		if hasFIPS {
			candidates = append(candidates, catalogRef(last+"-fips"))
		}
		candidates = append(candidates, catalogRef(last))
	}

	if len(parts) >= 2 {
		secondLast := strings.ToLower(parts[len(parts)-2])
		if _, skip := flattenSkipPrefixes[secondLast]; !skip {
			hyphenated := secondLast + "-" + last
			if hasFIPS {
				candidates = append(candidates, catalogRef(hyphenated+"-fips"))
			}
			candidates = append(candidates, catalogRef(hyphenated))
		}
	}
	return candidates
}

// variantSuffixes denote packaging variants of the same logical image, e.g.
// kafka-native is Kafka with GraalVM native compilation.
var variantSuffixes = []string{"-native", "-slim", "-alpine"}

// DirectMatchStrategy tries the bare base name, its FIPS-suffixed form when
// hinted, and the name with one build-variant suffix stripped. Bundled
// vendor images are left to VendorBundleStrategy.
type DirectMatchStrategy struct{}

// Generate implements CandidateStrategy.
func (s *DirectMatchStrategy) Generate(baseName, fullImage string, hasFIPS bool) []string {
	if strings.Contains(strings.ToLower(fullImage), vendorBundleMarker) {
		return nil
	}

	var candidates []string
	if hasFIPS {
		candidates = append(candidates, catalogRef(baseName+"-fips"))
	}
	candidates = append(candidates, catalogRef(baseName))

	for _, suffix := range variantSuffixes {
		if strings.HasSuffix(baseName, suffix) {
			stripped := strings.TrimSuffix(baseName, suffix)
			if hasFIPS {
				candidates = append(candidates, catalogRef(stripped+"-fips"))
			}
			candidates = append(candidates, catalogRef(stripped))
			break // only one suffix is stripped
		}
	}
	return candidates
}

// knownAliases maps common alternative names to their catalog spelling.
var knownAliases = map[string]string{
	"mongo":       "mongodb",
	"postgresql":  "postgres",
	"node-chrome": "node-chromium",
}

// KnownAliasStrategy resolves well-known name synonyms.
type KnownAliasStrategy struct{}

// Generate implements CandidateStrategy.
func (s *KnownAliasStrategy) Generate(baseName, _ string, hasFIPS bool) []string {
	alias, ok := knownAliases[baseName]
	if !ok {
		return nil
	}

	var candidates []string
	if hasFIPS {
		candidates = append(candidates, catalogRef(alias+"-fips"))
	}
	return append(candidates, catalogRef(alias))
}
