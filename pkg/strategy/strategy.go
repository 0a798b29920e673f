// Package strategy implements candidate generation for the heuristic
// matching tier. Each strategy is a pure function from a source image to an
// ordered list of plausible catalog image names; no strategy performs any
// verification. Strategies run in a fixed priority order and their candidate
// lists are concatenated, so earlier strategies' candidates are tried first.
package strategy

import (
	"github.com/guardrail-dev/imgmatch/pkg/image"
)

// CandidateStrategy generates candidate catalog image references for a
// source image.
type CandidateStrategy interface {
	// Generate returns candidate catalog references, most likely first.
	// baseName is the source's base name with version and FIPS suffixes
	// stripped; fullImage is the raw source reference; hasFIPS reports
	// whether the source carries a FIPS indicator.
	Generate(baseName, fullImage string, hasFIPS bool) []string
}

// Default returns the strategies in their fixed evaluation order. The order
// is part of the contract: base-OS detection must run before the generic
// strategies, and the alias table is the last resort.
func Default() []CandidateStrategy {
	return []CandidateStrategy{
		&BaseOSStrategy{},
		&VendorBundleStrategy{},
		&PathFlatteningStrategy{},
		&DirectMatchStrategy{},
		&KnownAliasStrategy{},
	}
}

// GenerateCandidates runs every strategy against the source reference and
// concatenates the results.
func GenerateCandidates(strategies []CandidateStrategy, source string) []string {
	ref := image.Parse(source)
	baseName := ref.BaseName(image.BaseNameOptions{StripFIPS: true, StripVersion: true})
	hasFIPS := image.HasFIPSIndicator(source)

	var candidates []string
	for _, s := range strategies {
		candidates = append(candidates, s.Generate(baseName, source, hasFIPS)...)
	}
	return candidates
}

// catalogRef prefixes a bare candidate name with the private catalog
// repository.
func catalogRef(name string) string {
	return image.CatalogRepository + "/" + name
}
