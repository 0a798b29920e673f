// Package oracle defines the narrow interfaces through which the matching
// pipeline consumes external capabilities: registry existence checks, tag
// listings, build labels, registry accessibility, and fuzzy match
// suggestions.
//
// All implementations share one error contract: a failed lookup (timeout,
// tool unavailable, not found) is reported as the neutral value (false, an
// empty list, an empty string, or a missing suggestion), never as an error
// the pipeline must handle.
package oracle

import "context"

// Oracle answers existence and metadata questions about images in a
// registry.
type Oracle interface {
	// Exists reports whether the full reference resolves to an image.
	Exists(ctx context.Context, ref string) bool

	// ListTags returns the tags available for a base reference (no tag or
	// digest). A failed listing yields an empty slice.
	ListTags(ctx context.Context, base string) []string

	// BuildLabel returns the value of the given label on the image's
	// config, or "" when the label or the image is unavailable.
	BuildLabel(ctx context.Context, ref, label string) string
}

// OCICreatedLabel is the conventional build-timestamp label.
const OCICreatedLabel = "org.opencontainers.image.created"

// AccessChecker decides whether an image's source registry can be pulled
// from directly. Inaccessible registries trigger upstream discovery.
type AccessChecker interface {
	IsAccessible(ctx context.Context, ref string) bool
}

// Suggestion is a fuzzy matcher's proposed catalog image.
type Suggestion struct {
	// Image is the suggested catalog reference.
	Image string
	// Confidence is the matcher's self-reported score in [0,1].
	Confidence float64
	// Rationale is free-text reasoning behind the suggestion.
	Rationale string
}

// FuzzyMatcher produces catalog suggestions for references no deterministic
// tier could match. Implementations must validate their suggestions against
// the real catalog; the pipeline re-verifies independently regardless.
type FuzzyMatcher interface {
	// Suggest returns a suggestion for the reference, or ok=false when the
	// matcher has nothing to offer.
	Suggest(ctx context.Context, ref string) (Suggestion, bool)

	// ConfidenceThreshold is the minimum self-reported confidence at which
	// this matcher's suggestions may be accepted.
	ConfidenceThreshold() float64
}
