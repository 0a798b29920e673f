// Package version resolves concrete tags for matched catalog images. Given
// the source image's version, the catalog's available tags, and freshness
// data, it picks the best tag using semantic-version matching with
// end-of-life and freshness fallback.
package version

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// SemVer is a major/minor/patch version with a total order. It is parsed
// from loosely formatted tag strings: an optional leading "v", missing
// components defaulting to zero, and a trailing qualifier (e.g. "-slim")
// which disqualifies nothing but is discarded before parsing.
type SemVer struct {
	Major int
	Minor int
	Patch int
}

// ParseSemVer parses a tag string into a SemVer. It reports ok=false for
// strings that are not versions at all ("latest", "edge", "1.2.3.4").
func ParseSemVer(tag string) (SemVer, bool) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return SemVer{}, false
	}

	// Cut a trailing qualifier: the first "-" or "_" not followed by a
	// digit starts a variant suffix ("3.12-slim", "1.27.0-alpine"), which
	// carries no version information.
	tag = cutQualifier(tag)
	if tag == "" {
		return SemVer{}, false
	}

	// The parser accepts a lowercase v prefix only; tags use either case.
	tag = strings.TrimPrefix(tag, "V")

	parsed, err := semver.NewVersion(tag)
	if err != nil {
		return SemVer{}, false
	}
	// A surviving prerelease or metadata part means the tag was not a
	// plain M.m.p version ("1.2.3-4", "1.2.3+meta").
	if parsed.Prerelease() != "" || parsed.Metadata() != "" {
		return SemVer{}, false
	}

	return SemVer{
		Major: int(parsed.Major()),
		Minor: int(parsed.Minor()),
		Patch: int(parsed.Patch()),
	}, true
}

// cutQualifier removes everything from the first "-" or "_" that is not
// followed by a digit.
func cutQualifier(tag string) string {
	for i := 0; i < len(tag); i++ {
		if tag[i] != '-' && tag[i] != '_' {
			continue
		}
		if i+1 >= len(tag) || tag[i+1] < '0' || tag[i+1] > '9' {
			return tag[:i]
		}
	}
	return tag
}

// Compare returns -1, 0, or 1 ordering v against other.
func (v SemVer) Compare(other SemVer) int {
	switch {
	case v.Major != other.Major:
		return sign(v.Major - other.Major)
	case v.Minor != other.Minor:
		return sign(v.Minor - other.Minor)
	case v.Patch != other.Patch:
		return sign(v.Patch - other.Patch)
	}
	return 0
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}

// MatchesMinor reports whether both versions share major and minor.
func (v SemVer) MatchesMinor(other SemVer) bool {
	return v.Major == other.Major && v.Minor == other.Minor
}

// String renders the version as "major.minor.patch".
func (v SemVer) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// sortDescending orders versions newest first.
func sortDescending(versions []SemVer) {
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].Compare(versions[j]) > 0
	})
}
