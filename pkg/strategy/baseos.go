package strategy

import (
	"regexp"
	"strings"

	"github.com/guardrail-dev/imgmatch/pkg/image"
)

// baseOSNames enumerates the minimal base images that all map to the
// catalog's generic base image. The set is data, not control flow, so it can
// grow without touching the strategy.
var baseOSNames = map[string]struct{}{
	// Red Hat Universal Base Images
	"ubi":         {},
	"ubi-minimal": {},
	"ubi-micro":   {},
	"ubi-init":    {},

	// Alpine
	"alpine": {},

	// Debian
	"debian":      {},
	"debian-slim": {},

	// Ubuntu
	"ubuntu":         {},
	"ubuntu-minimal": {},

	// CentOS and derivatives
	"centos":     {},
	"rockylinux": {},
	"almalinux":  {},

	// Amazon Linux
	"amazonlinux": {},
	"al2023":      {},

	// Google distroless
	"distroless":      {},
	"distroless-base": {},
	"static-debian":   {},
	"base-debian":     {},

	// Empty and minimal bases
	"scratch": {},
	"busybox": {},

	// Fedora
	"fedora":         {},
	"fedora-minimal": {},

	// openSUSE
	"opensuse":   {},
	"leap":       {},
	"tumbleweed": {},

	// Wolfi and the catalog's own base
	"wolfi":           {},
	"wolfi-base":      {},
	"chainguard-base": {},
	"base":            {},
}

// osVersionPatterns strip embedded distro versions during normalization
// (ubi9 -> ubi, debian-12 -> debian). Applied in order.
var osVersionPatterns = []struct {
	re          *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`^(ubi|alpine|centos|rockylinux|almalinux)\d+`), "$1"},
	{regexp.MustCompile(`^(debian|ubuntu)[-_]\d+(\.\d+)?`), "$1"},
	{regexp.MustCompile(`^fedora[-_]?\d+`), "fedora"},
}

// osAliases maps vendor shorthand to the canonical distro name.
var osAliases = map[string]string{
	"al":     "amazonlinux",
	"al2":    "amazonlinux",
	"al2022": "amazonlinux",
	"al2023": "amazonlinux",
}

// osPrefixNormalizations collapse name families to one canonical entry when
// the name starts with the prefix.
var osPrefixNormalizations = []struct {
	prefix string
	target string
}{
	{"distroless", "distroless"},
	{"leap", "leap"},
	{"tumbleweed", "tumbleweed"},
}

// BaseOSStrategy maps minimal OS base images (distro minimal/micro images,
// distroless, scratch, busybox, ...) to the catalog's generic base image.
type BaseOSStrategy struct{}

// Generate implements CandidateStrategy.
func (s *BaseOSStrategy) Generate(baseName, _ string, hasFIPS bool) []string {
	normalized := normalizeOSName(baseName)
	if normalized == "" {
		return nil
	}
	if _, ok := baseOSNames[normalized]; !ok {
		return nil
	}

	var candidates []string
	if hasFIPS {
		candidates = append(candidates, catalogRef("chainguard-base-fips"))
	}
	return append(candidates, catalogRef("chainguard-base"))
}

// normalizeOSName strips versions and modifiers from an OS image name:
// ubi8 -> ubi, debian-12-slim -> debian-slim, al2023 -> amazonlinux.
func normalizeOSName(baseName string) string {
	name := strings.ToLower(baseName)
	name = image.StripVersionSuffix(name)

	// Preserve meaningful variants (-micro, -minimal, -slim) but drop a
	// redundant -base modifier and any FIPS marker.
	if strings.HasSuffix(name, "-base") && name != "base" {
		name = strings.TrimSuffix(name, "-base")
	}
	name = image.StripFIPSSuffix(name)

	for _, p := range osVersionPatterns {
		name = p.re.ReplaceAllString(name, p.replacement)
	}

	if alias, ok := osAliases[name]; ok {
		name = alias
	}

	for _, n := range osPrefixNormalizations {
		if strings.HasPrefix(name, n.prefix) {
			name = n.target
			break
		}
	}
	return name
}
