package mappings

import (
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"

	"github.com/guardrail-dev/imgmatch/pkg/image"
	log "github.com/guardrail-dev/imgmatch/pkg/log"
)

// Catalog is a pattern-based mapping from source image names to catalog
// image names, sourced from a maintained mapping artifact. Keys are
// glob-like patterns ("python*", "*/nginx"); values are the catalog image
// they map to.
type Catalog struct {
	exact    map[string]string
	patterns []catalogPattern
}

type catalogPattern struct {
	glob   string
	target string
}

// LoadCatalog reads a catalog mapping table from path. As with manual
// overrides, any load failure yields an empty table and matching proceeds
// with this tier effectively disabled.
func LoadCatalog(fs afero.Fs, path string) *Catalog {
	table := &Catalog{exact: map[string]string{}}
	if path == "" {
		return table
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		log.Warn("catalog mappings unavailable, tier disabled", "path", path, "error", err)
		return table
	}

	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		log.Warn("catalog mappings malformed, tier disabled", "path", path, "error", err)
		return table
	}

	for pattern, target := range raw {
		pattern = strings.TrimSpace(pattern)
		target = strings.TrimSpace(target)
		if pattern == "" || target == "" {
			continue
		}
		if strings.ContainsAny(pattern, "*?[") {
			table.patterns = append(table.patterns, catalogPattern{glob: pattern, target: target})
		} else {
			table.exact[pattern] = target
		}
	}

	// Pattern iteration order must be deterministic across loads.
	sort.Slice(table.patterns, func(i, j int) bool {
		return table.patterns[i].glob < table.patterns[j].glob
	})

	log.Debug("loaded catalog mappings", "path", path,
		"exact", len(table.exact), "patterns", len(table.patterns))
	return table
}

// MatchImage looks up the catalog image for a source reference. Exact
// entries win over patterns; patterns are tried in sorted order against the
// bare name first and the org/name form second.
func (c *Catalog) MatchImage(ref string) (string, bool) {
	parsed := image.Parse(ref)
	candidates := []string{
		parsed.BaseName(image.BaseNameOptions{}),
		parsed.NameWithOrg(),
	}

	for _, candidate := range candidates {
		if target, ok := c.exact[candidate]; ok {
			return target, true
		}
	}

	for _, p := range c.patterns {
		for _, candidate := range candidates {
			if matched, err := doublestar.Match(p.glob, candidate); err == nil && matched {
				return p.target, true
			}
		}
	}
	return "", false
}

// Len returns the number of loaded entries.
func (c *Catalog) Len() int {
	return len(c.exact) + len(c.patterns)
}
