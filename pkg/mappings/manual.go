// Package mappings provides the file-backed lookup tables consumed by the
// matching tiers: exact manual overrides and the glob-pattern catalog
// mapping. Tables are loaded once at construction and are read-only
// afterwards, so they are safe to share across concurrent resolutions.
package mappings

import (
	"strings"

	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"

	log "github.com/guardrail-dev/imgmatch/pkg/log"
)

// Manual is an exact source-reference to target-reference override table.
//
// The backing file is a flat YAML map whose keys are exact source reference
// strings and whose values are full target reference strings. A missing or
// malformed file yields an empty table: overrides are an optional input and
// must never abort matching.
type Manual struct {
	entries map[string]string
}

// LoadManual reads a manual override table from path. An empty path, a
// missing file, or a file that fails to parse all produce an empty table.
func LoadManual(fs afero.Fs, path string) *Manual {
	table := &Manual{entries: map[string]string{}}
	if path == "" {
		return table
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		log.Warn("manual mappings unavailable, proceeding without overrides", "path", path, "error", err)
		return table
	}

	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		log.Warn("manual mappings malformed, proceeding without overrides", "path", path, "error", err)
		return table
	}

	for source, target := range raw {
		source = strings.TrimSpace(source)
		target = strings.TrimSpace(target)
		if source == "" || target == "" {
			continue
		}
		table.entries[source] = target
	}

	log.Debug("loaded manual mappings", "path", path, "count", len(table.entries))
	return table
}

// Lookup returns the override target for an exact source reference.
func (m *Manual) Lookup(source string) (string, bool) {
	target, ok := m.entries[source]
	return target, ok
}

// Len returns the number of loaded overrides.
func (m *Manual) Len() int {
	return len(m.entries)
}
