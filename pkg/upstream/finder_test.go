package upstream

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guardrail-dev/imgmatch/pkg/mappings"
)

// setOracle answers existence checks from a fixed set of references.
type setOracle struct {
	known map[string]bool
}

func (s *setOracle) Exists(_ context.Context, ref string) bool { return s.known[ref] }

func (s *setOracle) ListTags(_ context.Context, _ string) []string { return nil }

func (s *setOracle) BuildLabel(_ context.Context, _, _ string) string { return "" }

func newFinder(t *testing.T, known map[string]bool, manualYAML string) *Finder {
	t.Helper()
	fs := afero.NewMemMapFs()
	path := ""
	if manualYAML != "" {
		path = "/upstream_mappings.yaml"
		require.NoError(t, afero.WriteFile(fs, path, []byte(manualYAML), 0o644))
	}
	return NewFinder(mappings.LoadManual(fs, path), &setOracle{known: known}, 0)
}

func TestFindManualMapping(t *testing.T) {
	f := newFinder(t, nil, "internal.corp/team/app:v2: docker.io/library/nginx\n")

	got := f.Find(context.Background(), "internal.corp/team/app:v2")

	assert.Equal(t, MethodManual, got.Method)
	assert.Equal(t, "docker.io/library/nginx", got.Image)
	assert.Equal(t, 1.0, got.Confidence)
}

func TestFindRegistryStrip(t *testing.T) {
	tests := []struct {
		name       string
		source     string
		known      map[string]bool
		wantImage  string
		wantMethod string
		wantConf   float64
	}{
		{
			name:       "library image behind private registry",
			source:     "mycompany.io/python:3.12",
			known:      map[string]bool{"docker.io/library/python:3.12": true},
			wantImage:  "python:3.12",
			wantMethod: MethodRegistryStrip,
			wantConf:   0.90,
		},
		{
			name:       "multi-part path preserved",
			source:     "docker.artifactory.com/jenkins/jenkins:2.426",
			known:      map[string]bool{"docker.io/jenkins/jenkins:2.426": true},
			wantImage:  "jenkins/jenkins:2.426",
			wantMethod: MethodRegistryStrip,
			wantConf:   0.90,
		},
		{
			name:       "fallback to final name only",
			source:     "gcr.io/eks-project/coredns:1.11",
			known:      map[string]bool{"docker.io/library/coredns:1.11": true},
			wantImage:  "coredns:1.11",
			wantMethod: MethodRegistryStrip,
			wantConf:   0.85,
		},
		{
			name:       "unverified best guess",
			source:     "artifactory.example.com/team/custom-app:1.0",
			known:      nil,
			wantImage:  "team/custom-app:1.0",
			wantMethod: MethodRegistryStripUnverified,
			wantConf:   0.70,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFinder(t, tt.known, "")
			got := f.Find(context.Background(), tt.source)
			assert.Equal(t, tt.wantMethod, got.Method)
			assert.Equal(t, tt.wantImage, got.Image)
			assert.InDelta(t, tt.wantConf, got.Confidence, 1e-9)
		})
	}
}

func TestFindCommonRegistry(t *testing.T) {
	f := newFinder(t, map[string]bool{
		"quay.io/prometheus/node-exporter": true,
	}, "")

	got := f.Find(context.Background(), "prometheus/node-exporter")

	assert.Equal(t, MethodCommonRegistry, got.Method)
	assert.Equal(t, "quay.io/prometheus/node-exporter", got.Image)
	assert.InDelta(t, 0.80, got.Confidence, 1e-9)
}

// Base extraction produces 0.70 confidence against a 0.85 strategy floor,
// so it can never fire on its own even when the extracted base exists.
func TestBaseExtractionGatedByThreshold(t *testing.T) {
	f := newFinder(t, map[string]bool{
		"docker.io/library/python:latest": true,
	}, "")

	got := f.Find(context.Background(), "internal-python-app:v1")

	assert.Equal(t, MethodNone, got.Method)
	assert.False(t, got.Found())
	assert.Zero(t, got.Confidence)
}

func TestExtractBaseGuards(t *testing.T) {
	known := map[string]bool{
		"docker.io/library/node:latest":  true,
		"docker.io/library/redis:latest": true,
	}
	f := newFinder(t, known, "")
	ctx := context.Background()

	tests := []struct {
		name   string
		source string
		want   string
		ok     bool
	}{
		{"exact ambiguous base", "node", "node:latest", true},
		{"ambiguous base with version", "node-14", "node:latest", true},
		{"ambiguous base mid-name", "csi-node-driver-registrar", "", false},
		{"tool suffix", "node-exporter", "", false},
		{"embedded base", "company-redis-prod", "redis:latest", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := f.extractBase(ctx, tt.source)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got.Image)
				assert.Equal(t, MethodBaseExtract, got.Method)
			}
		})
	}
}

func TestIsToolFor(t *testing.T) {
	assert.True(t, isToolFor("node-exporter", "node"))
	assert.True(t, isToolFor("redis-exporter-extra", "redis"))
	assert.False(t, isToolFor("node-14", "node"))
	assert.False(t, isToolFor("nodejs", "node"))
}

func TestFindNothing(t *testing.T) {
	f := newFinder(t, nil, "")

	got := f.Find(context.Background(), "completely-custom-thing:1.0")

	assert.Equal(t, MethodNone, got.Method)
	assert.False(t, got.Found())
}

func TestNewFinderFloor(t *testing.T) {
	manual := mappings.LoadManual(nil, "")

	// Zero is an explicit floor, not a request for the default.
	assert.Equal(t, 0.0, NewFinder(manual, &setOracle{}, 0).minConfidence)
	assert.Equal(t, DefaultMinConfidence, NewFinder(manual, &setOracle{}, -1).minConfidence)
	assert.Equal(t, 0.9, NewFinder(manual, &setOracle{}, 0.9).minConfidence)
}
