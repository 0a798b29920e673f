package matcher

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guardrail-dev/imgmatch/pkg/cache"
	"github.com/guardrail-dev/imgmatch/pkg/mappings"
	"github.com/guardrail-dev/imgmatch/pkg/oracle"
	"github.com/guardrail-dev/imgmatch/pkg/upstream"
	"github.com/guardrail-dev/imgmatch/pkg/version"
)

// fakeOracle serves canned existence, tag, and label data.
type fakeOracle struct {
	exists map[string]bool
	tags   map[string][]string
	labels map[string]string
}

func (f *fakeOracle) Exists(_ context.Context, ref string) bool { return f.exists[ref] }

func (f *fakeOracle) ListTags(_ context.Context, base string) []string { return f.tags[base] }

func (f *fakeOracle) BuildLabel(_ context.Context, ref, label string) string {
	return f.labels[ref+"|"+label]
}

// accessFunc adapts a function to oracle.AccessChecker.
type accessFunc func(ref string) bool

func (f accessFunc) IsAccessible(_ context.Context, ref string) bool { return f(ref) }

// fakeFuzzy returns one fixed suggestion for every query.
type fakeFuzzy struct {
	suggestion oracle.Suggestion
	ok         bool
	threshold  float64
}

func (f *fakeFuzzy) Suggest(_ context.Context, _ string) (oracle.Suggestion, bool) {
	return f.suggestion, f.ok
}

func (f *fakeFuzzy) ConfidenceThreshold() float64 { return f.threshold }

func loadManual(t *testing.T, yaml string) *mappings.Manual {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/image_mappings.yaml", []byte(yaml), 0o644))
	return mappings.LoadManual(fs, "/image_mappings.yaml")
}

func loadCatalog(t *testing.T, yaml string) *mappings.Catalog {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/catalog.yaml", []byte(yaml), 0o644))
	return mappings.LoadCatalog(fs, "/catalog.yaml")
}

func TestMatchTierPriority(t *testing.T) {
	// Both the manual table and the catalog table cover nginx; the manual
	// override must win.
	m := New(Config{
		Manual:  loadManual(t, "nginx:1.27: cgr.dev/chainguard-private/nginx-manual\n"),
		Catalog: loadCatalog(t, "nginx*: nginx\n"),
		Oracle:  &fakeOracle{},
	})

	got := m.Match(context.Background(), "nginx:1.27")

	assert.Equal(t, MethodManual, got.Method)
	assert.Equal(t, "cgr.dev/chainguard-private/nginx-manual:latest", got.Image)
	assert.Equal(t, ConfidenceManual, got.Confidence)
}

func TestMatchCatalogTier(t *testing.T) {
	m := New(Config{
		Catalog: loadCatalog(t, "python*: python\n"),
		Oracle:  &fakeOracle{},
	})

	got := m.Match(context.Background(), "python:3.12-slim")

	assert.Equal(t, MethodCatalog, got.Method)
	assert.Equal(t, "cgr.dev/chainguard-private/python:latest", got.Image)
	assert.Equal(t, ConfidenceCatalog, got.Confidence)
}

func TestMatchHeuristicTier(t *testing.T) {
	m := New(Config{
		Oracle: &fakeOracle{exists: map[string]bool{
			"cgr.dev/chainguard-private/redis": true,
		}},
	})

	got := m.Match(context.Background(), "redis:7.4")

	assert.Equal(t, MethodHeuristic, got.Method)
	assert.Equal(t, "cgr.dev/chainguard-private/redis:latest", got.Image)
	assert.Equal(t, ConfidenceHeuristic, got.Confidence)
}

func TestMatchNone(t *testing.T) {
	m := New(Config{Oracle: &fakeOracle{}})

	got := m.Match(context.Background(), "completely-unknown-thing:1.0")

	assert.False(t, got.Found())
	assert.Equal(t, MethodNone, got.Method)
	assert.Zero(t, got.Confidence)
}

func TestMatchFuzzyGating(t *testing.T) {
	tests := []struct {
		name       string
		suggestion oracle.Suggestion
		ok         bool
		exists     map[string]bool
		wantMethod string
	}{
		{
			name: "accepted above threshold and verified",
			suggestion: oracle.Suggestion{
				Image:      "cgr.dev/chainguard/etcd",
				Confidence: 0.9,
				Rationale:  "etcd distribution under a different name",
			},
			ok:         true,
			exists:     map[string]bool{"cgr.dev/chainguard-private/etcd": true},
			wantMethod: MethodFuzzy,
		},
		{
			name:       "rejected below threshold",
			suggestion: oracle.Suggestion{Image: "cgr.dev/chainguard-private/etcd", Confidence: 0.5},
			ok:         true,
			exists:     map[string]bool{"cgr.dev/chainguard-private/etcd": true},
			wantMethod: MethodNone,
		},
		{
			name:       "rejected when unverifiable",
			suggestion: oracle.Suggestion{Image: "cgr.dev/chainguard-private/etcd", Confidence: 0.9},
			ok:         true,
			wantMethod: MethodNone,
		},
		{
			name:       "no suggestion",
			wantMethod: MethodNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(Config{
				Oracle: &fakeOracle{exists: tt.exists},
				Fuzzy:  &fakeFuzzy{suggestion: tt.suggestion, ok: tt.ok, threshold: 0.7},
			})

			got := m.Match(context.Background(), "coreos-keyvalue:3.5")

			assert.Equal(t, tt.wantMethod, got.Method)
			if tt.wantMethod == MethodFuzzy {
				assert.Equal(t, "cgr.dev/chainguard-private/etcd:latest", got.Image)
				assert.Equal(t, 0.9, got.Confidence)
				assert.NotEmpty(t, got.Rationale)
			}
		})
	}
}

func TestMatchFIPSPreference(t *testing.T) {
	m := New(Config{
		Manual: loadManual(t, "calico/typha:v3.27: cgr.dev/chainguard-private/calico-typha\n"),
		Oracle: &fakeOracle{exists: map[string]bool{
			"cgr.dev/chainguard-private/calico-typha-fips": true,
		}},
		Options: Options{PreferFIPS: true},
	})

	got := m.Match(context.Background(), "calico/typha:v3.27")
	assert.Equal(t, "cgr.dev/chainguard-private/calico-typha-fips:latest", got.Image)

	// A second pass over an already-FIPS image must not double-suffix.
	assert.Equal(t, "cgr.dev/chainguard-private/calico-typha-fips",
		m.fipsVariant(context.Background(), "cgr.dev/chainguard-private/calico-typha-fips"))
}

func TestMatchFIPSVariantMissing(t *testing.T) {
	m := New(Config{
		Manual:  loadManual(t, "nginx: cgr.dev/chainguard-private/nginx\n"),
		Oracle:  &fakeOracle{},
		Options: Options{PreferFIPS: true},
	})

	got := m.Match(context.Background(), "nginx")
	assert.Equal(t, "cgr.dev/chainguard-private/nginx:latest", got.Image)
}

func TestMatchUpstreamSubstitution(t *testing.T) {
	o := &fakeOracle{exists: map[string]bool{
		"docker.io/library/nginx:1.27":     true,
		"cgr.dev/chainguard-private/nginx": true,
	}}
	m := New(Config{
		Oracle:   o,
		Access:   accessFunc(func(string) bool { return false }),
		Upstream: upstream.NewFinder(mappings.LoadManual(nil, ""), o, 0),
	})

	got := m.Match(context.Background(), "mycompany.io/nginx:1.27")

	assert.Equal(t, MethodHeuristic, got.Method)
	assert.Equal(t, "cgr.dev/chainguard-private/nginx:latest", got.Image)
	require.NotNil(t, got.Upstream)
	assert.Equal(t, upstream.MethodRegistryStrip, got.Upstream.Method)
	assert.Equal(t, "nginx:1.27", got.Upstream.Image)
}

func TestMatchNoneKeepsUpstreamProvenance(t *testing.T) {
	m := New(Config{
		Oracle:   &fakeOracle{},
		Access:   accessFunc(func(string) bool { return false }),
		Upstream: upstream.NewFinder(mappings.LoadManual(nil, ""), &fakeOracle{}, 0),
	})

	got := m.Match(context.Background(), "artifactory.example.com/team/custom-app:1.0")

	assert.Equal(t, MethodNone, got.Method)
	require.NotNil(t, got.Upstream)
	assert.Equal(t, upstream.MethodRegistryStripUnverified, got.Upstream.Method)
	assert.Equal(t, "team/custom-app:1.0", got.Upstream.Image)
}

func TestMatchAccessibleRegistrySkipsUpstream(t *testing.T) {
	m := New(Config{
		Manual:   loadManual(t, "quay.io/prometheus/node-exporter:v1.8.0: cgr.dev/chainguard-private/prometheus-node-exporter\n"),
		Oracle:   &fakeOracle{},
		Access:   accessFunc(func(string) bool { return true }),
		Upstream: upstream.NewFinder(mappings.LoadManual(nil, ""), &fakeOracle{}, 0),
	})

	got := m.Match(context.Background(), "quay.io/prometheus/node-exporter:v1.8.0")

	assert.Equal(t, MethodManual, got.Method)
	assert.Nil(t, got.Upstream)
}

func newVersionMatcher(o *fakeOracle) *version.Matcher {
	lister := version.NewTagLister(o, cache.NewTTL[[]string](version.TagCacheTTL))
	checker := version.NewFreshnessChecker(o, cache.NewTTL[*time.Time](version.FreshnessCacheTTL))
	return version.NewMatcher(lister, checker, 0)
}

func TestMatchWithVersionResolution(t *testing.T) {
	o := &fakeOracle{
		tags: map[string][]string{
			"cgr.dev/chainguard-private/nginx": {"1.26.2", "1.27.4", "1.27.5"},
		},
	}
	m := New(Config{
		Manual:   loadManual(t, "nginx:1.27.0: cgr.dev/chainguard-private/nginx\n"),
		Oracle:   o,
		Versions: newVersionMatcher(o),
		Options:  Options{ResolveVersions: true},
	})

	got := m.Match(context.Background(), "nginx:1.27.0")

	assert.Equal(t, "cgr.dev/chainguard-private/nginx:1.27.5", got.Image)
	assert.Equal(t, MethodManual, got.Method)
	assert.False(t, got.EOLFallback)
}

func TestPrefetchWarmsTagCache(t *testing.T) {
	o := &fakeOracle{
		tags: map[string][]string{
			"cgr.dev/chainguard-private/nginx": {"1.27.5"},
			"cgr.dev/chainguard-private/redis": {"7.4.1"},
		},
	}
	tagCache := cache.NewTTL[[]string](version.TagCacheTTL)
	lister := version.NewTagLister(o, tagCache)
	checker := version.NewFreshnessChecker(o, cache.NewTTL[*time.Time](version.FreshnessCacheTTL))

	m := New(Config{
		Manual: loadManual(t, `
nginx:1.27.0: cgr.dev/chainguard-private/nginx
redis:7.4.0: cgr.dev/chainguard-private/redis
`),
		Oracle:   o,
		Versions: version.NewMatcher(lister, checker, 0),
		Options:  Options{ResolveVersions: true},
	})

	m.Prefetch(context.Background(), []string{"nginx:1.27.0", "redis:7.4.0", "unknown:1.0"}, 2)

	assert.Equal(t, 2, tagCache.Len())
}
