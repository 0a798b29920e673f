package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBaseOSStrategy(t *testing.T) {
	s := &BaseOSStrategy{}

	tests := []struct {
		name     string
		baseName string
		hasFIPS  bool
		expected []string
	}{
		{
			name:     "ubi with version",
			baseName: "ubi9",
			expected: []string{"cgr.dev/chainguard-private/chainguard-base"},
		},
		{
			name:     "alpine",
			baseName: "alpine",
			expected: []string{"cgr.dev/chainguard-private/chainguard-base"},
		},
		{
			name:     "amazon linux shorthand",
			baseName: "al2023",
			expected: []string{"cgr.dev/chainguard-private/chainguard-base"},
		},
		{
			name:     "distroless family",
			baseName: "distroless-static",
			expected: []string{"cgr.dev/chainguard-private/chainguard-base"},
		},
		{
			name:     "fips variant first",
			baseName: "ubi-minimal",
			hasFIPS:  true,
			expected: []string{
				"cgr.dev/chainguard-private/chainguard-base-fips",
				"cgr.dev/chainguard-private/chainguard-base",
			},
		},
		{
			name:     "not a base OS",
			baseName: "nginx",
			expected: nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, s.Generate(tc.baseName, tc.baseName, tc.hasFIPS))
		})
	}
}

func TestNormalizeOSName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"ubi8", "ubi"},
		{"ubi9", "ubi"},
		{"alpine3", "alpine"},
		{"debian-12-slim", "debian-slim"},
		{"al2023", "amazonlinux"},
		{"fedora38", "fedora"},
		{"wolfi-base", "wolfi"},
		{"tumbleweed-latest", "tumbleweed"},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, normalizeOSName(tc.input))
		})
	}
}

func TestVendorBundleStrategy(t *testing.T) {
	s := &VendorBundleStrategy{}

	t.Run("non-vendor image skipped", func(t *testing.T) {
		assert.Nil(t, s.Generate("nginx", "docker.io/library/nginx", false))
	})

	t.Run("vendor image without fips", func(t *testing.T) {
		got := s.Generate("postgres", "docker.io/bitnami/postgresql:16", false)
		assert.Equal(t, []string{
			"cgr.dev/chainguard-private/postgres-iamguarded",
			"cgr.dev/chainguard-private/postgres",
		}, got)
	})

	t.Run("vendor image with fips prefers fips bundle variants", func(t *testing.T) {
		got := s.Generate("postgres", "docker.io/bitnami/postgresql-fips:16", true)
		assert.Equal(t, []string{
			"cgr.dev/chainguard-private/postgres-iamguarded-fips",
			"cgr.dev/chainguard-private/postgres-fips",
			"cgr.dev/chainguard-private/postgres-bitnami-fips",
			"cgr.dev/chainguard-private/postgres-iamguarded",
			"cgr.dev/chainguard-private/postgres",
		}, got)
	})
}

func TestPathFlatteningStrategy(t *testing.T) {
	s := &PathFlatteningStrategy{}

	t.Run("no path", func(t *testing.T) {
		assert.Nil(t, s.Generate("nginx", "nginx:latest", false))
	})

	t.Run("flattens last two segments", func(t *testing.T) {
		got := s.Generate("node", "calico/node:v3.27.0", false)
		assert.Equal(t, []string{
			"cgr.dev/chainguard-private/calico-node",
		}, got)
	})

	t.Run("skips organizational namespaces", func(t *testing.T) {
		got := s.Generate("nginx", "library/nginx:1.27", false)
		assert.Empty(t, got)
	})

	t.Run("hyphenates the org segment", func(t *testing.T) {
		got := s.Generate("background-controller", "ghcr.io/kyverno/background-controller:v1.11.0", false)
		assert.Equal(t, []string{
			"cgr.dev/chainguard-private/kyverno-background-controller",
		}, got)
	})

	t.Run("last component differs after version strip", func(t *testing.T) {
		got := s.Generate("redis", "mycompany.io/cache/redis7:latest", true)
		assert.Equal(t, []string{
			"cgr.dev/chainguard-private/redis7-fips",
			"cgr.dev/chainguard-private/redis7",
			"cgr.dev/chainguard-private/cache-redis7-fips",
			"cgr.dev/chainguard-private/cache-redis7",
		}, got)
	})
}

func TestDirectMatchStrategy(t *testing.T) {
	s := &DirectMatchStrategy{}

	t.Run("plain", func(t *testing.T) {
		got := s.Generate("redis", "redis:7.2", false)
		assert.Equal(t, []string{"cgr.dev/chainguard-private/redis"}, got)
	})

	t.Run("fips first", func(t *testing.T) {
		got := s.Generate("nginx", "mycompany.io/nginx-fips:1.27", true)
		assert.Equal(t, []string{
			"cgr.dev/chainguard-private/nginx-fips",
			"cgr.dev/chainguard-private/nginx",
		}, got)
	})

	t.Run("strips one build variant suffix", func(t *testing.T) {
		got := s.Generate("kafka-native", "kafka-native:3.7", false)
		assert.Equal(t, []string{
			"cgr.dev/chainguard-private/kafka-native",
			"cgr.dev/chainguard-private/kafka",
		}, got)
	})

	t.Run("vendor images left to the bundle strategy", func(t *testing.T) {
		assert.Nil(t, s.Generate("postgres", "docker.io/bitnami/postgresql:16", false))
	})
}

func TestKnownAliasStrategy(t *testing.T) {
	s := &KnownAliasStrategy{}

	got := s.Generate("mongo", "mongo:7", false)
	assert.Equal(t, []string{"cgr.dev/chainguard-private/mongodb"}, got)

	got = s.Generate("postgresql", "postgresql-fips:16", true)
	assert.Equal(t, []string{
		"cgr.dev/chainguard-private/postgres-fips",
		"cgr.dev/chainguard-private/postgres",
	}, got)

	assert.Nil(t, s.Generate("nginx", "nginx", false))
}

func TestGenerateCandidatesOrdering(t *testing.T) {
	// A bare base-OS image must produce the generic base candidate before
	// anything the direct strategy emits.
	candidates := GenerateCandidates(Default(), "ubi9:latest")

	assert.Equal(t, "cgr.dev/chainguard-private/chainguard-base", candidates[0])
	assert.Contains(t, candidates, "cgr.dev/chainguard-private/ubi")
}
