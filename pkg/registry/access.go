package registry

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/guardrail-dev/imgmatch/pkg/image"
	log "github.com/guardrail-dev/imgmatch/pkg/log"
	"github.com/guardrail-dev/imgmatch/pkg/oracle"
)

// IronBankRegistry requires a credential probe instead of a static answer.
const IronBankRegistry = "registry1.dso.mil"

// defaultPublicRegistries are always considered pullable.
var defaultPublicRegistries = map[string]struct{}{
	"docker.io":                  {},
	"registry-1.docker.io":       {},
	"index.docker.io":            {},
	"gcr.io":                     {},
	"ghcr.io":                    {},
	"quay.io":                    {},
	"registry.k8s.io":            {},
	"k8s.gcr.io":                 {},
	"mcr.microsoft.com":          {},
	"public.ecr.aws":             {},
	"docker.elastic.co":          {},
	"registry.access.redhat.com": {},
}

// AccessChecker decides whether an image's source registry can be pulled
// from directly. Accessible registries skip upstream discovery; unknown
// ones fall back to it.
type AccessChecker struct {
	known  map[string]struct{}
	oracle oracle.Oracle

	mu       sync.Mutex
	byHost   map[string]bool
	ironBank *bool
}

// NewAccessChecker builds a checker over the default public registries plus
// any additional registries and an optional config file. The oracle is used
// only for the Iron Bank credential probe.
func NewAccessChecker(fs afero.Fs, o oracle.Oracle, additional []string, configPath string) *AccessChecker {
	known := make(map[string]struct{}, len(defaultPublicRegistries)+len(additional))
	for reg := range defaultPublicRegistries {
		known[reg] = struct{}{}
	}
	for _, reg := range additional {
		reg = strings.ToLower(strings.TrimSpace(reg))
		if reg != "" {
			known[reg] = struct{}{}
			log.Debug("added known registry", "registry", reg)
		}
	}

	c := &AccessChecker{
		known:  known,
		oracle: o,
		byHost: make(map[string]bool),
	}
	if configPath != "" {
		c.loadConfig(fs, configPath)
	}
	return c
}

// loadConfig reads additional registries from a config file. A .yaml/.yml
// file carries a "registries" list; anything else is treated as text, one
// registry per line with # comments.
func (c *AccessChecker) loadConfig(fs afero.Fs, path string) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		log.Warn("failed to read registry config", "path", path, "error", err)
		return
	}

	var count int
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var cfg struct {
			Registries []string `yaml:"registries"`
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Warn("failed to parse registry config", "path", path, "error", err)
			return
		}
		for _, reg := range cfg.Registries {
			if reg = strings.ToLower(strings.TrimSpace(reg)); reg != "" {
				c.known[reg] = struct{}{}
				count++
			}
		}
	default:
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			c.known[strings.ToLower(line)] = struct{}{}
			count++
		}
	}

	if count > 0 {
		log.Info("loaded known registries", "path", path, "count", count)
	}
}

// IsAccessible reports whether the image's registry is known and pullable.
// Answers are cached per registry host for the life of the checker.
func (c *AccessChecker) IsAccessible(ctx context.Context, ref string) bool {
	registry := strings.ToLower(image.ExtractRegistry(ref))

	c.mu.Lock()
	if accessible, ok := c.byHost[registry]; ok {
		c.mu.Unlock()
		return accessible
	}
	c.mu.Unlock()

	accessible := c.check(ctx, registry, ref)

	c.mu.Lock()
	c.byHost[registry] = accessible
	c.mu.Unlock()
	return accessible
}

func (c *AccessChecker) check(ctx context.Context, registry, ref string) bool {
	if _, ok := c.known[registry]; ok {
		log.Debug("known public registry", "registry", registry)
		return true
	}
	if registry == IronBankRegistry {
		return c.checkIronBank(ctx, ref)
	}
	log.Debug("unknown registry, upstream discovery will run", "registry", registry)
	return false
}

// checkIronBank probes Iron Bank once per process through the ambient
// credential chain.
func (c *AccessChecker) checkIronBank(ctx context.Context, ref string) bool {
	c.mu.Lock()
	if c.ironBank != nil {
		accessible := *c.ironBank
		c.mu.Unlock()
		return accessible
	}
	c.mu.Unlock()

	log.Debug("checking Iron Bank registry access")
	accessible := c.oracle.Exists(ctx, ref)
	if accessible {
		log.Info("Iron Bank registry accessible, using its images directly")
	} else {
		log.Warn("Iron Bank registry not accessible, trying public upstreams",
			"registry", IronBankRegistry)
	}

	c.mu.Lock()
	c.ironBank = &accessible
	c.mu.Unlock()
	return accessible
}
