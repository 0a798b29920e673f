// Package registry implements the external registry capabilities behind the
// oracle interfaces: existence checks, tag listings, and build labels over
// the OCI distribution API, plus source-registry accessibility checks.
package registry

import (
	"context"
	"time"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"

	"github.com/guardrail-dev/imgmatch/pkg/cache"
	log "github.com/guardrail-dev/imgmatch/pkg/log"
)

const (
	// DefaultTimeout bounds each registry round trip.
	DefaultTimeout = 15 * time.Second
	// existenceCacheSize bounds the per-process existence cache. Matching a
	// large input file probes the same candidates repeatedly.
	existenceCacheSize = 4096
)

// Client answers oracle queries against real registries. Every failure
// degrades to the neutral value; the matching pipeline never sees transport
// errors.
type Client struct {
	timeout   time.Duration
	insecure  bool
	existence *cache.LRU[bool]
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithInsecure allows plain-HTTP registries. Intended for tests against
// local registries.
func WithInsecure() Option {
	return func(c *Client) { c.insecure = true }
}

// NewClient creates a registry client using the ambient Docker credential
// chain for authentication.
func NewClient(opts ...Option) *Client {
	c := &Client{
		timeout:   DefaultTimeout,
		existence: cache.NewLRU[bool](existenceCacheSize),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) nameOptions() []name.Option {
	if c.insecure {
		return []name.Option{name.Insecure}
	}
	return nil
}

func (c *Client) remoteOptions(ctx context.Context) []remote.Option {
	return []remote.Option{
		remote.WithContext(ctx),
		remote.WithAuthFromKeychain(authn.DefaultKeychain),
	}
}

// Exists reports whether ref resolves to a manifest. Results are cached for
// the life of the process; candidate generation probes the same references
// across many source images.
func (c *Client) Exists(ctx context.Context, ref string) bool {
	if exists, ok := c.existence.Get(ref); ok {
		return exists
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	parsed, err := name.ParseReference(ref, c.nameOptions()...)
	if err != nil {
		log.Debug("unparseable reference", "ref", ref, "error", err)
		c.existence.Put(ref, false)
		return false
	}

	_, err = remote.Head(parsed, c.remoteOptions(ctx)...)
	exists := err == nil
	if err != nil {
		log.Debug("existence check failed", "ref", ref, "error", err)
	}
	c.existence.Put(ref, exists)
	return exists
}

// ListTags returns the tags of a base repository reference, or nil when the
// listing fails.
func (c *Client) ListTags(ctx context.Context, base string) []string {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	repo, err := name.NewRepository(base, c.nameOptions()...)
	if err != nil {
		log.Debug("unparseable repository", "base", base, "error", err)
		return nil
	}

	tags, err := remote.List(repo, c.remoteOptions(ctx)...)
	if err != nil {
		log.Debug("tag listing failed", "base", base, "error", err)
		return nil
	}
	return tags
}

// BuildLabel returns the named label from the image's config, or "" when
// the image or label is unavailable.
func (c *Client) BuildLabel(ctx context.Context, ref, label string) string {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	parsed, err := name.ParseReference(ref, c.nameOptions()...)
	if err != nil {
		log.Debug("unparseable reference", "ref", ref, "error", err)
		return ""
	}

	img, err := remote.Image(parsed, c.remoteOptions(ctx)...)
	if err != nil {
		log.Debug("image fetch failed", "ref", ref, "error", err)
		return ""
	}

	cfg, err := img.ConfigFile()
	if err != nil {
		log.Debug("config fetch failed", "ref", ref, "error", err)
		return ""
	}
	return cfg.Config.Labels[label]
}
