package version

import (
	"context"
	"time"

	"github.com/guardrail-dev/imgmatch/pkg/cache"
	log "github.com/guardrail-dev/imgmatch/pkg/log"
	"github.com/guardrail-dev/imgmatch/pkg/oracle"
)

// Cache lifetimes. Tag lists move as releases are published; freshness data
// changes at most daily.
const (
	// TagCacheTTL bounds how long a tag listing is reused.
	TagCacheTTL = time.Hour
	// FreshnessCacheTTL bounds how long a build timestamp is reused.
	FreshnessCacheTTL = 24 * time.Hour
	// DefaultFreshnessThresholdDays is the age past which a build is
	// considered stale.
	DefaultFreshnessThresholdDays = 7
)

// TagLister lists a target image's available tags through the oracle,
// caching results per base reference.
type TagLister struct {
	oracle oracle.Oracle
	cache  *cache.TTL[[]string]
}

// NewTagLister creates a TagLister over the given oracle and cache. The
// cache is shared, not owned: callers construct it once per process so
// concurrent resolutions and prefetch see the same entries.
func NewTagLister(o oracle.Oracle, c *cache.TTL[[]string]) *TagLister {
	return &TagLister{oracle: o, cache: c}
}

// ListTags returns the available tags for a base reference.
func (l *TagLister) ListTags(ctx context.Context, base string) []string {
	if tags, ok := l.cache.Get(base); ok {
		log.Debug("tag cache hit", "base", base)
		return tags
	}

	tags := l.oracle.ListTags(ctx, base)
	l.cache.Put(base, tags)
	log.Debug("listed tags", "base", base, "count", len(tags))
	return tags
}

// SemVerTags returns the semver-parseable tags for a base reference, sorted
// descending (newest first).
func (l *TagLister) SemVerTags(ctx context.Context, base string) []SemVer {
	var versions []SemVer
	for _, tag := range l.ListTags(ctx, base) {
		if v, ok := ParseSemVer(tag); ok {
			versions = append(versions, v)
		}
	}
	sortDescending(versions)
	return versions
}

// FreshnessChecker reads build timestamps from image labels, caching the
// result per full reference. An absent label is cached too: the negative
// answer costs the same lookup as a positive one.
type FreshnessChecker struct {
	oracle oracle.Oracle
	cache  *cache.TTL[*time.Time]
	now    func() time.Time
}

// NewFreshnessChecker creates a FreshnessChecker over the given oracle and
// shared cache.
func NewFreshnessChecker(o oracle.Oracle, c *cache.TTL[*time.Time]) *FreshnessChecker {
	return &FreshnessChecker{oracle: o, cache: c, now: time.Now}
}

// SetClock replaces the time source. Intended for tests.
func (f *FreshnessChecker) SetClock(now func() time.Time) {
	f.now = now
}

// CreatedAt returns the image's build timestamp, or nil when the label is
// absent or unreadable.
func (f *FreshnessChecker) CreatedAt(ctx context.Context, ref string) *time.Time {
	if created, ok := f.cache.Get(ref); ok {
		log.Debug("freshness cache hit", "ref", ref)
		return created
	}

	label := f.oracle.BuildLabel(ctx, ref, oracle.OCICreatedLabel)
	if label == "" {
		f.cache.Put(ref, nil)
		return nil
	}

	created, err := time.Parse(time.RFC3339, label)
	if err != nil {
		log.Debug("unparseable build timestamp", "ref", ref, "label", label, "error", err)
		f.cache.Put(ref, nil)
		return nil
	}

	created = created.UTC()
	f.cache.Put(ref, &created)
	return &created
}

// IsFresh reports whether the image was built within thresholdDays. An
// unknown build date counts as fresh: absence of the label is not evidence
// of staleness.
func (f *FreshnessChecker) IsFresh(ctx context.Context, ref string, thresholdDays int) bool {
	created := f.CreatedAt(ctx, ref)
	if created == nil {
		return true
	}

	age := f.now().UTC().Sub(*created)
	fresh := age <= time.Duration(thresholdDays)*24*time.Hour
	if !fresh {
		log.Debug("image is stale", "ref", ref, "age_days", int(age.Hours()/24))
	}
	return fresh
}
