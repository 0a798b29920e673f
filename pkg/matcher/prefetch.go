package matcher

import (
	"context"
	"sync"

	log "github.com/guardrail-dev/imgmatch/pkg/log"
)

// DefaultPrefetchWorkers is the prefetch pool size. Warming is bounded by
// registry rate limits, so the pool stays small.
const DefaultPrefetchWorkers = 2

// Prefetch warms the shared caches for a batch of source images ahead of
// the sequential matching run: existence answers for heuristic candidates,
// tag listings, and freshness data for matched targets. The fuzzy tier is
// never consulted here; warming must stay cheap.
//
// workers <= 0 selects DefaultPrefetchWorkers.
func (m *Matcher) Prefetch(ctx context.Context, sources []string, workers int) {
	if len(sources) == 0 {
		return
	}
	if workers <= 0 {
		workers = DefaultPrefetchWorkers
	}
	if workers > len(sources) {
		workers = len(sources)
	}

	log.Debug("prefetching", "images", len(sources), "workers", workers)

	queue := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for source := range queue {
				m.warm(ctx, source)
			}
		}()
	}

	for _, source := range sources {
		select {
		case queue <- source:
		case <-ctx.Done():
			close(queue)
			wg.Wait()
			return
		}
	}
	close(queue)
	wg.Wait()
}

// warm runs the deterministic tiers for one source and, on a match, pulls
// the target's tag list into the cache.
func (m *Matcher) warm(ctx context.Context, source string) {
	toMatch := source
	if m.upstream != nil && !m.accessible(ctx, source) {
		if found := m.upstream.Find(ctx, source); found.Found() {
			toMatch = found.Image
		}
	}

	for _, t := range m.tiers {
		if _, fuzzy := t.(*fuzzyTier); fuzzy {
			continue
		}
		result, ok := t.match(ctx, toMatch)
		if !ok {
			continue
		}
		if m.versions != nil && m.opts.ResolveVersions {
			m.resolveVersion(ctx, source, result)
		}
		return
	}
}
