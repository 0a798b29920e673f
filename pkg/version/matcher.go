package version

import (
	"context"
	"strings"

	"github.com/guardrail-dev/imgmatch/pkg/image"
	log "github.com/guardrail-dev/imgmatch/pkg/log"
)

// Result is the outcome of resolving a tag for a matched catalog image.
type Result struct {
	// ResolvedTag is the tag to use on the catalog image.
	ResolvedTag string
	// SourceVersion is the parsed source version, when there was one.
	SourceVersion *SemVer
	// MatchedVersion is the catalog version actually selected.
	MatchedVersion *SemVer
	// EOLFallback is true when the resolution is not a minor-exact match:
	// either no version shared the source's major.minor, or the matching
	// one was stale and another version was substituted.
	EOLFallback bool
}

// Matcher resolves concrete tags for matched catalog images.
type Matcher struct {
	tags          *TagLister
	freshness     *FreshnessChecker
	thresholdDays int
}

// NewMatcher creates a version matcher. thresholdDays <= 0 selects the
// default freshness threshold.
func NewMatcher(tags *TagLister, freshness *FreshnessChecker, thresholdDays int) *Matcher {
	if thresholdDays <= 0 {
		thresholdDays = DefaultFreshnessThresholdDays
	}
	return &Matcher{tags: tags, freshness: freshness, thresholdDays: thresholdDays}
}

// Resolve picks the tag on targetBase that best corresponds to the source
// reference's version:
//
//  1. A missing tag, "latest", or a digest pin passes through as "latest".
//  2. A tag that does not parse as a version resolves to "latest".
//  3. With no semver tags available on the target, resolve to "latest".
//  4. Otherwise select the highest patch sharing the source's major.minor,
//     falling back to the highest version overall (EOL fallback).
//  5. A stale selection (build label older than the threshold) is replaced
//     by the newest fresh version, or by the newest version overall when
//     every build is stale, again marked as a fallback.
func (m *Matcher) Resolve(ctx context.Context, source, targetBase string) Result {
	sourceRef := image.Parse(source)

	if sourceRef.Digest != "" {
		log.Debug("source pinned by digest, resolving to latest", "source", source)
		return Result{ResolvedTag: image.LatestTag}
	}
	tag := sourceRef.Tag
	if tag == "" || strings.EqualFold(tag, image.LatestTag) {
		return Result{ResolvedTag: image.LatestTag}
	}

	sourceVersion, ok := ParseSemVer(tag)
	if !ok {
		log.Debug("source tag is not a version, resolving to latest", "source", source, "tag", tag)
		return Result{ResolvedTag: image.LatestTag}
	}

	available := m.tags.SemVerTags(ctx, targetBase)
	if len(available) == 0 {
		log.Debug("no semver tags on target, resolving to latest", "target", targetBase)
		return Result{ResolvedTag: image.LatestTag, SourceVersion: &sourceVersion}
	}

	matched, eolFallback := selectVersion(sourceVersion, available)

	// Substitute a fresh version when the selected build has gone stale.
	if !m.freshness.IsFresh(ctx, targetBase+":"+matched.String(), m.thresholdDays) {
		if fresh := m.findFresh(ctx, targetBase, available); fresh != matched {
			log.Info("stale version replaced by fresh one",
				"target", targetBase, "stale", matched.String(), "fresh", fresh.String())
			matched = fresh
			eolFallback = true
		}
	}

	log.Debug("resolved version",
		"source", source, "target", targetBase,
		"tag", matched.String(), "eol_fallback", eolFallback)

	return Result{
		ResolvedTag:    matched.String(),
		SourceVersion:  &sourceVersion,
		MatchedVersion: &matched,
		EOLFallback:    eolFallback,
	}
}

// selectVersion picks the highest patch for the source's major.minor, or the
// highest version overall when that line is gone.
func selectVersion(source SemVer, available []SemVer) (SemVer, bool) {
	for _, v := range available {
		if v.MatchesMinor(source) {
			return v, false
		}
	}
	return available[0], true
}

// findFresh scans the available versions, newest first, for one whose build
// passes the freshness threshold. When every version is stale the newest one
// is returned anyway.
func (m *Matcher) findFresh(ctx context.Context, targetBase string, available []SemVer) SemVer {
	for _, v := range available {
		if m.freshness.IsFresh(ctx, targetBase+":"+v.String(), m.thresholdDays) {
			return v
		}
	}
	return available[0]
}
