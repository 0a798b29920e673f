package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/guardrail-dev/imgmatch/pkg/cache"
	"github.com/guardrail-dev/imgmatch/pkg/exitcodes"
	log "github.com/guardrail-dev/imgmatch/pkg/log"
	"github.com/guardrail-dev/imgmatch/pkg/mappings"
	"github.com/guardrail-dev/imgmatch/pkg/matcher"
	"github.com/guardrail-dev/imgmatch/pkg/registry"
	"github.com/guardrail-dev/imgmatch/pkg/upstream"
	"github.com/guardrail-dev/imgmatch/pkg/version"
)

// matchFlags holds the flag values for the match command.
type matchFlags struct {
	inputFile        string
	outputFile       string
	intakeFile       string
	minConfidence    float64
	preferFIPS       bool
	alwaysLatest     bool
	freshnessDays    int
	manualMappings   string
	catalogMappings  string
	upstreamMappings string
	registriesFile   string
	knownRegistries  []string
	prefetchWorkers  int
	timeout          time.Duration
}

func newMatchCmd() *cobra.Command {
	flags := &matchFlags{}

	cmd := &cobra.Command{
		Use:   "match",
		Short: "Resolve a list of image references against the catalog",
		Long: `Reads image references from an input file (one per line, or the first
column of a CSV; # starts a comment), resolves each against the Chainguard
catalog, and writes a detailed YAML match log plus a CSV intake file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMatch(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVarP(&flags.inputFile, "input", "i", "", "input file of image references (required)")
	cmd.Flags().StringVarP(&flags.outputFile, "output", "o", "matched-log.yaml", "detailed YAML match log")
	cmd.Flags().StringVar(&flags.intakeFile, "intake", "", "CSV intake file (default: matched-intake.csv next to the output)")
	cmd.Flags().Float64Var(&flags.minConfidence, "min-confidence", upstream.DefaultMinConfidence, "minimum confidence for accepting a match")
	cmd.Flags().BoolVar(&flags.preferFIPS, "prefer-fips", false, "prefer -fips variants when they exist")
	cmd.Flags().BoolVar(&flags.alwaysLatest, "always-latest", false, "skip version resolution and use the latest tag")
	cmd.Flags().IntVar(&flags.freshnessDays, "freshness-days", version.DefaultFreshnessThresholdDays, "age in days past which a catalog build counts as stale")
	cmd.Flags().StringVar(&flags.manualMappings, "mappings", "", "manual override mapping file (YAML)")
	cmd.Flags().StringVar(&flags.catalogMappings, "catalog-mappings", "", "catalog mapping file (YAML, glob keys)")
	cmd.Flags().StringVar(&flags.upstreamMappings, "upstream-mappings", "", "manual upstream mapping file (YAML)")
	cmd.Flags().StringVar(&flags.registriesFile, "registries-file", "", "known-registries config file (.txt or .yaml)")
	cmd.Flags().StringSliceVar(&flags.knownRegistries, "registry", nil, "additional accessible registry (repeatable)")
	cmd.Flags().IntVar(&flags.prefetchWorkers, "prefetch-workers", matcher.DefaultPrefetchWorkers, "cache-warming worker count")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", registry.DefaultTimeout, "per-registry-call timeout")

	if err := cmd.MarkFlagRequired("input"); err != nil {
		log.Error("failed to mark input flag required", "error", err)
	}

	return cmd
}

func runMatch(ctx context.Context, flags *matchFlags) error {
	if flags.minConfidence < 0 || flags.minConfidence > 1 {
		return &exitcodes.ExitCodeError{
			Code: exitcodes.ExitInvalidConfidence,
			Err:  fmt.Errorf("min-confidence %v outside [0,1]", flags.minConfidence),
		}
	}

	sources, err := readInputFile(AppFs, flags.inputFile)
	if err != nil {
		return &exitcodes.ExitCodeError{
			Code: exitcodes.ExitInputFileNotFound,
			Err:  errors.Wrap(err, "read input file"),
		}
	}
	if len(sources) == 0 {
		return &exitcodes.ExitCodeError{
			Code: exitcodes.ExitNoImagesParsed,
			Err:  fmt.Errorf("no image references found in %s", flags.inputFile),
		}
	}
	log.Info("read input file", "path", flags.inputFile, "images", len(sources))

	m := buildMatcher(flags)

	log.Info("warming caches", "workers", flags.prefetchWorkers)
	m.Prefetch(ctx, sources, flags.prefetchWorkers)

	var (
		matched       []matchEntry
		unmatched     []string
		lowConfidence int
	)
	for i, source := range sources {
		result := m.Match(ctx, source)

		switch {
		case !result.Found():
			log.Warn("no match", "progress", progress(i, len(sources)), "source", source)
			unmatched = append(unmatched, source)
		case result.Confidence >= flags.minConfidence:
			log.Info("matched",
				"progress", progress(i, len(sources)),
				"source", source, "target", result.Image,
				"confidence", result.Confidence, "method", result.Method)
			matched = append(matched, matchEntry{Source: source, Result: result})
		default:
			log.Warn("low confidence, discarded",
				"progress", progress(i, len(sources)),
				"source", source, "target", result.Image, "confidence", result.Confidence)
			unmatched = append(unmatched, source)
			lowConfidence++
		}
	}

	if err := writeMatchLog(AppFs, flags.outputFile, matched); err != nil {
		return &exitcodes.ExitCodeError{
			Code: exitcodes.ExitIOError,
			Err:  errors.Wrap(err, "write match log"),
		}
	}
	intakeFile := flags.intakeFile
	if intakeFile == "" {
		intakeFile = filepath.Join(filepath.Dir(flags.outputFile), "matched-intake.csv")
	}
	if err := writeIntakeCSV(AppFs, intakeFile, matched); err != nil {
		return &exitcodes.ExitCodeError{
			Code: exitcodes.ExitIOError,
			Err:  errors.Wrap(err, "write intake file"),
		}
	}

	logSummary(matched, unmatched)

	if len(matched) == 0 {
		code := exitcodes.ExitAllMatchesNone
		if lowConfidence > 0 {
			code = exitcodes.ExitThresholdFailed
		}
		return &exitcodes.ExitCodeError{
			Code: code,
			Err:  fmt.Errorf("no image matched above confidence %v", flags.minConfidence),
		}
	}
	return nil
}

// buildMatcher assembles the resolution pipeline from the flag values.
func buildMatcher(flags *matchFlags) *matcher.Matcher {
	client := registry.NewClient(registry.WithTimeout(flags.timeout))
	access := registry.NewAccessChecker(AppFs, client, flags.knownRegistries, flags.registriesFile)
	finder := upstream.NewFinder(mappings.LoadManual(AppFs, flags.upstreamMappings), client, flags.minConfidence)

	var versions *version.Matcher
	if !flags.alwaysLatest {
		lister := version.NewTagLister(client, cache.NewTTL[[]string](version.TagCacheTTL))
		freshness := version.NewFreshnessChecker(client, cache.NewTTL[*time.Time](version.FreshnessCacheTTL))
		versions = version.NewMatcher(lister, freshness, flags.freshnessDays)
		log.Info("version matching enabled")
	} else {
		log.Info("version matching disabled, using latest tags")
	}
	if flags.preferFIPS {
		log.Info("FIPS preference enabled")
	}

	return matcher.New(matcher.Config{
		Manual:   mappings.LoadManual(AppFs, flags.manualMappings),
		Catalog:  mappings.LoadCatalog(AppFs, flags.catalogMappings),
		Oracle:   client,
		Access:   access,
		Upstream: finder,
		Versions: versions,
		Options: matcher.Options{
			PreferFIPS:             flags.preferFIPS,
			ResolveVersions:        !flags.alwaysLatest,
			FreshnessThresholdDays: flags.freshnessDays,
		},
	})
}

func progress(i, total int) string {
	return strconv.Itoa(i+1) + "/" + strconv.Itoa(total)
}

// inputHeaders are first-line values treated as a column header, not data.
var inputHeaders = map[string]struct{}{
	"alternative_image": {},
	"image":             {},
	"name":              {},
}

// readInputFile reads image references from a text file (one per line) or a
// CSV (first column). Empty lines and # comments are skipped, as is a
// recognized header line.
func readInputFile(fs afero.Fs, path string) ([]string, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}

	var images []string
	for i, line := range strings.Split(string(data), "\n") {
		// First column of CSV rows, the whole line otherwise.
		if idx := strings.Index(line, ","); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i == 0 {
			if _, header := inputHeaders[strings.ToLower(line)]; header {
				continue
			}
		}
		images = append(images, line)
	}
	return images, nil
}

// matchEntry pairs a source reference with its result; the writers project
// it into their own output shapes.
type matchEntry struct {
	Source string
	Result matcher.Result
}

type logUpstream struct {
	Image      string  `json:"image"`
	Confidence float64 `json:"confidence"`
	Method     string  `json:"method"`
}

type logEntry struct {
	Source       string       `json:"source"`
	Target       string       `json:"target"`
	Confidence   float64      `json:"confidence"`
	Method       string       `json:"method"`
	Upstream     *logUpstream `json:"upstream,omitempty"`
	Rationale    string       `json:"rationale,omitempty"`
	Alternatives []string     `json:"alternatives,omitempty"`
	EOLFallback  bool         `json:"eolFallback,omitempty"`
}

type matchLog struct {
	Metadata struct {
		GeneratedAt  string `json:"generatedAt"`
		TotalMatches int    `json:"totalMatches"`
	} `json:"metadata"`
	Matches []logEntry `json:"matches"`
}

// writeMatchLog writes the detailed YAML match log.
func writeMatchLog(fs afero.Fs, path string, matched []matchEntry) error {
	out := matchLog{Matches: make([]logEntry, 0, len(matched))}
	out.Metadata.GeneratedAt = time.Now().UTC().Format(time.RFC3339)
	out.Metadata.TotalMatches = len(matched)

	for _, entry := range matched {
		le := logEntry{
			Source:       entry.Source,
			Target:       entry.Result.Image,
			Confidence:   entry.Result.Confidence,
			Method:       entry.Result.Method,
			Rationale:    entry.Result.Rationale,
			Alternatives: entry.Result.Alternatives,
			EOLFallback:  entry.Result.EOLFallback,
		}
		if up := entry.Result.Upstream; up != nil && up.Found() {
			le.Upstream = &logUpstream{
				Image:      up.Image,
				Confidence: up.Confidence,
				Method:     up.Method,
			}
		}
		out.Matches = append(out.Matches, le)
	}

	data, err := yaml.Marshal(out)
	if err != nil {
		return err
	}
	return afero.WriteFile(fs, path, data, 0o644)
}

// writeIntakeCSV writes the flat CSV consumed by downstream tooling.
func writeIntakeCSV(fs afero.Fs, path string, matched []matchEntry) error {
	f, err := fs.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			log.Warn("failed to close intake file", "path", path, "error", cerr)
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"alternative_image", "chainguard_image", "confidence", "method", "upstream_image"}); err != nil {
		return err
	}
	for _, entry := range matched {
		upstreamImage := ""
		if up := entry.Result.Upstream; up != nil {
			upstreamImage = up.Image
		}
		record := []string{
			entry.Source,
			entry.Result.Image,
			strconv.FormatFloat(entry.Result.Confidence, 'f', 2, 64),
			entry.Result.Method,
			upstreamImage,
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func logSummary(matched []matchEntry, unmatched []string) {
	total := len(matched) + len(unmatched)
	rate := 0.0
	if total > 0 {
		rate = float64(len(matched)) / float64(total) * 100
	}
	log.Info("matching complete",
		"matched", len(matched), "unmatched", len(unmatched),
		"rate", fmt.Sprintf("%.1f%%", rate))

	methodCounts := map[string]int{}
	for _, entry := range matched {
		methodCounts[entry.Result.Method]++
	}
	for method, count := range methodCounts {
		log.Info("method breakdown", "method", method, "count", count)
	}
}
