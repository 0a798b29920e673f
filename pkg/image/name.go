package image

import (
	"regexp"
	"strings"
)

// Version and FIPS suffix patterns used when deriving base names.
var (
	// versionVPattern strips "v" versions: airflowv3 -> airflow.
	versionVPattern = regexp.MustCompile(`v\d+(\.\w+)?$`)
	// versionSuffixPattern strips trailing versions: redis7, solr-9, mongodb_8.x.
	versionSuffixPattern = regexp.MustCompile(`[-_]?\d+(\.\w+)?$`)
	// fipsSuffixPattern strips a -fips/_fips suffix.
	fipsSuffixPattern = regexp.MustCompile(`[-_]fips$`)
)

// fipsIndicators are the substrings whose presence anywhere in a reference
// marks the image as a FIPS build. Kept as data so the set can be extended
// and tested independently of the detection logic.
var fipsIndicators = []string{
	"-fips",
	"_fips",
	":fips",
	"fips-",
	"fips_",
	"/fips",
}

// StripVersionSuffix removes a trailing version from an image name:
// mongodb_8.x -> mongodb, redis7 -> redis, airflowv3 -> airflow.
func StripVersionSuffix(name string) string {
	name = versionVPattern.ReplaceAllString(name, "")
	return versionSuffixPattern.ReplaceAllString(name, "")
}

// StripFIPSSuffix removes a trailing -fips or _fips from an image name.
func StripFIPSSuffix(name string) string {
	return fipsSuffixPattern.ReplaceAllString(name, "")
}

// HasFIPSIndicator reports whether any FIPS marker appears anywhere in the
// given reference string, case-insensitively.
func HasFIPSIndicator(image string) bool {
	lower := strings.ToLower(image)
	for _, indicator := range fipsIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}

// BaseNameOptions controls which suffixes BaseName strips.
type BaseNameOptions struct {
	StripFIPS    bool
	StripVersion bool
}

// BaseName returns the final path component of the image name, lowercased,
// with optional FIPS and version suffix stripping.
func (r *Reference) BaseName(opts BaseNameOptions) string {
	name := strings.ToLower(r.Name)
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	if opts.StripFIPS {
		name = StripFIPSSuffix(name)
	}
	if opts.StripVersion {
		name = StripVersionSuffix(name)
	}
	return name
}

// ExtractBaseName extracts the bare image name from a full reference,
// without stripping FIPS or version suffixes.
func ExtractBaseName(image string) string {
	return Parse(image).BaseName(BaseNameOptions{})
}

// ExtractRegistry returns the registry hostname of a reference, defaulting
// to DefaultRegistry for short names.
func ExtractRegistry(image string) string {
	if reg := Parse(image).Registry; reg != "" {
		return reg
	}
	return DefaultRegistry
}

// ConvertToPrivateCatalog rewrites a public catalog reference to the private
// namespace. Non-catalog references and references already in the private
// namespace pass through unchanged.
func ConvertToPrivateCatalog(image string) string {
	publicPrefix := CatalogRegistry + "/" + CatalogPublicOrg + "/"
	if strings.HasPrefix(image, publicPrefix) {
		return CatalogRepository + "/" + strings.TrimPrefix(image, publicPrefix)
	}
	return image
}
