// Package image provides parsing and manipulation of container image
// references. It is the canonical reference model used by every other part of
// the matching pipeline: candidate generation, upstream discovery, version
// resolution and the tier matchers all work on the Reference type defined
// here.
package image

import (
	"strings"

	"github.com/distribution/reference"

	log "github.com/guardrail-dev/imgmatch/pkg/log"
)

// Constants for the well-known registries and namespaces the pipeline deals
// with.
const (
	// DefaultRegistry is the registry implied when a reference carries none.
	DefaultRegistry = "docker.io"
	// DefaultOrganization is the namespace implied for bare official images.
	DefaultOrganization = "library"
	// CatalogRegistry is the registry hosting the curated target catalog.
	CatalogRegistry = "cgr.dev"
	// CatalogPrivateOrg is the private catalog namespace.
	CatalogPrivateOrg = "chainguard-private"
	// CatalogPublicOrg is the public catalog namespace.
	CatalogPublicOrg = "chainguard"
	// LatestTag is the default floating tag.
	LatestTag = "latest"
)

// CatalogRepository is the registry/org prefix for private catalog images.
const CatalogRepository = CatalogRegistry + "/" + CatalogPrivateOrg

// Reference encapsulates the components of a container image reference.
// A Reference is constructed once by Parse and treated as immutable; derived
// views such as BaseName are computed on demand.
type Reference struct {
	Original     string // The raw string given to Parse
	Registry     string // Registry hostname, possibly with port (e.g. docker.io, localhost:5000)
	Organization string // Organization/namespace (e.g. library, chainguard-private); may be empty
	Name         string // Image name, lowercase, without registry/org/tag/digest
	Tag          string // Tag (e.g. latest, 1.27.0); may be empty
	Digest       string // Digest (e.g. sha256:...); may be empty
}

// Parse parses a container image reference string into its components.
//
// It attempts the distribution/reference library first and falls back to a
// best-effort manual split for strings the library rejects (uppercase names,
// unusual digests, and so on). Parse never fails: an unparseable string still
// yields a partially populated Reference, because an unparseable input must
// degrade matching rather than abort it.
//
// Handled forms include:
//   - nginx:latest               -> docker.io / library / nginx
//   - library/nginx              -> docker.io / library / nginx
//   - gcr.io/project/app:v1      -> gcr.io / project / app
//   - cgr.dev/acme.com/node      -> cgr.dev / acme.com / node
//   - app@sha256:abc...          -> digest reference
//
// For cgr.dev the second path segment is always the organization, even when
// it looks like a hostname (customer orgs are named after domains).
func Parse(image string) *Reference {
	if named, err := reference.ParseAnyReference(image); err == nil {
		if ref, ok := fromDistribution(image, named); ok {
			return ref
		}
	}

	log.Debug("falling back to manual reference parsing", "image", image)
	return parseManual(image)
}

// fromDistribution converts a parsed distribution reference into our model.
func fromDistribution(original string, parsed reference.Reference) (*Reference, bool) {
	named, ok := parsed.(reference.Named)
	if !ok {
		// Digest-only references carry no repository to classify.
		return nil, false
	}

	ref := &Reference{
		Original: original,
		Registry: reference.Domain(named),
	}
	ref.Organization, ref.Name = splitRepository(ref.Registry, reference.Path(named))

	if tagged, ok := parsed.(reference.Tagged); ok {
		ref.Tag = tagged.Tag()
	}
	if digested, ok := parsed.(reference.Digested); ok {
		ref.Digest = digested.Digest().String()
	}
	return ref, true
}

// splitRepository classifies a repository path into organization and name.
func splitRepository(registry, repoPath string) (org, name string) {
	segments := strings.Split(repoPath, "/")
	if len(segments) == 1 {
		return "", strings.ToLower(segments[0])
	}
	// cgr.dev always namespaces by organization; for generic registries the
	// first segment is the organization and the remainder is the name.
	return strings.ToLower(segments[0]), strings.ToLower(strings.Join(segments[1:], "/"))
}

// parseManual is the fallback parser for strings the distribution library
// rejects. It mirrors the split rules of the normalized model: digest after
// the last "@", tag after the last ":" that follows the last "/", and a first
// segment treated as a registry iff it contains a dot, a colon, or equals
// "localhost".
func parseManual(image string) *Reference {
	ref := &Reference{Original: image}
	rest := image

	if idx := strings.LastIndex(rest, "@"); idx >= 0 {
		ref.Digest = rest[idx+1:]
		rest = rest[:idx]
	}

	lastSlash := strings.LastIndex(rest, "/")
	if idx := strings.LastIndex(rest, ":"); idx > lastSlash {
		ref.Tag = rest[idx+1:]
		rest = rest[:idx]
	}

	parts := strings.Split(rest, "/")
	switch {
	case len(parts) == 1:
		ref.Registry = DefaultRegistry
		ref.Organization = DefaultOrganization
		ref.Name = strings.ToLower(parts[0])
	case isRegistry(parts[0]):
		ref.Registry = parts[0]
		if len(parts) == 2 {
			ref.Name = strings.ToLower(parts[1])
		} else {
			ref.Organization = strings.ToLower(parts[1])
			ref.Name = strings.ToLower(strings.Join(parts[2:], "/"))
		}
	default:
		ref.Registry = DefaultRegistry
		ref.Organization = strings.ToLower(parts[0])
		ref.Name = strings.ToLower(strings.Join(parts[1:], "/"))
	}
	return ref
}

// isRegistry reports whether a path segment denotes a registry hostname.
func isRegistry(segment string) bool {
	return strings.Contains(segment, ".") || strings.Contains(segment, ":") || segment == "localhost"
}

// FullName reconstructs the full reference string from its components.
// Reconstruction is lossless: when both a tag and a digest are present, both
// are emitted (name:tag@digest), so re-parsing yields an equal Reference.
func (r *Reference) FullName() string {
	var sb strings.Builder
	if r.Registry != "" {
		sb.WriteString(r.Registry)
		sb.WriteString("/")
	}
	if r.Organization != "" {
		sb.WriteString(r.Organization)
		sb.WriteString("/")
	}
	sb.WriteString(r.Name)
	if r.Tag != "" {
		sb.WriteString(":")
		sb.WriteString(r.Tag)
	}
	if r.Digest != "" {
		sb.WriteString("@")
		sb.WriteString(r.Digest)
	}
	return sb.String()
}

// String returns the full reference string.
func (r *Reference) String() string {
	return r.FullName()
}

// NameWithOrg returns org/name when an organization is present, otherwise
// just the name.
func (r *Reference) NameWithOrg() string {
	if r.Organization != "" {
		return r.Organization + "/" + r.Name
	}
	return r.Name
}

// WithTag returns a copy with the given tag and any digest cleared.
func (r *Reference) WithTag(tag string) *Reference {
	out := *r
	out.Tag = tag
	out.Digest = ""
	return &out
}

// WithRegistry returns a copy pointed at a different registry and
// organization.
func (r *Reference) WithRegistry(registry, organization string) *Reference {
	out := *r
	out.Registry = registry
	out.Organization = organization
	return &out
}

// IsCatalog reports whether the reference points at the catalog registry.
func (r *Reference) IsCatalog() bool {
	return r.Registry == CatalogRegistry
}

// IsCatalogPrivate reports whether the reference is in the private catalog
// namespace.
func (r *Reference) IsCatalogPrivate() bool {
	return r.IsCatalog() && r.Organization == CatalogPrivateOrg
}

// IsCatalogPublic reports whether the reference is in the public catalog
// namespace.
func (r *Reference) IsCatalogPublic() bool {
	return r.IsCatalog() && r.Organization == CatalogPublicOrg
}
