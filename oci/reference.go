package oci

import "strings"

// DefaultTag is applied when a reference carries no tag.
const DefaultTag = "latest"

// Reference is a repository[:tag] image reference, without a registry host.
type Reference struct {
	Repository string
	Tag        string
}

// ParseReference parses repository[:tag], defaulting the tag to "latest".
// The colon only counts as a tag separator after the last path segment.
func ParseReference(s string) Reference {
	s = strings.TrimSpace(s)
	idx := strings.LastIndex(s, ":")
	if idx > strings.LastIndex(s, "/") && idx >= 0 {
		return Reference{Repository: s[:idx], Tag: s[idx+1:]}
	}
	return Reference{Repository: s, Tag: DefaultTag}
}

// String returns the reference in repository:tag form.
func (r Reference) String() string {
	return r.Repository + ":" + r.Tag
}

// Flatten replaces slashes in the repository path with dashes, for target
// registries that disable nested repository namespaces.
func (r Reference) Flatten() Reference {
	return Reference{
		Repository: strings.ReplaceAll(r.Repository, "/", "-"),
		Tag:        r.Tag,
	}
}

// WithHubNamespace prefixes "library/" for single-segment repositories,
// matching Docker Hub's implicit namespace for official images.
func (r Reference) WithHubNamespace() Reference {
	if strings.Contains(r.Repository, "/") {
		return r
	}
	return Reference{Repository: "library/" + r.Repository, Tag: r.Tag}
}
