// Package repository holds the ordered set of repositories artifacts are fetched
// from and the path layout shared by remote repositories and the local cache.
package repository

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/anvil-platform/depot/internal/coords"
)

// Well-known remote repositories.
const (
	MavenCentral = "https://repo1.maven.org/maven2/"
	Sonatype     = "https://oss.sonatype.org/content/groups/public/"
	Google       = "https://maven.google.com/"
	JitPack      = "https://jitpack.io/"
)

// MetadataFile is the per-artifact metadata document name.
const MetadataFile = "maven-metadata.xml"

// Repository is a single location artifacts can be read from.
type Repository struct {
	ID  string
	URL string
	// Local repositories are read directly from disk and never contacted over HTTP.
	Local bool
}

// Registry is the ordered list of repositories. The local cache is always first.
type Registry struct {
	local   Repository
	remotes []Repository
}

// NewRegistry creates a registry rooted at cacheDir with the given remote URLs
// tried in order. Duplicate URLs are dropped.
func NewRegistry(cacheDir string, remotes ...Repository) *Registry {
	r := &Registry{local: Repository{ID: "local", URL: cacheDir, Local: true}}
	for _, remote := range remotes {
		r.Add(remote)
	}
	return r
}

// Add appends a remote repository unless its URL is already registered.
func (r *Registry) Add(remote Repository) {
	remote.URL = NormalizeURL(remote.URL)
	if remote.URL == "" {
		return
	}
	for _, existing := range r.remotes {
		if existing.URL == remote.URL {
			return
		}
	}
	if remote.ID == "" {
		remote.ID = remote.URL
	}
	r.remotes = append(r.remotes, remote)
}

// CacheDir is the root of the local artifact cache.
func (r *Registry) CacheDir() string {
	return r.local.URL
}

// All returns every repository, local cache first.
func (r *Registry) All() []Repository {
	out := make([]Repository, 0, len(r.remotes)+1)
	out = append(out, r.local)
	return append(out, r.remotes...)
}

// Remotes returns the remote repositories in priority order.
func (r *Registry) Remotes() []Repository {
	return append([]Repository(nil), r.remotes...)
}

// NormalizeURL trims whitespace and guarantees a single trailing slash.
func NormalizeURL(u string) string {
	u = strings.TrimSpace(u)
	if u == "" {
		return ""
	}
	return strings.TrimRight(u, "/") + "/"
}

// GroupPath converts a group id to its slash separated directory form.
func GroupPath(groupID string) string {
	return strings.ReplaceAll(groupID, ".", "/")
}

// ArtifactPath is the repository-relative path of c's binary.
func ArtifactPath(c coords.Coordinate) string {
	return versionDir(c) + "/" + fileBase(c) + ".jar"
}

// DescriptorPath is the repository-relative path of c's descriptor. Classifiers
// share the descriptor of the main artifact.
func DescriptorPath(c coords.Coordinate) string {
	return versionDir(c) + "/" + c.ArtifactID + "-" + c.Version + ".pom"
}

// MetadataPath is the repository-relative path of the artifact metadata document.
func MetadataPath(c coords.Coordinate) string {
	return GroupPath(c.GroupID) + "/" + c.ArtifactID + "/" + MetadataFile
}

// RelocationMarkerPath is the repository-relative path that records the rule set
// a relocated artifact was produced with.
func RelocationMarkerPath(c coords.Coordinate) string {
	name := "relocations.txt"
	if c.Classifier != "" {
		name = "relocations-" + c.Classifier + ".txt"
	}
	return versionDir(c) + "/" + name
}

// RelocatedArtifactPath is the repository-relative path of the relocated binary.
func RelocatedArtifactPath(c coords.Coordinate) string {
	return versionDir(c) + "/" + fileBase(c) + "-relocated.jar"
}

// URL joins a repository base URL and a relative path.
func URL(base, rel string) string {
	return NormalizeURL(base) + strings.TrimLeft(rel, "/")
}

// LocalPath maps a relative path into the cache directory.
func LocalPath(cacheDir, rel string) string {
	return filepath.Join(cacheDir, filepath.FromSlash(rel))
}

func versionDir(c coords.Coordinate) string {
	return path.Join(GroupPath(c.GroupID), c.ArtifactID, c.Version)
}

func fileBase(c coords.Coordinate) string {
	base := c.ArtifactID + "-" + c.Version
	if c.Classifier != "" {
		base += "-" + c.Classifier
	}
	return base
}
