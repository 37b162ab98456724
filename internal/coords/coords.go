// Package coords models package coordinates and the dependencies that reference them.
package coords

import (
	"fmt"
	"strings"
)

// placeholder is written in place of '.' by callers that need to keep group ids
// away from namespace relocation tooling.
const placeholder = "{}"

// Well-known dependency scopes.
const (
	ScopeCompile  = "compile"
	ScopeRuntime  = "runtime"
	ScopeProvided = "provided"
	ScopeTest     = "test"
	ScopeSystem   = "system"
	ScopeImport   = "import"
)

// Coordinate identifies a single package. It is immutable; use the With* methods
// to derive a modified copy.
type Coordinate struct {
	GroupID    string
	ArtifactID string
	Version    string
	Classifier string
	// IsBom marks coordinates that were discovered as imported bill-of-materials
	// descriptors. They contribute managed versions but are never downloaded.
	IsBom bool
}

// New builds a Coordinate with normalised fields.
func New(groupID, artifactID, version, classifier string) Coordinate {
	return Coordinate{
		GroupID:    normalize(groupID),
		ArtifactID: normalize(artifactID),
		Version:    normalize(version),
		Classifier: normalize(classifier),
	}
}

// Parse reads "group:artifact[:version[:classifier]]".
func Parse(raw string) (Coordinate, error) {
	raw = strings.TrimSpace(raw)
	parts := strings.Split(raw, ":")
	if len(parts) < 2 || len(parts) > 4 {
		return Coordinate{}, fmt.Errorf("%w: %q: expected group:artifact[:version[:classifier]]", ErrInvalidCoordinate, raw)
	}
	for i, p := range parts {
		if strings.TrimSpace(p) == "" {
			return Coordinate{}, fmt.Errorf("%w: %q: empty field %d", ErrInvalidCoordinate, raw, i+1)
		}
	}
	c := Coordinate{GroupID: parts[0], ArtifactID: parts[1]}
	if len(parts) > 2 {
		c.Version = parts[2]
	}
	if len(parts) > 3 {
		c.Classifier = parts[3]
	}
	c = New(c.GroupID, c.ArtifactID, c.Version, c.Classifier)
	if err := c.Validate(); err != nil {
		return Coordinate{}, fmt.Errorf("%q: %w", raw, err)
	}
	return c, nil
}

// MustParse is Parse for static inputs.
func MustParse(raw string) Coordinate {
	c, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return c
}

// Validate reports malformed coordinates. A missing version is allowed.
// Every field becomes part of a repository path, so separators and relative
// path segments are rejected.
func (c Coordinate) Validate() error {
	if c.GroupID == "" {
		return fmt.Errorf("%w: empty groupId", ErrInvalidCoordinate)
	}
	if c.ArtifactID == "" {
		return fmt.Errorf("%w: %s: empty artifactId", ErrInvalidCoordinate, c.GroupID)
	}
	for _, seg := range strings.Split(c.GroupID, ".") {
		if seg == "" || !validSegment(seg) {
			return fmt.Errorf("%w: groupId %q", ErrInvalidCoordinate, c.GroupID)
		}
	}
	fields := []struct{ name, value string }{
		{"artifactId", c.ArtifactID},
		{"version", c.Version},
		{"classifier", c.Classifier},
	}
	for _, f := range fields {
		if f.value != "" && !validSegment(f.value) {
			return fmt.Errorf("%w: %s: %s %q", ErrInvalidCoordinate, c.Key(), f.name, f.value)
		}
	}
	return nil
}

func validSegment(s string) bool {
	if s == "." || s == ".." {
		return false
	}
	return !strings.ContainsAny(s, "/\\\x00")
}

// Key is the group-artifact key, independent of version and classifier.
func (c Coordinate) Key() string {
	return c.GroupID + ":" + c.ArtifactID
}

// String renders group:artifact:version[:classifier]. It identifies a coordinate
// during discovery; an unversioned coordinate renders with an empty version.
func (c Coordinate) String() string {
	s := c.GroupID + ":" + c.ArtifactID + ":" + c.Version
	if c.Classifier != "" {
		s += ":" + c.Classifier
	}
	return s
}

// HasVersion reports whether the version is set.
func (c Coordinate) HasVersion() bool {
	return c.Version != ""
}

// WithVersion returns a copy with the version replaced.
func (c Coordinate) WithVersion(version string) Coordinate {
	c.Version = normalize(version)
	return c
}

// AsBom returns a copy flagged as a bill-of-materials import.
func (c Coordinate) AsBom() Coordinate {
	c.IsBom = true
	return c
}

func normalize(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), placeholder, ".")
}

// Dependency is a reference to a coordinate as declared by a caller or a descriptor.
type Dependency struct {
	Coordinate
	// Scope defaults to compile.
	Scope    string
	Optional bool
	// Type is the declared packaging type, "jar" when absent.
	Type string
	// Repository is an optional fallback repository URL tried after all
	// configured repositories.
	Repository string
}

// NewDependency wraps c with default scope and type.
func NewDependency(c Coordinate) Dependency {
	return Dependency{Coordinate: c, Scope: ScopeCompile, Type: "jar"}
}

// WithVersion supersedes d with a versioned copy.
func (d Dependency) WithVersion(version string) Dependency {
	d.Coordinate = d.Coordinate.WithVersion(version)
	return d
}

// EffectiveScope returns the scope with the compile default applied.
func (d Dependency) EffectiveScope() string {
	if d.Scope == "" {
		return ScopeCompile
	}
	return d.Scope
}

// IsPom reports whether the dependency resolves to a descriptor only.
func (d Dependency) IsPom() bool {
	return d.Type == "pom"
}

// ParentRef points at the descriptor a document inherits from.
type ParentRef struct {
	GroupID    string
	ArtifactID string
	Version    string
}

// Dependency converts the reference so the parent can be fetched like any other coordinate.
func (p ParentRef) Dependency() Dependency {
	d := NewDependency(New(p.GroupID, p.ArtifactID, p.Version, ""))
	d.Type = "pom"
	return d
}

func (p ParentRef) String() string {
	return p.GroupID + ":" + p.ArtifactID + ":" + p.Version
}
