// Package pom reads dependency descriptor documents and per-artifact metadata documents.
package pom

import (
	"fmt"
	"io"
	"strings"

	"github.com/anvil-platform/depot/internal/coords"
)

// ReadOptions control which declared dependencies are retained.
type ReadOptions struct {
	IncludeOptional bool
	IncludeTest     bool
}

// Descriptor is the structured form of a descriptor document.
type Descriptor struct {
	GroupID    string
	ArtifactID string
	Version    string
	Packaging  string
	Parent     *coords.ParentRef
	// Properties holds built-in identity properties and custom properties.
	Properties map[string]string
	// Management maps group-artifact keys to managed versions.
	Management map[string]string
	// Imports are bill-of-materials descriptors referenced from the management section.
	Imports      []coords.Dependency
	Dependencies []coords.Dependency
}

// Coordinate returns the descriptor's own identity.
func (d *Descriptor) Coordinate() coords.Coordinate {
	return coords.New(d.GroupID, d.ArtifactID, d.Version, "")
}

// Read parses a descriptor document.
func Read(r io.Reader, opts ReadOptions) (*Descriptor, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read descriptor: %w", err)
	}
	return Parse(data, opts)
}

// Parse parses a descriptor document held in memory.
func Parse(data []byte, opts ReadOptions) (*Descriptor, error) {
	var p project
	if err := decode(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDescriptor, err)
	}
	if strings.TrimSpace(p.ArtifactID) == "" {
		return nil, fmt.Errorf("%w: missing artifactId", ErrInvalidDescriptor)
	}

	d := &Descriptor{
		GroupID:    strings.TrimSpace(p.GroupID),
		ArtifactID: strings.TrimSpace(p.ArtifactID),
		Version:    strings.TrimSpace(p.Version),
		Packaging:  strings.TrimSpace(p.Packaging),
		Properties: map[string]string{},
		Management: map[string]string{},
	}
	if p.Parent != nil && strings.TrimSpace(p.Parent.ArtifactID) != "" {
		d.Parent = &coords.ParentRef{
			GroupID:    strings.TrimSpace(p.Parent.GroupID),
			ArtifactID: strings.TrimSpace(p.Parent.ArtifactID),
			Version:    strings.TrimSpace(p.Parent.Version),
		}
		if d.GroupID == "" {
			d.GroupID = d.Parent.GroupID
		}
		if d.Version == "" {
			d.Version = d.Parent.Version
		}
	}
	if d.Packaging == "" {
		d.Packaging = "jar"
	}

	d.seedBuiltins()
	for _, prop := range p.Properties.Entries {
		d.Properties[prop.XMLName.Local] = strings.TrimSpace(prop.Value)
	}
	for k, v := range d.Properties {
		d.Properties[k] = Interpolate(v, d.Properties)
	}
	// Identity fields may themselves be property references, e.g. ${revision}.
	if gid, ver := Interpolate(d.GroupID, d.Properties), Interpolate(d.Version, d.Properties); gid != d.GroupID || ver != d.Version {
		d.GroupID, d.Version = gid, ver
		d.seedBuiltins()
	}

	for _, raw := range p.DependencyManagement.Dependencies {
		dep := d.convert(raw)
		if dep.EffectiveScope() == coords.ScopeImport && dep.IsPom() {
			d.Imports = append(d.Imports, dep)
			continue
		}
		if dep.Version != "" {
			d.Management[dep.Key()] = dep.Version
		}
	}

	for _, raw := range p.Dependencies {
		dep := d.convert(raw)
		if !Included(dep, opts) {
			continue
		}
		d.Dependencies = append(d.Dependencies, dep)
	}
	return d, nil
}

// Included reports whether a declared dependency participates in run-time resolution.
func Included(dep coords.Dependency, opts ReadOptions) bool {
	switch dep.EffectiveScope() {
	case coords.ScopeCompile, coords.ScopeRuntime:
	case coords.ScopeTest:
		if !opts.IncludeTest {
			return false
		}
	default:
		return false
	}
	if dep.Optional && !opts.IncludeOptional {
		return false
	}
	return true
}

// Interpolate re-applies props to every placeholder that is still unresolved.
// It is used once the properties of the whole parent hierarchy are known.
func (d *Descriptor) Interpolate(props map[string]string) {
	for k, v := range d.Management {
		d.Management[k] = Interpolate(v, props)
	}
	for i := range d.Dependencies {
		d.Dependencies[i] = reinterpolate(d.Dependencies[i], props)
	}
	for i := range d.Imports {
		d.Imports[i] = reinterpolate(d.Imports[i], props)
	}
}

func reinterpolate(dep coords.Dependency, props map[string]string) coords.Dependency {
	c := coords.New(
		Interpolate(dep.GroupID, props),
		Interpolate(dep.ArtifactID, props),
		Interpolate(dep.Version, props),
		Interpolate(dep.Classifier, props),
	)
	c.IsBom = dep.IsBom
	dep.Coordinate = c
	return dep
}

func (d *Descriptor) seedBuiltins() {
	for _, prefix := range []string{"this.", "project.", "pom."} {
		d.Properties[prefix+"groupId"] = d.GroupID
		d.Properties[prefix+"artifactId"] = d.ArtifactID
		d.Properties[prefix+"version"] = d.Version
	}
	if d.Parent != nil {
		for _, prefix := range []string{"project.parent.", "parent."} {
			d.Properties[prefix+"groupId"] = d.Parent.GroupID
			d.Properties[prefix+"artifactId"] = d.Parent.ArtifactID
			d.Properties[prefix+"version"] = d.Parent.Version
		}
	}
}

func (d *Descriptor) convert(raw dependency) coords.Dependency {
	sub := func(s string) string { return Interpolate(strings.TrimSpace(s), d.Properties) }
	dep := coords.NewDependency(coords.New(sub(raw.GroupID), sub(raw.ArtifactID), sub(raw.Version), sub(raw.Classifier)))
	if t := sub(raw.Type); t != "" {
		dep.Type = t
	}
	if s := sub(raw.Scope); s != "" {
		dep.Scope = s
	}
	dep.Optional = strings.EqualFold(sub(raw.Optional), "true")
	if dep.EffectiveScope() == coords.ScopeImport && dep.IsPom() {
		dep.Coordinate = dep.Coordinate.AsBom()
	}
	return dep
}
