package pom

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// Metadata is the per-artifact version listing.
type Metadata struct {
	GroupID     string
	ArtifactID  string
	Latest      string
	Release     string
	Versions    []string
	LastUpdated string
}

// ReadMetadata parses a metadata document.
func ReadMetadata(r io.Reader) (*Metadata, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	return ParseMetadata(data)
}

// ParseMetadata parses a metadata document held in memory.
func ParseMetadata(data []byte) (*Metadata, error) {
	var m metadata
	if err := decode(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}
	out := &Metadata{
		GroupID:     strings.TrimSpace(m.GroupID),
		ArtifactID:  strings.TrimSpace(m.ArtifactID),
		Latest:      strings.TrimSpace(m.Versioning.Latest),
		Release:     strings.TrimSpace(m.Versioning.Release),
		LastUpdated: strings.TrimSpace(m.Versioning.LastUpdated),
	}
	for _, v := range m.Versioning.Versions {
		if v = strings.TrimSpace(v); v != "" {
			out.Versions = append(out.Versions, v)
		}
	}
	return out, nil
}

// PreferredVersion picks release, then latest, then the lexically greatest listed version.
func (m *Metadata) PreferredVersion() (string, bool) {
	if m == nil {
		return "", false
	}
	if m.Release != "" {
		return m.Release, true
	}
	if m.Latest != "" {
		return m.Latest, true
	}
	if len(m.Versions) == 0 {
		return "", false
	}
	versions := append([]string(nil), m.Versions...)
	sort.Strings(versions)
	return versions[len(versions)-1], true
}
