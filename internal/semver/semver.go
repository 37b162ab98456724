package semver

import (
	"fmt"
	"strings"

	mm "github.com/Masterminds/semver/v3"
)

// Version is a parsed artifact version.
//
// This is a thin wrapper around github.com/Masterminds/semver/v3. Versions that
// do not follow semantic versioning (e.g. "r09", "2.0.0.Final") are kept raw and
// ordered lexically.
type Version struct {
	raw string
	v   *mm.Version
}

func ParseVersion(raw string) (Version, error) {
	v, err := mm.NewVersion(raw)
	if err != nil {
		return Version{}, fmt.Errorf("semver: parse version %q: %w", raw, err)
	}
	return Version{raw: raw, v: v}, nil
}

func MustParseVersion(raw string) Version {
	v, err := ParseVersion(raw)
	if err != nil {
		panic(err)
	}
	return v
}

// Lenient never fails: unparseable versions compare as raw strings.
func Lenient(raw string) Version {
	raw = strings.TrimSpace(raw)
	v, err := mm.NewVersion(raw)
	if err != nil {
		return Version{raw: raw}
	}
	return Version{raw: raw, v: v}
}

func (v Version) String() string {
	return v.raw
}

// Compare compares a and b, returning:
// -1 if a < b
//
//	0 if a == b
//	1 if a > b
//
// When either side is not a semantic version the raw strings are compared.
func Compare(a, b Version) int {
	if a.v == nil || b.v == nil {
		return strings.Compare(a.raw, b.raw)
	}
	return a.v.Compare(b.v)
}

// CompareStrings is Compare over raw version strings.
func CompareStrings(a, b string) int {
	return Compare(Lenient(a), Lenient(b))
}

// Max returns the highest of candidates.
//
// If multiple versions are equal, the first encountered wins.
func Max(candidates []string) (string, bool) {
	var best Version
	found := false
	for _, candidate := range candidates {
		v := Lenient(candidate)
		if !found || Compare(v, best) > 0 {
			best = v
			found = true
		}
	}
	return best.raw, found
}
