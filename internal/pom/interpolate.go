package pom

import (
	"regexp"
	"strings"
)

// maxInterpolationPasses bounds nested property references such as
// ${a} -> ${b} -> value, and stops self-referencing properties.
const maxInterpolationPasses = 10

var rePlaceholder = regexp.MustCompile(`\$\{([^}]+)\}`)

// Interpolate replaces ${name} placeholders with values from props. Unknown
// placeholders are left verbatim.
func Interpolate(s string, props map[string]string) string {
	if !strings.Contains(s, "${") || len(props) == 0 {
		return s
	}
	for i := 0; i < maxInterpolationPasses; i++ {
		next := rePlaceholder.ReplaceAllStringFunc(s, func(m string) string {
			name := m[2 : len(m)-1]
			if v, ok := props[name]; ok {
				return v
			}
			return m
		})
		if next == s {
			break
		}
		s = next
		if !strings.Contains(s, "${") {
			break
		}
	}
	return s
}

// IsUnresolved reports whether s still contains a placeholder.
func IsUnresolved(s string) bool {
	return rePlaceholder.MatchString(s)
}
