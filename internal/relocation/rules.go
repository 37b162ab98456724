// Package relocation rewrites the namespaces of cached artifacts through an
// external tool and keeps the relocated copies until the rule set changes.
package relocation

import (
	"fmt"
	"strings"
)

// Rule renames every namespace starting with Pattern to start with Relocated.
type Rule struct {
	Pattern   string `json:"pattern" yaml:"pattern"`
	Relocated string `json:"relocated" yaml:"relocated"`
}

// NewRule builds a rule, restoring "{}" placeholders to dots.
func NewRule(pattern, relocated string) Rule {
	return Rule{Pattern: normalize(pattern), Relocated: normalize(relocated)}
}

func (r Rule) String() string {
	return r.Pattern + " -> " + r.Relocated
}

// Validate rejects rules that would rename nothing or rename to nothing.
func (r Rule) Validate() error {
	if normalize(r.Pattern) == "" || normalize(r.Relocated) == "" {
		return fmt.Errorf("%w: %q", ErrInvalidRule, r.String())
	}
	return nil
}

// Serialize renders rules in their canonical form: one normalised rule per
// line, in the order given. Two rule lists relocate identically exactly when
// their serializations are equal.
func Serialize(rules []Rule) string {
	var b strings.Builder
	for _, r := range rules {
		b.WriteString(normalize(r.Pattern))
		b.WriteString(" -> ")
		b.WriteString(normalize(r.Relocated))
		b.WriteByte('\n')
	}
	return b.String()
}

// Mapping converts rules to the rename table handed to the tool. Later rules
// with a repeated pattern override earlier ones.
func Mapping(rules []Rule) map[string]string {
	out := make(map[string]string, len(rules))
	for _, r := range rules {
		out[normalize(r.Pattern)] = normalize(r.Relocated)
	}
	return out
}

func normalize(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "{}", ".")
}
