// Package matrix loads build matrix documents and resolves their variants
// into concrete tag sets.
package matrix

import (
	"fmt"
	"strings"
)

// File names a namespace directory may use for its matrix.
var FileNames = []string{"matrix.yml", "matrix.yaml"}

// LatestAliasTag is the alias added by latest_alias.
const LatestAliasTag = "latest"

// MatchMode selects how allowed values are compared.
type MatchMode string

const (
	// MatchExact compares raw strings, so "20" and "20.0" differ.
	MatchExact MatchMode = "exact"
	// MatchSemantic compares normalized versions, so "20" and "20.0.0" match.
	MatchSemantic MatchMode = "semantic"
)

// Dimension is one named axis value of a variant, e.g. runtime=22.
type Dimension struct {
	Name  string
	Value string
}

// Variant is one build matrix entry. Dimensions keep document order.
type Variant struct {
	Name       string
	Dimensions []Dimension
	Aliases    []string
}

// Value returns the value of dimension name.
func (v Variant) Value(name string) (string, bool) {
	for _, d := range v.Dimensions {
		if d.Name == name {
			return d.Value, true
		}
	}
	return "", false
}

// Values returns the dimension values in document order.
func (v Variant) Values() []string {
	values := make([]string, len(v.Dimensions))
	for i, d := range v.Dimensions {
		values[i] = d.Value
	}
	return values
}

// DimensionSchema constrains one dimension across every variant.
type DimensionSchema struct {
	// Kind names the LTS ecosystem of the values (node, ubuntu, ...).
	Kind    string
	Match   MatchMode
	Allowed []string
}

// Matrix is a parsed matrix document.
type Matrix struct {
	// Dir is the directory the document was loaded from, empty for readers.
	Dir string

	Dockerfile  string
	Context     string
	LatestAlias string
	Schema      map[string]DimensionSchema
	Variants    []Variant
}

// Names returns the variant names in matrix order.
func (m *Matrix) Names() []string {
	names := make([]string, len(m.Variants))
	for i, v := range m.Variants {
		names[i] = v.Name
	}
	return names
}

// Find returns the variant called name.
func (m *Matrix) Find(name string) (Variant, bool) {
	for _, v := range m.Variants {
		if v.Name == name {
			return v, true
		}
	}
	return Variant{}, false
}

// ConfigError reports a malformed matrix document. One bad entry fails the
// whole document.
type ConfigError struct {
	Source string
	// Entry is the zero-based build_matrix index, or -1 for document keys.
	Entry   int
	Variant string
	Field   string
	Msg     string
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("invalid build matrix")
	if e.Source != "" {
		fmt.Fprintf(&b, " %s", e.Source)
	}
	if e.Entry >= 0 {
		fmt.Fprintf(&b, ": entry %d", e.Entry)
		if e.Variant != "" {
			fmt.Fprintf(&b, " (%s)", e.Variant)
		}
	}
	if e.Field != "" {
		fmt.Fprintf(&b, ": %s", e.Field)
	}
	fmt.Fprintf(&b, ": %s", e.Msg)
	return b.String()
}

// TagSet is the canonical tag plus one tag per alias, all naming one image.
type TagSet struct {
	Canonical string
	Aliases   []string
}

// All returns every tag, canonical first.
func (t TagSet) All() []string {
	return append([]string{t.Canonical}, t.Aliases...)
}

// ResolvedVariant is a variant with its tags and LTS classification.
type ResolvedVariant struct {
	Variant
	Tags TagSet
	// LTS holds, for each dimension whose schema names a kind, whether the
	// value is a long-term-support release.
	LTS map[string]bool
}
