package matrix

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/chis/imagesmith/internal/version"
)

// Repository returns registry/owner/namespace. Owner and namespace are
// lower-cased since registries reject upper-case repository names.
func Repository(registry, owner, namespace string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{strings.TrimRight(registry, "/"), strings.ToLower(strings.Trim(owner, "/")), strings.ToLower(strings.Trim(namespace, "/"))} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "/")
}

// CanonicalTag joins the dimension values with "-" in document order.
func CanonicalTag(v Variant) string {
	return strings.Join(v.Values(), "-")
}

// TagsFor builds the tag set of v under registry/owner/namespace.
func TagsFor(v Variant, registry, owner, namespace string) TagSet {
	repo := Repository(registry, owner, namespace)
	ts := TagSet{Canonical: repo + ":" + CanonicalTag(v)}
	for _, a := range v.Aliases {
		ts.Aliases = append(ts.Aliases, repo+":"+a)
	}
	return ts
}

// Resolve validates every variant against the dimension schema, applies
// latest_alias and computes tag sets. Variants keep matrix order.
func Resolve(m *Matrix, registry, owner, namespace string) ([]ResolvedVariant, error) {
	variants := make([]Variant, len(m.Variants))
	copy(variants, m.Variants)

	for idx, v := range variants {
		if err := validateVariant(m.Schema, v); err != nil {
			err.Entry = idx
			return nil, err
		}
		if tag := CanonicalTag(v); !tagPattern.MatchString(tag) {
			return nil, &ConfigError{Entry: idx, Variant: v.Name, Msg: fmt.Sprintf("canonical tag %q is not a valid tag", tag)}
		}
	}

	if m.LatestAlias != "" {
		if err := applyLatestAlias(variants, m.LatestAlias); err != nil {
			return nil, err
		}
	}

	resolved := make([]ResolvedVariant, 0, len(variants))
	owners := make(map[string]string)
	for idx, v := range variants {
		rv := ResolvedVariant{
			Variant: v,
			Tags:    TagsFor(v, registry, owner, namespace),
			LTS:     ltsFlags(m.Schema, v),
		}
		for _, tag := range rv.Tags.All() {
			if other, taken := owners[tag]; taken {
				return nil, &ConfigError{Entry: idx, Variant: v.Name,
					Msg: fmt.Sprintf("tag %s is also produced by variant %s", tag, other)}
			}
			owners[tag] = v.Name
		}
		resolved = append(resolved, rv)
	}
	return resolved, nil
}

func validateVariant(schema map[string]DimensionSchema, v Variant) *ConfigError {
	for _, name := range slices.Sorted(maps.Keys(schema)) {
		ds := schema[name]
		value, ok := v.Value(name)
		if !ok {
			if len(ds.Allowed) > 0 {
				return &ConfigError{Variant: v.Name, Field: name, Msg: "dimension is required by the schema"}
			}
			continue
		}
		if len(ds.Allowed) == 0 {
			continue
		}

		member := version.ValidateMembership(value, ds.Allowed)
		if ds.Match == MatchSemantic {
			member = version.SemanticMembership(value, ds.Allowed)
		}
		if !member {
			return &ConfigError{Variant: v.Name, Field: name,
				Msg: fmt.Sprintf("%q is not one of %s", value, strings.Join(ds.Allowed, ", "))}
		}
	}
	return nil
}

// applyLatestAlias gives the variant holding the highest value of dim the
// alias "latest". The first variant wins ties.
func applyLatestAlias(variants []Variant, dim string) error {
	var values []string
	var holders []int
	for i, v := range variants {
		if value, ok := v.Value(dim); ok {
			values = append(values, value)
			holders = append(holders, i)
		}
	}

	latest, err := version.Latest(values)
	if err != nil {
		return &ConfigError{Entry: -1, Field: keyLatestAlias, Msg: err.Error()}
	}

	target := -1
	for i, value := range values {
		if version.Compare(version.Normalize(value), latest) == version.Equal {
			target = holders[i]
			break
		}
	}

	for i, v := range variants {
		for _, a := range v.Aliases {
			if a == LatestAliasTag && i != target {
				return &ConfigError{Entry: i, Variant: v.Name, Field: keyAliases,
					Msg: fmt.Sprintf("alias %q conflicts with latest_alias %s", LatestAliasTag, dim)}
			}
		}
	}

	v := variants[target]
	for _, a := range v.Aliases {
		if a == LatestAliasTag {
			return nil
		}
	}
	aliases := make([]string, 0, len(v.Aliases)+1)
	aliases = append(aliases, v.Aliases...)
	v.Aliases = append(aliases, LatestAliasTag)
	variants[target] = v
	return nil
}

func ltsFlags(schema map[string]DimensionSchema, v Variant) map[string]bool {
	flags := make(map[string]bool)
	for name, ds := range schema {
		if ds.Kind == "" {
			continue
		}
		if value, ok := v.Value(name); ok {
			flags[name] = version.IsLTS(ds.Kind, value)
		}
	}
	return flags
}
