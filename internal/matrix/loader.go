package matrix

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

const (
	keyBuildMatrix = "build_matrix"
	keyDockerfile  = "dockerfile"
	keyContext     = "context"
	keyLatestAlias = "latest_alias"
	keyDimensions  = "dimensions"

	keyName    = "name"
	keyAliases = "aliases"

	keyKind    = "kind"
	keyMatch   = "match"
	keyAllowed = "allowed"
)

// tagPattern is the grammar of an image tag.
var tagPattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.-]{0,127}$`)

// LoadFile loads the matrix at path and records its directory.
func LoadFile(path string) (*Matrix, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read build matrix: %w", err)
	}

	m, err := parse(data, path)
	if err != nil {
		return nil, err
	}
	m.Dir = filepath.Dir(path)
	return m, nil
}

// FindFile returns the matrix file inside dir, if any.
func FindFile(dir string) (string, bool) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

// Load parses a matrix document from r.
func Load(r io.Reader) (*Matrix, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read build matrix: %w", err)
	}
	return parse(data, "")
}

func parse(data []byte, source string) (*Matrix, error) {
	docErr := func(field, format string, args ...any) error {
		return &ConfigError{Source: source, Entry: -1, Field: field, Msg: fmt.Sprintf(format, args...)}
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, docErr("", "document is empty")
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, docErr("", "%v", err)
	}

	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 || root.Content[0].Kind != yaml.MappingNode {
		return nil, docErr("", "document must be a mapping")
	}
	doc := root.Content[0]

	m := &Matrix{Schema: make(map[string]DimensionSchema)}
	var entries *yaml.Node

	seen := make(map[string]bool)
	for i := 0; i < len(doc.Content); i += 2 {
		key, value := doc.Content[i], doc.Content[i+1]
		if seen[key.Value] {
			return nil, docErr(key.Value, "duplicate key")
		}
		seen[key.Value] = true

		var err error
		switch key.Value {
		case keyBuildMatrix:
			entries = value
		case keyDockerfile:
			m.Dockerfile, err = scalar(value)
		case keyContext:
			m.Context, err = scalar(value)
		case keyLatestAlias:
			m.LatestAlias, err = scalar(value)
		case keyDimensions:
			m.Schema, err = parseSchema(value)
		default:
			err = errors.New("unknown key")
		}
		if err != nil {
			var cfgErr *ConfigError
			if errors.As(err, &cfgErr) {
				cfgErr.Source = source
				return nil, cfgErr
			}
			return nil, docErr(key.Value, "%v", err)
		}
	}

	if entries == nil {
		return nil, docErr(keyBuildMatrix, "required")
	}
	if entries.Kind != yaml.SequenceNode {
		return nil, docErr(keyBuildMatrix, "must be a list")
	}
	if len(entries.Content) == 0 {
		return nil, docErr(keyBuildMatrix, "must contain at least one variant")
	}

	names := make(map[string]int)
	for idx, node := range entries.Content {
		v, err := parseVariant(node)
		if err != nil {
			err.Source = source
			err.Entry = idx
			return nil, err
		}
		if prev, dup := names[v.Name]; dup {
			return nil, &ConfigError{Source: source, Entry: idx, Variant: v.Name, Field: keyName,
				Msg: fmt.Sprintf("duplicate variant name, first used by entry %d", prev)}
		}
		names[v.Name] = idx
		m.Variants = append(m.Variants, v)
	}

	if m.LatestAlias != "" && !anyHasDimension(m.Variants, m.LatestAlias) {
		return nil, docErr(keyLatestAlias, "no variant defines dimension %q", m.LatestAlias)
	}

	return m, nil
}

func parseVariant(node *yaml.Node) (Variant, *ConfigError) {
	var v Variant
	fail := func(field, format string, args ...any) (Variant, *ConfigError) {
		return Variant{}, &ConfigError{Variant: v.Name, Field: field, Msg: fmt.Sprintf(format, args...)}
	}

	if node.Kind != yaml.MappingNode {
		return fail("", "entry must be a mapping")
	}

	seen := make(map[string]bool)
	for i := 0; i < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if seen[key.Value] {
			return fail(key.Value, "duplicate key")
		}
		seen[key.Value] = true

		switch key.Value {
		case keyName:
			name, err := scalar(value)
			if err != nil {
				return fail(keyName, "%v", err)
			}
			v.Name = name
		case keyAliases:
			aliases, err := scalarList(value)
			if err != nil {
				return fail(keyAliases, "%v", err)
			}
			for _, a := range aliases {
				if !tagPattern.MatchString(a) {
					return fail(keyAliases, "%q is not a valid tag", a)
				}
			}
			v.Aliases = aliases
		default:
			val, err := scalar(value)
			if err != nil {
				return fail(key.Value, "%v", err)
			}
			v.Dimensions = append(v.Dimensions, Dimension{Name: key.Value, Value: val})
		}
	}

	if v.Name == "" {
		return fail(keyName, "required")
	}
	if len(v.Dimensions) == 0 {
		return fail("", "at least one dimension is required")
	}
	return v, nil
}

func parseSchema(node *yaml.Node) (map[string]DimensionSchema, error) {
	schema := make(map[string]DimensionSchema)
	if node.Kind != yaml.MappingNode {
		return nil, &ConfigError{Entry: -1, Field: keyDimensions, Msg: "must be a mapping"}
	}

	for i := 0; i < len(node.Content); i += 2 {
		name, body := node.Content[i].Value, node.Content[i+1]
		field := keyDimensions + "." + name
		fail := func(sub, format string, args ...any) error {
			f := field
			if sub != "" {
				f += "." + sub
			}
			return &ConfigError{Entry: -1, Field: f, Msg: fmt.Sprintf(format, args...)}
		}

		if _, dup := schema[name]; dup {
			return nil, fail("", "duplicate dimension")
		}
		if body.Kind != yaml.MappingNode {
			return nil, fail("", "must be a mapping")
		}

		ds := DimensionSchema{Match: MatchExact}
		for j := 0; j < len(body.Content); j += 2 {
			key, value := body.Content[j], body.Content[j+1]
			switch key.Value {
			case keyKind:
				kind, err := scalar(value)
				if err != nil {
					return nil, fail(keyKind, "%v", err)
				}
				ds.Kind = kind
			case keyMatch:
				match, err := scalar(value)
				if err != nil {
					return nil, fail(keyMatch, "%v", err)
				}
				switch MatchMode(match) {
				case MatchExact, MatchSemantic:
					ds.Match = MatchMode(match)
				default:
					return nil, fail(keyMatch, "must be %q or %q, got %q", MatchExact, MatchSemantic, match)
				}
			case keyAllowed:
				allowed, err := scalarList(value)
				if err != nil {
					return nil, fail(keyAllowed, "%v", err)
				}
				ds.Allowed = allowed
			default:
				return nil, fail(key.Value, "unknown key")
			}
		}
		schema[name] = ds
	}
	return schema, nil
}

// scalar returns the raw text of a non-null scalar. Raw text keeps values
// like 24.04 or 8.10 exactly as written.
func scalar(node *yaml.Node) (string, error) {
	if node.Kind == yaml.AliasNode && node.Alias != nil {
		node = node.Alias
	}
	if node.Kind != yaml.ScalarNode {
		return "", errors.New("must be a scalar value")
	}
	if node.Tag == "!!null" || node.Value == "" {
		return "", errors.New("must not be empty")
	}
	return node.Value, nil
}

func scalarList(node *yaml.Node) ([]string, error) {
	if node.Kind != yaml.SequenceNode {
		return nil, errors.New("must be a list")
	}
	out := make([]string, 0, len(node.Content))
	for _, item := range node.Content {
		s, err := scalar(item)
		if err != nil {
			return nil, fmt.Errorf("item %d %v", len(out), err)
		}
		out = append(out, s)
	}
	return out, nil
}

func anyHasDimension(variants []Variant, name string) bool {
	for _, v := range variants {
		if _, ok := v.Value(name); ok {
			return true
		}
	}
	return false
}
