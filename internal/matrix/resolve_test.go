package matrix

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagsFor_Edge(t *testing.T) {
	v := Variant{
		Name:       "edge",
		Dimensions: []Dimension{{"os", "24.04"}, {"runtime", "22"}},
		Aliases:    []string{"bleeding"},
	}

	ts := TagsFor(v, "r", "o", "ci")

	assert.Equal(t, "r/o/ci:24.04-22", ts.Canonical)
	assert.Equal(t, []string{"r/o/ci:24.04-22", "r/o/ci:bleeding"}, ts.All())
}

func TestRepository(t *testing.T) {
	tests := []struct {
		registry, owner, namespace string
		want                       string
	}{
		{"ghcr.io", "acme", "ci", "ghcr.io/acme/ci"},
		{"ghcr.io/", "Acme", "CI", "ghcr.io/acme/ci"},
		{"localhost:5000", "", "ci", "localhost:5000/ci"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Repository(tt.registry, tt.owner, tt.namespace))
	}
}

func mustLoad(t *testing.T, doc string) *Matrix {
	t.Helper()
	m, err := Load(strings.NewReader(doc))
	require.NoError(t, err)
	return m
}

func TestResolve_Sample(t *testing.T) {
	m := mustLoad(t, sampleMatrix)

	resolved, err := Resolve(m, "ghcr.io", "acme", "ci")
	require.NoError(t, err)
	require.Len(t, resolved, 3)

	assert.Equal(t, []string{
		"ghcr.io/acme/ci:24.04-22",
		"ghcr.io/acme/ci:bleeding",
		"ghcr.io/acme/ci:latest",
	}, resolved[0].Tags.All())
	assert.Equal(t, []string{"ghcr.io/acme/ci:22.04-20"}, resolved[1].Tags.All())
	assert.Equal(t, []string{"ghcr.io/acme/ci:18-20.04"}, resolved[2].Tags.All())

	assert.Equal(t, map[string]bool{"runtime": true}, resolved[0].LTS)

	// The loaded matrix is not modified.
	assert.Equal(t, []string{"bleeding"}, m.Variants[0].Aliases)
}

func TestResolve_SchemaViolation(t *testing.T) {
	m := mustLoad(t, `
dimensions:
  runtime:
    allowed: ["18", "20"]
build_matrix:
  - name: a
    runtime: "18"
  - name: b
    runtime: "20.0"
`)

	_, err := Resolve(m, "r", "o", "ci")

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, 1, cfgErr.Entry)
	assert.Equal(t, "b", cfgErr.Variant)
	assert.Equal(t, "runtime", cfgErr.Field)
}

func TestResolve_SemanticMatch(t *testing.T) {
	m := mustLoad(t, `
dimensions:
  runtime:
    match: semantic
    allowed: ["18", "20"]
build_matrix:
  - name: b
    runtime: "20.0"
`)

	_, err := Resolve(m, "r", "o", "ci")
	assert.NoError(t, err)
}

func TestResolve_MissingSchemaDimension(t *testing.T) {
	m := mustLoad(t, `
dimensions:
  runtime:
    allowed: ["18"]
build_matrix:
  - name: a
    os: x
`)

	_, err := Resolve(m, "r", "o", "ci")
	assert.ErrorContains(t, err, "required by the schema")
}

func TestResolve_TagCollision(t *testing.T) {
	m := mustLoad(t, `
build_matrix:
  - name: a
    os: x
    aliases: [stable]
  - name: b
    os: y
    aliases: [stable]
`)

	_, err := Resolve(m, "r", "o", "ci")
	assert.ErrorContains(t, err, "also produced by variant a")
}

func TestResolve_InvalidCanonicalTag(t *testing.T) {
	m := mustLoad(t, "build_matrix:\n  - name: a\n    os: \"has space\"\n")

	_, err := Resolve(m, "r", "o", "ci")
	assert.ErrorContains(t, err, "not a valid tag")
}

func TestResolve_LatestAlias(t *testing.T) {
	tests := []struct {
		name      string
		doc       string
		wantOwner string
		wantErr   string
	}{
		{
			name: "numeric not lexical",
			doc: `latest_alias: v
build_matrix:
  - {name: a, v: "1.2.0"}
  - {name: b, v: "1.10.0"}
  - {name: c, v: "1.2.9"}
`,
			wantOwner: "b",
		},
		{
			name: "first wins ties",
			doc: `latest_alias: v
build_matrix:
  - {name: a, v: "20"}
  - {name: b, v: "20.0"}
`,
			wantOwner: "a",
		},
		{
			name: "explicit latest on holder",
			doc: `latest_alias: v
build_matrix:
  - {name: a, v: "2", aliases: [latest]}
  - {name: b, v: "1"}
`,
			wantOwner: "a",
		},
		{
			name: "explicit latest elsewhere",
			doc: `latest_alias: v
build_matrix:
  - {name: a, v: "2"}
  - {name: b, v: "1", aliases: [latest]}
`,
			wantErr: "conflicts with latest_alias",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolved, err := Resolve(mustLoad(t, tt.doc), "r", "o", "x")
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)

			var owners []string
			for _, rv := range resolved {
				for _, tag := range rv.Tags.Aliases {
					if tag == "r/o/x:latest" {
						owners = append(owners, rv.Name)
					}
				}
			}
			assert.Equal(t, []string{tt.wantOwner}, owners)
		})
	}
}
