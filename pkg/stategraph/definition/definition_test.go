package definition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/stategraph/pkg/stategraph"
	"github.com/randalmurphal/stategraph/pkg/stategraph/config"
)

func TestParseFile(t *testing.T) {
	def, err := ParseFile("testdata/feedback.yaml")
	require.NoError(t, err)

	assert.Equal(t, "feedback", def.Name)
	assert.Equal(t, 10, def.MaxIterations)
	assert.Equal(t, []KeyDef{
		{Name: "label", Merge: "replace"},
		{Name: "notes", Merge: "append"},
		{Name: "reply", Merge: "replace"},
		{Name: "text", Merge: "replace"},
	}, def.Keys)

	require.Len(t, def.Nodes, 3)
	assert.Equal(t, "classifier", def.Nodes[0].Type)
	assert.Equal(t, "nodes.classify", def.Nodes[0].Config.Path())
	assert.Equal(t, "text", def.Nodes[0].Config.String("input_key", ""))

	assert.Equal(t, EdgeDef{From: stategraph.START, To: "classify"}, def.Edges[0])
	assert.Equal(t, EdgeDef{From: "thank", To: stategraph.END}, def.Edges[1])

	require.Len(t, def.Conditional, 1)
	assert.Equal(t, "label", def.Conditional[0].Key)
	assert.Equal(t, RouteDef{Label: "negative feedback", To: "apologize"}, def.Conditional[0].Routes[1])
}

func TestParse_WhenRoutes(t *testing.T) {
	def, err := ParseFile("testdata/counter.yaml")
	require.NoError(t, err)

	assert.Equal(t, []KeyDef{{Name: "total", Merge: "sum"}, {Name: "trail", Merge: "append"}}, def.Keys)
	assert.Equal(t, []RouteDef{
		{Label: "continue", To: "work", When: "total < 15"},
		{Label: "done", To: stategraph.END},
	}, def.Conditional[0].Routes)
}

func TestParse_MergeBlockForm(t *testing.T) {
	def, err := Parse([]byte(`
keys:
  total: {merge: max}
nodes: []
`))
	require.NoError(t, err)
	assert.Equal(t, []KeyDef{{Name: "total", Merge: "max"}}, def.Keys)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"no keys", `nodes: []`, "keys: required value missing"},
		{"key without merge", "keys:\n  a: {}\n", "keys.a: required value missing"},
		{"node without id", "keys: {a: replace}\nnodes:\n  - type: set\n", "nodes[0].id: required value missing"},
		{"node without type", "keys: {a: replace}\nnodes:\n  - id: x\n", "nodes[0].type: required value missing"},
		{"reserved id", "keys: {a: replace}\nnodes:\n  - {id: end, type: set}\n", `nodes[0].id: "end" is reserved`},
		{"nodes not a list", "keys: {a: replace}\nnodes: 3\n", "nodes: wrong value type"},
		{"edge without to", "keys: {a: replace}\nedges:\n  - from: start\n", "edges[0].to: required value missing"},
		{"routes missing", "keys: {a: replace}\nconditional_edges:\n  - from: x\n", "conditional_edges[0].routes: required value missing"},
		{
			"duplicate label",
			"keys: {a: replace}\nconditional_edges:\n  - from: x\n    key: a\n    routes:\n      - {label: l, to: y}\n      - {label: l, to: z}\n",
			`duplicate label "l"`,
		},
		{
			"two fallbacks",
			"keys: {a: replace}\nconditional_edges:\n  - from: x\n    routes:\n      - {label: l, to: y}\n      - {label: m, to: z}\n",
			"more than one route without a when condition",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidDefinition)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestParse_BadYAML(t *testing.T) {
	_, err := Parse([]byte("keys: [unclosed"))
	assert.ErrorContains(t, err, "parse yaml")
}

func TestDecode_FromConfig(t *testing.T) {
	def, err := Decode(config.New(map[string]any{
		"keys":  map[string]any{"a": "replace"},
		"nodes": []any{map[string]any{"id": "n", "type": "set"}},
	}))
	require.NoError(t, err)
	assert.Empty(t, def.Nodes[0].Config.Keys())
	assert.Equal(t, "nodes.n", def.Nodes[0].Config.Path())
}
