package benchmarks

import (
	"testing"

	"github.com/randalmurphal/stategraph/pkg/stategraph/expr"
	"github.com/randalmurphal/stategraph/pkg/stategraph/template"
)

// BenchmarkExpr_Compile measures parsing a route condition.
func BenchmarkExpr_Compile(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if _, err := expr.Compile(`score >= 0.5 && (label == "urgent" || len(tags) > 2)`); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkExpr_Bool measures evaluating a compiled condition.
func BenchmarkExpr_Bool(b *testing.B) {
	e := expr.MustCompile(`score >= 0.5 && (label == "urgent" || len(tags) > 2)`)
	vars := map[string]any{"score": 0.7, "label": "normal", "tags": []any{"a", "b", "c"}}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if !e.Bool(vars) {
			b.Fatal("condition should hold")
		}
	}
}

// BenchmarkTemplate_Expand measures prompt expansion.
func BenchmarkTemplate_Expand(b *testing.B) {
	exp := template.Strict()
	vars := map[string]any{"user": map[string]any{"name": "ada"}, "task": "review the patch", "notes": []any{"a", "b"}}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := exp.Expand("Hello ${user.name}, please ${task}.\nNotes:\n${notes}", vars); err != nil {
			b.Fatal(err)
		}
	}
}
