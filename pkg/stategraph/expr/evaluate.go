package expr

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Expr is a compiled expression. It is immutable and safe for concurrent
// use.
type Expr struct {
	src  string
	root node
}

// Compile parses src.
func Compile(src string) (*Expr, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, &SyntaxError{Msg: "empty expression"}
	}
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("unexpected %q", t.text)}
	}
	return &Expr{src: src, root: root}, nil
}

// MustCompile is Compile that panics on error.
func MustCompile(src string) *Expr {
	e, err := Compile(src)
	if err != nil {
		panic("expr: " + err.Error())
	}
	return e
}

// String returns the source text.
func (e *Expr) String() string {
	return e.src
}

// Value evaluates the expression and returns its raw result.
func (e *Expr) Value(vars map[string]any) any {
	return e.root.eval(vars)
}

// Bool evaluates the expression as a condition.
func (e *Expr) Bool(vars map[string]any) bool {
	return IsTruthy(e.root.eval(vars))
}

// Eval compiles and evaluates src as a condition.
func Eval(src string, vars map[string]any) (bool, error) {
	e, err := Compile(src)
	if err != nil {
		return false, err
	}
	return e.Bool(vars), nil
}

func (n literal) eval(map[string]any) any { return n.v }

func (n path) eval(vars map[string]any) any {
	var cur any = vars
	for _, part := range n.parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		if cur, ok = m[part]; !ok {
			return nil
		}
	}
	return cur
}

func (n length) eval(vars map[string]any) any {
	v := n.arg.eval(vars)
	if v == nil {
		return int64(0)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.String:
		return int64(rv.Len())
	default:
		return int64(0)
	}
}

func (n not) eval(vars map[string]any) any {
	return !IsTruthy(n.x.eval(vars))
}

func (n logical) eval(vars map[string]any) any {
	l := IsTruthy(n.left.eval(vars))
	if n.and {
		return l && IsTruthy(n.right.eval(vars))
	}
	return l || IsTruthy(n.right.eval(vars))
}

func (n compare) eval(vars map[string]any) any {
	l, r := n.left.eval(vars), n.right.eval(vars)
	switch n.op {
	case "==":
		return equal(l, r)
	case "!=":
		return !equal(l, r)
	case "<":
		return order(l, r) < 0
	case ">":
		return order(l, r) > 0
	case "<=":
		return order(l, r) <= 0
	case ">=":
		return order(l, r) >= 0
	case "contains":
		return contains(l, r)
	case "in":
		return contains(r, l)
	}
	return false
}

func equal(l, r any) bool {
	if l == nil || r == nil {
		return l == nil && r == nil
	}
	lf, lok := number(l)
	rf, rok := number(r)
	if lok && rok {
		return lf == rf
	}
	return text(l) == text(r)
}

func order(l, r any) int {
	lf, lok := ToFloat64(l)
	rf, rok := ToFloat64(r)
	if lok && rok {
		switch {
		case lf < rf:
			return -1
		case lf > rf:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(text(l), text(r))
}

func contains(container, item any) bool {
	switch c := container.(type) {
	case nil:
		return false
	case string:
		return strings.Contains(c, text(item))
	case []string:
		for _, s := range c {
			if s == text(item) {
				return true
			}
		}
		return false
	case []any:
		for _, v := range c {
			if equal(v, item) {
				return true
			}
		}
		return false
	case map[string]any:
		_, ok := c[text(item)]
		return ok
	default:
		return strings.Contains(text(c), text(item))
	}
}

func text(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprintf("%v", v)
	}
}

// number reports numeric values without parsing strings.
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// ToFloat64 converts numbers and numeric strings to float64.
func ToFloat64(v any) (float64, bool) {
	if f, ok := number(v); ok {
		return f, true
	}
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return f, err == nil
	}
	return 0, false
}

// IsTruthy reports whether v counts as true: nil, false, zero numbers and
// empty strings, sequences and maps are false.
func IsTruthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	}
	if f, ok := number(v); ok {
		return f != 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	}
	return true
}
