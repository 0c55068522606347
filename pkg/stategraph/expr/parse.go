package expr

import (
	"fmt"
	"strconv"
	"strings"
)

// SyntaxError reports a malformed expression.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at %d: %s", e.Pos, e.Msg)
}

type node interface {
	eval(vars map[string]any) any
}

type (
	literal struct{ v any }
	path    struct{ parts []string }
	length  struct{ arg node }
	not     struct{ x node }
	logical struct {
		and         bool
		left, right node
	}
	compare struct {
		op          string
		left, right node
	}
)

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

// keyword reports whether the next token is one of words, consuming it.
func (p *parser) keyword(words ...string) bool {
	t := p.peek()
	if t.kind != tokIdent && t.kind != tokOp {
		return false
	}
	for _, w := range words {
		if t.text == w {
			p.pos++
			return true
		}
	}
	return false
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.keyword("or", "||") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = logical{left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.keyword("and", "&&") {
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = logical{and: true, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	if p.keyword("not", "!") {
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return not{x: x}, nil
	}
	return p.parseCompare()
}

var compareOps = map[string]bool{
	"==": true, "!=": true, "<": true, ">": true, "<=": true, ">=": true,
	"contains": true, "in": true,
}

func (p *parser) parseCompare() (node, error) {
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	t := p.peek()
	if (t.kind == tokOp || t.kind == tokIdent) && compareOps[t.text] {
		p.next()
		right, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return compare{op: t.text, left: left, right: right}, nil
	}
	return left, nil
}

func (p *parser) parseOperand() (node, error) {
	t := p.next()
	switch t.kind {
	case tokString:
		return literal{t.text}, nil
	case tokNumber:
		if i, err := strconv.ParseInt(t.text, 10, 64); err == nil {
			return literal{i}, nil
		}
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("bad number %q", t.text)}
		}
		return literal{f}, nil
	case tokLParen:
		x, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if r := p.next(); r.kind != tokRParen {
			return nil, &SyntaxError{Pos: r.pos, Msg: "expected )"}
		}
		return x, nil
	case tokIdent:
		switch strings.ToLower(t.text) {
		case "true":
			return literal{true}, nil
		case "false":
			return literal{false}, nil
		case "null", "nil":
			return literal{nil}, nil
		case "len":
			if p.peek().kind == tokLParen {
				p.next()
				arg, err := p.parseOperand()
				if err != nil {
					return nil, err
				}
				if r := p.next(); r.kind != tokRParen {
					return nil, &SyntaxError{Pos: r.pos, Msg: "expected ) after len argument"}
				}
				return length{arg: arg}, nil
			}
		}
		if compareOps[t.text] || t.text == "and" || t.text == "or" || t.text == "not" {
			return nil, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("unexpected %q", t.text)}
		}
		return path{parts: strings.Split(t.text, ".")}, nil
	case tokEOF:
		return nil, &SyntaxError{Pos: t.pos, Msg: "unexpected end of expression"}
	default:
		return nil, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("unexpected %q", t.text)}
	}
}
