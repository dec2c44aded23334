package docblock

import (
	"fmt"
	"strings"
)

// ExprKind tags a node of a parsed doc-comment type expression.
type ExprKind uint8

const (
	ExprName ExprKind = iota + 1
	ExprUnion
	ExprIntersection
	ExprNullable
	ExprArray
	ExprGeneric
	ExprLiteral
)

// TypeExpr is a parsed doc-comment type such as `?Foo|int[]` or `array<string, Foo>`.
//
// For ExprArray, Items holds the element type. For ExprGeneric, Name is the
// container and Items the parameters.
type TypeExpr struct {
	Kind  ExprKind
	Name  string
	Items []TypeExpr
}

func (e TypeExpr) String() string {
	switch e.Kind {
	case ExprName, ExprLiteral:
		return e.Name
	case ExprNullable:
		return "?" + e.Items[0].String()
	case ExprArray:
		inner := e.Items[0].String()
		if e.Items[0].Kind == ExprUnion || e.Items[0].Kind == ExprIntersection {
			inner = "(" + inner + ")"
		}
		return inner + "[]"
	case ExprUnion, ExprIntersection:
		sep := "|"
		if e.Kind == ExprIntersection {
			sep = "&"
		}
		parts := make([]string, 0, len(e.Items))
		for _, item := range e.Items {
			parts = append(parts, item.String())
		}
		return strings.Join(parts, sep)
	case ExprGeneric:
		parts := make([]string, 0, len(e.Items))
		for _, item := range e.Items {
			parts = append(parts, item.String())
		}
		return e.Name + "<" + strings.Join(parts, ", ") + ">"
	}
	return ""
}

// ParseType parses a doc-comment type expression.
func ParseType(src string) (TypeExpr, error) {
	p := &typeParser{toks: tokenizeType(src)}
	if len(p.toks) == 0 {
		return TypeExpr{}, fmt.Errorf("empty type expression")
	}
	expr, err := p.parseUnion()
	if err != nil {
		return TypeExpr{}, err
	}
	if p.pos < len(p.toks) {
		return TypeExpr{}, fmt.Errorf("unexpected %q in type expression %q", p.toks[p.pos], src)
	}
	return expr, nil
}

func tokenizeType(src string) []string {
	var toks []string
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case strings.IndexByte("|&?[]<>,(){}:", c) >= 0:
			toks = append(toks, string(c))
			i++
		case c == '\'' || c == '"':
			j := i + 1
			for j < len(src) && src[j] != c {
				j++
			}
			if j < len(src) {
				j++
			}
			toks = append(toks, src[i:j])
			i = j
		default:
			j := i
			for j < len(src) && strings.IndexByte("|&?[]<>,(){}: \t'\"", src[j]) < 0 {
				j++
			}
			toks = append(toks, src[i:j])
			i = j
		}
	}
	return toks
}

type typeParser struct {
	toks []string
	pos  int
}

func (p *typeParser) peek() string {
	if p.pos < len(p.toks) {
		return p.toks[p.pos]
	}
	return ""
}

func (p *typeParser) next() string {
	tok := p.peek()
	p.pos++
	return tok
}

func (p *typeParser) parseUnion() (TypeExpr, error) {
	first, err := p.parseIntersection()
	if err != nil {
		return TypeExpr{}, err
	}
	if p.peek() != "|" {
		return first, nil
	}
	items := []TypeExpr{first}
	for p.peek() == "|" {
		p.next()
		item, err := p.parseIntersection()
		if err != nil {
			return TypeExpr{}, err
		}
		items = append(items, item)
	}
	return TypeExpr{Kind: ExprUnion, Items: items}, nil
}

func (p *typeParser) parseIntersection() (TypeExpr, error) {
	first, err := p.parsePostfix()
	if err != nil {
		return TypeExpr{}, err
	}
	if p.peek() != "&" {
		return first, nil
	}
	items := []TypeExpr{first}
	for p.peek() == "&" {
		p.next()
		item, err := p.parsePostfix()
		if err != nil {
			return TypeExpr{}, err
		}
		items = append(items, item)
	}
	return TypeExpr{Kind: ExprIntersection, Items: items}, nil
}

func (p *typeParser) parsePostfix() (TypeExpr, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return TypeExpr{}, err
	}
	for p.peek() == "[" {
		p.next()
		if p.next() != "]" {
			return TypeExpr{}, fmt.Errorf("expected ] in array type")
		}
		expr = TypeExpr{Kind: ExprArray, Items: []TypeExpr{expr}}
	}
	return expr, nil
}

func (p *typeParser) parsePrimary() (TypeExpr, error) {
	tok := p.next()
	switch tok {
	case "":
		return TypeExpr{}, fmt.Errorf("unexpected end of type expression")
	case "?":
		inner, err := p.parsePostfix()
		if err != nil {
			return TypeExpr{}, err
		}
		return TypeExpr{Kind: ExprNullable, Items: []TypeExpr{inner}}, nil
	case "(":
		inner, err := p.parseUnion()
		if err != nil {
			return TypeExpr{}, err
		}
		if p.next() != ")" {
			return TypeExpr{}, fmt.Errorf("expected ) in type expression")
		}
		return inner, nil
	case "|", "&", "[", "]", "<", ">", ",", ")", "{", "}", ":":
		return TypeExpr{}, fmt.Errorf("unexpected %q in type expression", tok)
	}

	if tok[0] == '\'' || tok[0] == '"' || (tok[0] >= '0' && tok[0] <= '9') || tok[0] == '-' {
		return TypeExpr{Kind: ExprLiteral, Name: tok}, nil
	}

	expr := TypeExpr{Kind: ExprName, Name: tok}
	switch p.peek() {
	case "<":
		p.next()
		var params []TypeExpr
		for {
			param, err := p.parseUnion()
			if err != nil {
				return TypeExpr{}, err
			}
			params = append(params, param)
			sep := p.next()
			if sep == ">" {
				break
			}
			if sep != "," {
				return TypeExpr{}, fmt.Errorf("expected , or > in generic type %s", tok)
			}
		}
		expr = TypeExpr{Kind: ExprGeneric, Name: tok, Items: params}
	case "{":
		// array{key: type} shapes are skipped and treated as plain arrays.
		depth := 0
		for p.pos < len(p.toks) {
			t := p.next()
			if t == "{" {
				depth++
			} else if t == "}" {
				depth--
				if depth == 0 {
					break
				}
			}
		}
	}
	return expr, nil
}
