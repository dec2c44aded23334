package analysis

import (
	"math/big"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shinyvision/phpinfer/internal/syntax"
	"github.com/shinyvision/phpinfer/internal/types"
)

func evalInteger(s *State, n syntax.Node) Eval {
	v := parseIntLiteral(n.Text())
	if v == nil {
		s.missing("integer literal", n)
		return typed(types.Int)
	}
	return known(v)
}

// parseIntLiteral handles decimal, hex, octal and binary spellings with
// digit separators. Literals beyond int64 become floats.
func parseIntLiteral(text string) *types.Value {
	text = strings.ReplaceAll(strings.TrimSpace(text), "_", "")
	if text == "" {
		return nil
	}
	base, digits := 10, text
	lower := strings.ToLower(text)
	switch {
	case strings.HasPrefix(lower, "0x"):
		base, digits = 16, text[2:]
	case strings.HasPrefix(lower, "0b"):
		base, digits = 2, text[2:]
	case strings.HasPrefix(lower, "0o"):
		base, digits = 8, text[2:]
	case len(text) > 1 && text[0] == '0':
		base, digits = 8, text[1:]
	}
	if i, err := strconv.ParseInt(digits, base, 64); err == nil {
		return types.IntValue(i)
	}
	n, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return nil
	}
	f, _ := new(big.Float).SetInt(n).Float64()
	return types.FloatValue(f)
}

func evalFloat(s *State, n syntax.Node) Eval {
	f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(n.Text()), "_", ""), 64)
	if err != nil && !isRangeError(err) {
		s.missing("float literal", n)
		return typed(types.FloatType)
	}
	return known(types.FloatValue(f))
}

func isRangeError(err error) bool {
	ne, ok := err.(*strconv.NumError)
	return ok && ne.Err == strconv.ErrRange
}

func evalBoolean(s *State, n syntax.Node) Eval {
	switch strings.ToLower(strings.TrimSpace(n.Text())) {
	case "true":
		return known(types.BoolValue(true))
	case "false":
		return known(types.BoolValue(false))
	}
	s.missing("boolean literal", n)
	return typed(types.Bool)
}

func evalNull(*State, syntax.Node) Eval {
	return known(types.NullValue())
}

// evalString handles single-quoted strings and double-quoted ones without
// interpolation.
func evalString(s *State, n syntax.Node) Eval {
	text := strings.TrimSpace(n.Text())
	if len(text) > 0 && (text[0] == 'b' || text[0] == 'B') {
		text = text[1:]
	}
	if len(text) < 2 {
		s.missing("string literal", n)
		return typed(types.String)
	}
	switch text[0] {
	case '\'':
		return known(types.StringValue(unquoteSingle(text[1 : len(text)-1])))
	case '"':
		return evalEncapsed(s, n)
	}
	s.missing("string literal", n)
	return typed(types.String)
}

var literalParts = map[string]struct{}{
	"string_content":  {},
	"string_value":    {},
	"escape_sequence": {},
	"string":          {},
}

// evalEncapsed evaluates a double-quoted string. Interpolated parts are read
// and make the value unknown.
func evalEncapsed(s *State, n syntax.Node) Eval {
	interpolated := false
	for _, child := range n.Children() {
		if _, ok := literalParts[child.Kind()]; ok {
			continue
		}
		interpolated = true
		s.evalExpr(child)
	}
	if interpolated {
		return typed(types.String)
	}
	text := strings.TrimSpace(n.Text())
	if len(text) > 0 && (text[0] == 'b' || text[0] == 'B') {
		text = text[1:]
	}
	if len(text) < 2 || text[0] != '"' {
		return typed(types.String)
	}
	return known(types.StringValue(unquoteDouble(text[1 : len(text)-1])))
}

// evalHeredoc reads interpolated variables; the value is left unknown.
func evalHeredoc(s *State, n syntax.Node) Eval {
	if n.Kind() == "heredoc" {
		syntax.Walk(n, func(c syntax.Node) bool {
			if c == n {
				return true
			}
			switch c.Kind() {
			case "variable_name", "member_access_expression", "subscript_expression":
				s.evalExpr(c)
				return false
			}
			return true
		})
	}
	return typed(types.String)
}

func unquoteSingle(body string) string {
	if !strings.Contains(body, "\\") {
		return body
	}
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		if body[i] == '\\' && i+1 < len(body) && (body[i+1] == '\\' || body[i+1] == '\'') {
			i++
		}
		b.WriteByte(body[i])
	}
	return b.String()
}

var simpleEscapes = map[byte]byte{
	'n':  '\n',
	't':  '\t',
	'r':  '\r',
	'v':  '\v',
	'e':  0x1b,
	'f':  '\f',
	'\\': '\\',
	'$':  '$',
	'"':  '"',
}

func unquoteDouble(body string) string {
	if !strings.Contains(body, "\\") {
		return body
	}
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' || i+1 >= len(body) {
			b.WriteByte(c)
			continue
		}
		next := body[i+1]
		if r, ok := simpleEscapes[next]; ok {
			b.WriteByte(r)
			i++
			continue
		}
		switch {
		case next >= '0' && next <= '7':
			j := i + 1
			for j < len(body) && j < i+4 && body[j] >= '0' && body[j] <= '7' {
				j++
			}
			v, _ := strconv.ParseUint(body[i+1:j], 8, 16)
			b.WriteByte(byte(v))
			i = j - 1
		case next == 'x' && i+2 < len(body) && isHex(body[i+2]):
			j := i + 2
			for j < len(body) && j < i+4 && isHex(body[j]) {
				j++
			}
			v, _ := strconv.ParseUint(body[i+2:j], 16, 8)
			b.WriteByte(byte(v))
			i = j - 1
		case next == 'u' && i+2 < len(body) && body[i+2] == '{':
			end := strings.IndexByte(body[i+3:], '}')
			if end < 0 {
				b.WriteByte(c)
				continue
			}
			v, err := strconv.ParseUint(body[i+3:i+3+end], 16, 32)
			if err != nil || !utf8.ValidRune(rune(v)) {
				b.WriteByte(c)
				continue
			}
			b.WriteRune(rune(v))
			i += 3 + end
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// magicConstant evaluates __LINE__ and friends.
func (s *State) magicConstant(n syntax.Node, name string) (Eval, bool) {
	switch strings.ToUpper(name) {
	case "__LINE__":
		return known(types.IntValue(int64(n.Range().StartLine))), true
	case "__FILE__":
		return s.stringOrUnknown(s.opts.File), true
	case "__DIR__":
		dir := s.opts.File
		if i := strings.LastIndexAny(dir, "/\\"); i >= 0 {
			dir = dir[:i]
		} else {
			dir = ""
		}
		return s.stringOrUnknown(dir), true
	case "__NAMESPACE__":
		return known(types.StringValue(s.namespace)), true
	case "__CLASS__":
		return known(types.StringValue(s.class)), true
	case "__FUNCTION__", "__METHOD__":
		if s.fn == nil {
			return known(types.StringValue("")), true
		}
		return typed(types.String), true
	case "__TRAIT__":
		return typed(types.String), true
	}
	return Eval{}, false
}

func (s *State) stringOrUnknown(v string) Eval {
	if v == "" {
		return typed(types.String)
	}
	return known(types.StringValue(v))
}
