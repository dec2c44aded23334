package types

import (
	"math"
	"strconv"
	"strings"
)

// ValueKind tags the concrete shape of a compile-time known value.
type ValueKind uint8

const (
	ValueInt ValueKind = iota + 1
	ValueFloat
	ValueBool
	ValueString
	ValueNull
	ValueArray
)

func (k ValueKind) String() string {
	switch k {
	case ValueInt:
		return "int"
	case ValueFloat:
		return "float"
	case ValueBool:
		return "bool"
	case ValueString:
		return "string"
	case ValueNull:
		return "null"
	case ValueArray:
		return "array"
	}
	return "unknown"
}

// Float wraps float64 so that values can be compared and hashed without
// NaN breaking reflexivity.
type Float float64

// Same reports whether both floats hold the same number, treating NaN as equal to NaN.
func (f Float) Same(o Float) bool {
	if f.IsNaN() || o.IsNaN() {
		return f.IsNaN() && o.IsNaN()
	}
	return f == o
}

func (f Float) IsNaN() bool { return math.IsNaN(float64(f)) }

// IsReal reports whether the float is a finite number.
func (f Float) IsReal() bool {
	v := float64(f)
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ArrayEntry is a single key/value pair of a known array. Keys are either
// ints or strings after normalization.
type ArrayEntry struct {
	Key   *Value
	Value *Value
}

// Value is a compile-time known PHP value. A nil *Value means the value is
// unknown and every method on a nil receiver returns an absent result.
type Value struct {
	kind    ValueKind
	i       int64
	f       Float
	b       bool
	s       string
	entries []ArrayEntry
}

func IntValue(i int64) *Value     { return &Value{kind: ValueInt, i: i} }
func FloatValue(f float64) *Value { return &Value{kind: ValueFloat, f: Float(f)} }
func BoolValue(b bool) *Value     { return &Value{kind: ValueBool, b: b} }
func StringValue(s string) *Value { return &Value{kind: ValueString, s: s} }
func NullValue() *Value           { return &Value{kind: ValueNull} }

// ArrayValue builds a known array. Keys are normalized the way PHP does
// when storing array keys; a nil key appends with the next integer key.
func ArrayValue(entries ...ArrayEntry) *Value {
	out := &Value{kind: ValueArray}
	var next int64
	for _, e := range entries {
		if e.Value == nil {
			return nil
		}
		key := e.Key
		if key == nil {
			key = IntValue(next)
		} else {
			key = NormalizeKey(key)
			if key == nil {
				return nil
			}
		}
		if key.kind == ValueInt && key.i >= next {
			next = key.i + 1
		}
		out.set(key, e.Value)
	}
	return out
}

func (v *Value) set(key, val *Value) {
	for i := range v.entries {
		if v.entries[i].Key.kind == key.kind && v.entries[i].Key.i == key.i && v.entries[i].Key.s == key.s {
			v.entries[i].Value = val
			return
		}
	}
	v.entries = append(v.entries, ArrayEntry{Key: key, Value: val})
}

// NormalizeKey converts a value into the key PHP would store it under.
func NormalizeKey(key *Value) *Value {
	if key == nil {
		return nil
	}
	switch key.kind {
	case ValueInt:
		return key
	case ValueString:
		if i, err := strconv.ParseInt(key.s, 10, 64); err == nil && strconv.FormatInt(i, 10) == key.s {
			return IntValue(i)
		}
		return key
	case ValueBool:
		if key.b {
			return IntValue(1)
		}
		return IntValue(0)
	case ValueNull:
		return StringValue("")
	case ValueFloat:
		if i, ok := key.AsInt(); ok {
			return IntValue(i)
		}
	}
	return nil
}

func (v *Value) Kind() ValueKind {
	if v == nil {
		return 0
	}
	return v.kind
}

// Entries returns the entries of a known array.
func (v *Value) Entries() []ArrayEntry {
	if v == nil || v.kind != ValueArray {
		return nil
	}
	return append([]ArrayEntry(nil), v.entries...)
}

// Lookup returns the element stored under key in a known array.
func (v *Value) Lookup(key *Value) *Value {
	if v == nil || v.kind != ValueArray {
		return nil
	}
	key = NormalizeKey(key)
	if key == nil {
		return nil
	}
	for _, e := range v.entries {
		if e.Key.kind == key.kind && e.Key.i == key.i && e.Key.s == key.s {
			return e.Value
		}
	}
	return nil
}

// Type returns the discrete type the value is an instance of.
func (v *Value) Type() DiscreteType {
	if v == nil {
		return Unknown
	}
	switch v.kind {
	case ValueInt:
		return Int
	case ValueFloat:
		return FloatType
	case ValueBool:
		return Bool
	case ValueString:
		return String
	case ValueNull:
		return Null
	case ValueArray:
		if len(v.entries) == 0 {
			return Array
		}
		var elem Union
		for _, e := range v.entries {
			elem = elem.Add(e.Value.Type())
		}
		return Vector(elem)
	}
	return Unknown
}

// AsInt coerces the value to an int following PHP's (int) cast.
func (v *Value) AsInt() (int64, bool) {
	if v == nil {
		return 0, false
	}
	switch v.kind {
	case ValueInt:
		return v.i, true
	case ValueFloat:
		f := float64(v.f)
		if !v.f.IsReal() || f >= math.MaxInt64 || f < math.MinInt64 {
			return 0, false
		}
		return int64(f), true
	case ValueBool:
		if v.b {
			return 1, true
		}
		return 0, true
	case ValueNull:
		return 0, true
	case ValueString:
		num := leadingNumber(v.s)
		if num == nil {
			return 0, true
		}
		return num.AsInt()
	}
	return 0, false
}

// AsFloat coerces the value to a float following PHP's (float) cast.
func (v *Value) AsFloat() (float64, bool) {
	if v == nil {
		return 0, false
	}
	switch v.kind {
	case ValueInt:
		return float64(v.i), true
	case ValueFloat:
		return float64(v.f), true
	case ValueBool, ValueNull:
		i, _ := v.AsInt()
		return float64(i), true
	case ValueString:
		num := leadingNumber(v.s)
		if num == nil {
			return 0, true
		}
		return num.AsFloat()
	}
	return 0, false
}

// AsBool coerces the value to a bool following PHP truthiness.
func (v *Value) AsBool() (bool, bool) {
	if v == nil {
		return false, false
	}
	switch v.kind {
	case ValueInt:
		return v.i != 0, true
	case ValueFloat:
		return v.f != 0 || v.f.IsNaN(), true
	case ValueBool:
		return v.b, true
	case ValueNull:
		return false, true
	case ValueString:
		return v.s != "" && v.s != "0", true
	case ValueArray:
		return len(v.entries) > 0, true
	}
	return false, false
}

// AsString coerces the value to a string following PHP's (string) cast.
// Arrays do not coerce.
func (v *Value) AsString() (string, bool) {
	if v == nil {
		return "", false
	}
	switch v.kind {
	case ValueInt:
		return strconv.FormatInt(v.i, 10), true
	case ValueFloat:
		return formatFloat(float64(v.f)), true
	case ValueBool:
		if v.b {
			return "1", true
		}
		return "", true
	case ValueNull:
		return "", true
	case ValueString:
		return v.s, true
	}
	return "", false
}

// AsNum coerces the value to an int or float the way arithmetic operators
// do. Non-numeric strings and arrays have no numeric value.
func (v *Value) AsNum() *Value {
	if v == nil {
		return nil
	}
	switch v.kind {
	case ValueInt, ValueFloat:
		return v
	case ValueBool, ValueNull:
		i, _ := v.AsInt()
		return IntValue(i)
	case ValueString:
		return ParseNumeric(v.s)
	}
	return nil
}

// IsNumericString reports whether s is a numeric string in the PHP 8 sense.
func IsNumericString(s string) bool {
	return ParseNumeric(s) != nil
}

// ParseNumeric parses a PHP 8 numeric string (surrounding whitespace allowed)
// into an int or float value.
func ParseNumeric(s string) *Value {
	trimmed := strings.Trim(s, " \t\n\r\v\f")
	if trimmed == "" {
		return nil
	}
	n := numericPrefixLen(trimmed)
	if n != len(trimmed) {
		return nil
	}
	return numberFromLiteral(trimmed)
}

func leadingNumber(s string) *Value {
	trimmed := strings.TrimLeft(s, " \t\n\r\v\f")
	n := numericPrefixLen(trimmed)
	if n == 0 {
		return nil
	}
	return numberFromLiteral(trimmed[:n])
}

func numericPrefixLen(s string) int {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		j := i + 1
		frac := 0
		for j < len(s) && s[j] >= '0' && s[j] <= '9' {
			j++
			frac++
		}
		if digits > 0 || frac > 0 {
			i = j
			digits += frac
		}
	}
	if digits == 0 {
		return 0
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		exp := 0
		for j < len(s) && s[j] >= '0' && s[j] <= '9' {
			j++
			exp++
		}
		if exp > 0 {
			i = j
		}
	}
	return i
}

func numberFromLiteral(s string) *Value {
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return IntValue(i)
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil && !isRangeErr(err) {
		return nil
	}
	return FloatValue(f)
}

func isRangeErr(err error) bool {
	ne, ok := err.(*strconv.NumError)
	return ok && ne.Err == strconv.ErrRange
}

// formatFloat renders a float the way PHP's echo does with precision=14.
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NAN"
	case math.IsInf(f, 1):
		return "INF"
	case math.IsInf(f, -1):
		return "-INF"
	}
	out := strconv.FormatFloat(f, 'G', 14, 64)
	idx := strings.IndexByte(out, 'E')
	if idx < 0 {
		return out
	}
	mantissa, exp := out[:idx], out[idx+1:]
	if !strings.Contains(mantissa, ".") {
		mantissa += ".0"
	}
	sign := "+"
	if exp[0] == '-' || exp[0] == '+' {
		if exp[0] == '-' {
			sign = "-"
		}
		exp = exp[1:]
	}
	exp = strings.TrimLeft(exp, "0")
	if exp == "" {
		exp = "0"
	}
	return mantissa + "E" + sign + exp
}

// IdenticalTo implements ===. The second result is false when either side is unknown.
func (v *Value) IdenticalTo(o *Value) (bool, bool) {
	if v == nil || o == nil {
		return false, false
	}
	if v.kind != o.kind {
		return false, true
	}
	switch v.kind {
	case ValueInt:
		return v.i == o.i, true
	case ValueFloat:
		// NAN === NAN is false in PHP.
		return v.f == o.f, true
	case ValueBool:
		return v.b == o.b, true
	case ValueString:
		return v.s == o.s, true
	case ValueNull:
		return true, true
	case ValueArray:
		if len(v.entries) != len(o.entries) {
			return false, true
		}
		for i := range v.entries {
			sameKey, _ := v.entries[i].Key.IdenticalTo(o.entries[i].Key)
			sameVal, ok := v.entries[i].Value.IdenticalTo(o.entries[i].Value)
			if !ok {
				return false, false
			}
			if !sameKey || !sameVal {
				return false, true
			}
		}
		return true, true
	}
	return false, false
}

// EqualTo implements == with PHP 8 comparison semantics. The second result
// is false when either side is unknown or the comparison is not modelled.
func (v *Value) EqualTo(o *Value) (bool, bool) {
	if v == nil || o == nil {
		return false, false
	}
	if v.kind == ValueArray && o.kind == ValueArray {
		if len(v.entries) != len(o.entries) {
			return false, true
		}
		for _, e := range v.entries {
			other := o.Lookup(e.Key)
			if other == nil {
				return false, true
			}
			eq, ok := e.Value.EqualTo(other)
			if !ok {
				return false, false
			}
			if !eq {
				return false, true
			}
		}
		return true, true
	}
	cmp, ok := v.Compare(o)
	if !ok {
		return false, false
	}
	return cmp == 0, true
}

// Compare performs PHP 8 loose three-way comparison (<=>).
func (v *Value) Compare(o *Value) (int, bool) {
	if v == nil || o == nil {
		return 0, false
	}
	// null <=> string compares "" with the string.
	if v.kind == ValueNull && o.kind == ValueString {
		return compareStrings("", o.s), true
	}
	if v.kind == ValueString && o.kind == ValueNull {
		return compareStrings(v.s, ""), true
	}
	if v.kind == ValueBool || o.kind == ValueBool || v.kind == ValueNull || o.kind == ValueNull {
		a, _ := v.AsBool()
		b, _ := o.AsBool()
		return compareBools(a, b), true
	}
	if v.kind == ValueArray || o.kind == ValueArray {
		if v.kind != o.kind {
			if v.kind == ValueArray {
				return 1, true
			}
			return -1, true
		}
		if len(v.entries) != len(o.entries) {
			return compareInts(int64(len(v.entries)), int64(len(o.entries))), true
		}
		return 0, false
	}
	if v.kind == ValueString && o.kind == ValueString {
		a, b := ParseNumeric(v.s), ParseNumeric(o.s)
		if a != nil && b != nil {
			return compareNumbers(a, b)
		}
		return compareStrings(v.s, o.s), true
	}
	if v.kind == ValueString || o.kind == ValueString {
		str, num, flip := v, o, false
		if o.kind == ValueString {
			str, num, flip = o, v, true
		}
		var cmp int
		if parsed := ParseNumeric(str.s); parsed != nil {
			c, ok := compareNumbers(parsed, num)
			if !ok {
				return 0, false
			}
			cmp = c
		} else {
			s, _ := num.AsString()
			cmp = compareStrings(str.s, s)
		}
		if flip {
			cmp = -cmp
		}
		return cmp, true
	}
	return compareNumbers(v, o)
}

func compareNumbers(a, b *Value) (int, bool) {
	if a.kind == ValueInt && b.kind == ValueInt {
		return compareInts(a.i, b.i), true
	}
	x, ok1 := a.AsFloat()
	y, ok2 := b.AsFloat()
	if !ok1 || !ok2 || math.IsNaN(x) || math.IsNaN(y) {
		return 0, false
	}
	switch {
	case x < y:
		return -1, true
	case x > y:
		return 1, true
	}
	return 0, true
}

func compareInts(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareStrings(a, b string) int {
	c := strings.Compare(a, b)
	if c < 0 {
		return -1
	}
	if c > 0 {
		return 1
	}
	return 0
}

func compareBools(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return 1
	}
	return -1
}

// String renders the value as PHP source.
func (v *Value) String() string {
	if v == nil {
		return "?"
	}
	switch v.kind {
	case ValueInt:
		return strconv.FormatInt(v.i, 10)
	case ValueFloat:
		s := formatFloat(float64(v.f))
		if v.f.IsReal() && !strings.ContainsAny(s, ".E") {
			s += ".0"
		}
		return s
	case ValueBool:
		if v.b {
			return "true"
		}
		return "false"
	case ValueNull:
		return "null"
	case ValueString:
		return "'" + strings.ReplaceAll(strings.ReplaceAll(v.s, `\`, `\\`), "'", `\'`) + "'"
	case ValueArray:
		parts := make([]string, 0, len(v.entries))
		for _, e := range v.entries {
			parts = append(parts, e.Key.String()+" => "+e.Value.String())
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return "?"
}
