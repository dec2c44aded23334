package symbols

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shinyvision/phpinfer/internal/types"
)

type builtinClass struct {
	name       string
	kind       ClassKind
	extends    []string
	implements []string
}

var builtinClasses = []builtinClass{
	{name: "stdClass", kind: KindClass},
	{name: "Traversable", kind: KindInterface},
	{name: "Iterator", kind: KindInterface, extends: []string{"Traversable"}},
	{name: "IteratorAggregate", kind: KindInterface, extends: []string{"Traversable"}},
	{name: "ArrayAccess", kind: KindInterface},
	{name: "Countable", kind: KindInterface},
	{name: "Stringable", kind: KindInterface},
	{name: "JsonSerializable", kind: KindInterface},
	{name: "Throwable", kind: KindInterface, extends: []string{"Stringable"}},
	{name: "UnitEnum", kind: KindInterface},
	{name: "BackedEnum", kind: KindInterface, extends: []string{"UnitEnum"}},
	{name: "Exception", kind: KindClass, implements: []string{"Throwable"}},
	{name: "Error", kind: KindClass, implements: []string{"Throwable"}},
	{name: "ErrorException", kind: KindClass, extends: []string{"Exception"}},
	{name: "TypeError", kind: KindClass, extends: []string{"Error"}},
	{name: "ValueError", kind: KindClass, extends: []string{"Error"}},
	{name: "ArithmeticError", kind: KindClass, extends: []string{"Error"}},
	{name: "DivisionByZeroError", kind: KindClass, extends: []string{"ArithmeticError"}},
	{name: "RuntimeException", kind: KindClass, extends: []string{"Exception"}},
	{name: "LogicException", kind: KindClass, extends: []string{"Exception"}},
	{name: "InvalidArgumentException", kind: KindClass, extends: []string{"LogicException"}},
	{name: "DomainException", kind: KindClass, extends: []string{"LogicException"}},
	{name: "LengthException", kind: KindClass, extends: []string{"LogicException"}},
	{name: "OutOfRangeException", kind: KindClass, extends: []string{"LogicException"}},
	{name: "OutOfBoundsException", kind: KindClass, extends: []string{"RuntimeException"}},
	{name: "UnexpectedValueException", kind: KindClass, extends: []string{"RuntimeException"}},
	{name: "JsonException", kind: KindClass, extends: []string{"Exception"}},
	{name: "Closure", kind: KindClass},
	{name: "Generator", kind: KindClass, implements: []string{"Iterator"}},
	{name: "ArrayObject", kind: KindClass, implements: []string{"IteratorAggregate", "ArrayAccess", "Countable"}},
	{name: "ArrayIterator", kind: KindClass, implements: []string{"Iterator", "ArrayAccess", "Countable"}},
	{name: "DateTimeInterface", kind: KindInterface},
	{name: "DateTime", kind: KindClass, implements: []string{"DateTimeInterface"}},
	{name: "DateTimeImmutable", kind: KindClass, implements: []string{"DateTimeInterface"}},
	{name: "DateInterval", kind: KindClass},
	{name: "SplObjectStorage", kind: KindClass, implements: []string{"Countable", "Iterator", "ArrayAccess"}},
}

func u(ts ...types.DiscreteType) types.Union { return types.NewUnion(ts...) }

var builtinFunctions = map[string]types.Union{
	"strlen":            u(types.Int),
	"count":             u(types.Int),
	"sizeof":            u(types.Int),
	"intval":            u(types.Int),
	"floatval":          u(types.FloatType),
	"strval":            u(types.String),
	"boolval":           u(types.Bool),
	"trim":              u(types.String),
	"ltrim":             u(types.String),
	"rtrim":             u(types.String),
	"strtolower":        u(types.String),
	"strtoupper":        u(types.String),
	"ucfirst":           u(types.String),
	"lcfirst":           u(types.String),
	"str_repeat":        u(types.String),
	"substr":            u(types.String),
	"sprintf":           u(types.String),
	"implode":           u(types.String),
	"join":              u(types.String),
	"explode":           u(types.Vector(u(types.String))),
	"str_split":         u(types.Vector(u(types.String))),
	"strpos":            u(types.Int, types.Bool),
	"stripos":           u(types.Int, types.Bool),
	"str_contains":      u(types.Bool),
	"str_starts_with":   u(types.Bool),
	"str_ends_with":     u(types.Bool),
	"str_replace":       u(types.String, types.Array),
	"printf":            u(types.Int),
	"number_format":     u(types.String),
	"json_encode":       u(types.String, types.Bool),
	"json_decode":       u(types.Mixed),
	"in_array":          u(types.Bool),
	"array_key_exists":  u(types.Bool),
	"array_keys":        u(types.Array),
	"array_values":      u(types.Array),
	"array_merge":       u(types.Array),
	"array_map":         u(types.Array),
	"array_filter":      u(types.Array),
	"array_slice":       u(types.Array),
	"array_combine":     u(types.Array),
	"array_flip":        u(types.Array),
	"array_unique":      u(types.Array),
	"array_reverse":     u(types.Array),
	"array_search":      u(types.Int, types.String, types.Bool),
	"array_sum":         u(types.Int, types.FloatType),
	"range":             u(types.Array),
	"compact":           u(types.Array),
	"is_int":            u(types.Bool),
	"is_integer":        u(types.Bool),
	"is_float":          u(types.Bool),
	"is_string":         u(types.Bool),
	"is_bool":           u(types.Bool),
	"is_array":          u(types.Bool),
	"is_null":           u(types.Bool),
	"is_numeric":        u(types.Bool),
	"is_object":         u(types.Bool),
	"is_callable":       u(types.Bool),
	"function_exists":   u(types.Bool),
	"class_exists":      u(types.Bool),
	"method_exists":     u(types.Bool),
	"defined":           u(types.Bool),
	"define":            u(types.Bool),
	"time":              u(types.Int),
	"microtime":         u(types.String, types.FloatType),
	"date":              u(types.String),
	"rand":              u(types.Int),
	"mt_rand":           u(types.Int),
	"random_int":        u(types.Int),
	"abs":               u(types.Int, types.FloatType),
	"floor":             u(types.FloatType),
	"ceil":              u(types.FloatType),
	"round":             u(types.FloatType),
	"sqrt":              u(types.FloatType),
	"pow":               u(types.Int, types.FloatType),
	"max":               u(types.Mixed),
	"min":               u(types.Mixed),
	"var_dump":          u(types.Void),
	"var_export":        u(types.String, types.Null),
	"print_r":           u(types.String, types.Bool),
	"file_get_contents": u(types.String, types.Bool),
	"file_put_contents": u(types.Int, types.Bool),
	"file_exists":       u(types.Bool),
	"is_file":           u(types.Bool),
	"is_dir":            u(types.Bool),
	"dirname":           u(types.String),
	"basename":          u(types.String),
	"realpath":          u(types.String, types.Bool),
	"getenv":            u(types.String, types.Bool, types.Array),
	"spl_object_id":     u(types.Int),
	"spl_object_hash":   u(types.String),
	"get_class":         u(types.String),
	"gettype":           u(types.String),
	"serialize":         u(types.String),
	"unserialize":       u(types.Mixed),
	"preg_match":        u(types.Int, types.Bool),
	"preg_replace":      u(types.String, types.Array, types.Null),
	"preg_split":        u(types.Array, types.Bool),
	"md5":               u(types.String),
	"sha1":              u(types.String),
	"hash":              u(types.String),
	"base64_encode":     u(types.String),
	"base64_decode":     u(types.String, types.Bool),
	"uniqid":            u(types.String),
	"array_pop":         u(types.Mixed),
	"array_shift":       u(types.Mixed),
	"array_push":        u(types.Int),
	"array_unshift":     u(types.Int),
	"usort":             u(types.Bool),
	"sort":              u(types.Bool),
	"ksort":             u(types.Bool),
	"htmlspecialchars":  u(types.String),
	"urlencode":         u(types.String),
	"http_build_query":  u(types.String),
	"iterator_to_array": u(types.Array),
}

var builtinConstants = map[string]*types.Value{
	"PHP_INT_MAX":         types.IntValue(math.MaxInt64),
	"PHP_INT_MIN":         types.IntValue(math.MinInt64),
	"PHP_INT_SIZE":        types.IntValue(8),
	"PHP_FLOAT_EPSILON":   types.FloatValue(2.220446049250313e-16),
	"PHP_FLOAT_MAX":       types.FloatValue(math.MaxFloat64),
	"PHP_EOL":             types.StringValue("\n"),
	"DIRECTORY_SEPARATOR": types.StringValue("/"),
	"PATH_SEPARATOR":      types.StringValue(":"),
	"M_PI":                types.FloatValue(math.Pi),
	"M_E":                 types.FloatValue(math.E),
	"NAN":                 types.FloatValue(math.NaN()),
	"INF":                 types.FloatValue(math.Inf(1)),
	"E_ERROR":             types.IntValue(1),
	"E_WARNING":           types.IntValue(2),
	"E_PARSE":             types.IntValue(4),
	"E_NOTICE":            types.IntValue(8),
	"E_DEPRECATED":        types.IntValue(8192),
	"E_ALL":               types.IntValue(32767),
	"SORT_REGULAR":        types.IntValue(0),
	"SORT_NUMERIC":        types.IntValue(1),
	"SORT_STRING":         types.IntValue(2),
	"COUNT_RECURSIVE":     types.IntValue(1),
	"JSON_THROW_ON_ERROR": types.IntValue(4194304),
	"JSON_PRETTY_PRINT":   types.IntValue(128),
	"ENT_QUOTES":          types.IntValue(3),
}

// Builtin constants whose value depends on the runtime.
var builtinOpaqueConstants = map[string]types.Union{
	"PHP_VERSION":   u(types.String),
	"PHP_OS":        u(types.String),
	"PHP_OS_FAMILY": u(types.String),
	"STDIN":         u(types.Resource),
	"STDOUT":        u(types.Resource),
	"STDERR":        u(types.Resource),
}

func seedBuiltins(s *Store) {
	for _, b := range builtinClasses {
		c := NewClassData(b.name, b.name, b.kind)
		c.Extends = b.extends
		c.Implements = b.implements
		s.AddClass(c)
	}
	for name, ret := range builtinFunctions {
		s.AddFunction(&FunctionData{Name: name, FQN: name, NativeReturn: ret})
	}
	for name, val := range builtinConstants {
		s.AddConstant(&ConstantData{Name: name, FQN: name, Value: val, Type: types.NewUnion(val.Type())})
	}
	for name, typ := range builtinOpaqueConstants {
		s.AddConstant(&ConstantData{Name: name, FQN: name, Type: typ})
	}
}

// SetPHPVersion pins PHP_VERSION and its derived constants to version, given
// as "major.minor" or "major.minor.patch". Malformed versions are rejected
// and the constants stay opaque.
func (s *Store) SetPHPVersion(version string) error {
	parts := strings.Split(strings.TrimSpace(version), ".")
	if len(parts) < 2 || len(parts) > 3 {
		return fmt.Errorf("invalid php version %q", version)
	}
	nums := make([]int64, 3)
	for i, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid php version %q", version)
		}
		nums[i] = n
	}
	full := fmt.Sprintf("%d.%d.%d", nums[0], nums[1], nums[2])
	s.AddConstant(&ConstantData{Name: "PHP_VERSION", FQN: "PHP_VERSION", Value: types.StringValue(full), Type: u(types.String)})
	s.AddConstant(&ConstantData{Name: "PHP_MAJOR_VERSION", FQN: "PHP_MAJOR_VERSION", Value: types.IntValue(nums[0]), Type: u(types.Int)})
	s.AddConstant(&ConstantData{Name: "PHP_MINOR_VERSION", FQN: "PHP_MINOR_VERSION", Value: types.IntValue(nums[1]), Type: u(types.Int)})
	s.AddConstant(&ConstantData{Name: "PHP_RELEASE_VERSION", FQN: "PHP_RELEASE_VERSION", Value: types.IntValue(nums[2]), Type: u(types.Int)})
	s.AddConstant(&ConstantData{Name: "PHP_VERSION_ID", FQN: "PHP_VERSION_ID", Value: types.IntValue(nums[0]*10000 + nums[1]*100 + nums[2]), Type: u(types.Int)})
	return nil
}
