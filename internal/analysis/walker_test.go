package analysis

import (
	"context"
	"testing"

	"github.com/shinyvision/phpinfer/internal/syntax"
	"github.com/shinyvision/phpinfer/internal/types"
	"github.com/stretchr/testify/require"
)

func analyzeSource(t *testing.T, src string, opts ...func(*Options)) *Result {
	t.Helper()
	o := Options{File: "test.php"}
	for _, fn := range opts {
		fn(&o)
	}
	res, err := AnalyzeSource(context.Background(), []byte(src), o)
	require.NoError(t, err)
	return res
}

func requireExpr(t *testing.T, res *Result, kind, text string) Observation {
	t.Helper()
	o, ok := res.Expr(kind, text)
	require.True(t, ok, "no observation for %s %q", kind, text)
	return o
}

func lastRead(t *testing.T, res *Result, name string) Observation {
	t.Helper()
	reads := res.VarReads(name)
	require.NotEmpty(t, reads, "no reads of $%s", name)
	return reads[len(reads)-1]
}

func issueKinds(res *Result) []IssueKind {
	out := make([]IssueKind, 0, len(res.Issues))
	for _, issue := range res.Issues {
		out = append(out, issue.Kind)
	}
	return out
}

func TestIntegerArithmeticIsFolded(t *testing.T) {
	res := analyzeSource(t, `<?php
$a = 3 + 4;
echo $a;
`)
	o := requireExpr(t, res, "binary_expression", "3 + 4")
	require.True(t, o.Type.Equal(types.NewUnion(types.Int)), o.Type.String())
	got, ok := o.Value.AsInt()
	require.True(t, ok)
	require.Equal(t, int64(7), got)

	a, ok := res.Globals.GetVar("a")
	require.True(t, ok)
	require.Equal(t, "7", a.Value().String())
	require.Empty(t, res.Issues)
}

func TestNumericStringArithmetic(t *testing.T) {
	res := analyzeSource(t, `<?php
$a = "10" - 3;
`)
	o := requireExpr(t, res, "binary_expression", `"10" - 3`)
	require.True(t, o.Type.Equal(types.NewUnion(types.Int, types.FloatType)), o.Type.String())
	got, ok := o.Value.AsInt()
	require.True(t, ok)
	require.Equal(t, int64(7), got)
}

func TestConditionalWriteIsPartial(t *testing.T) {
	res := analyzeSource(t, `<?php
function f(bool $cond) {
    if ($cond) {
        $x = 1;
    }
    echo $x;
}
`)
	require.True(t, res.HasIssue(IssueVariableNotInitializedInAllBranches, "x"), "%v", res.Issues)
	scope, ok := res.Scopes["f"]
	require.True(t, ok)
	x, ok := scope.GetVar("x")
	require.True(t, ok)
	require.True(t, x.IsPartial)
	require.Nil(t, x.Value())
}

func TestWriteOnEveryBranchIsNotPartial(t *testing.T) {
	res := analyzeSource(t, `<?php
function f(bool $cond) {
    if ($cond) {
        $x = 1;
    } else {
        $x = "one";
    }
    echo $x;
}
`)
	require.False(t, res.HasIssue(IssueVariableNotInitializedInAllBranches, "x"))
	o := lastRead(t, res, "x")
	require.True(t, o.Type.Equal(types.NewUnion(types.Int, types.String)), o.Type.String())
	require.Nil(t, o.Value)
}

func TestReturnInBranchKeepsOtherPath(t *testing.T) {
	res := analyzeSource(t, `<?php
function f(bool $cond) {
    if ($cond) {
        return 0;
    } else {
        $x = 2;
    }
    return $x;
}
`)
	require.Empty(t, res.Issues)
}

func TestInstanceofNarrowsBothBranches(t *testing.T) {
	res := analyzeSource(t, `<?php
class A {}
class B {}
function f(A|B $x) {
    if ($x instanceof A) {
        echo $x;
    } else {
        echo $x;
    }
}
`)
	reads := res.VarReads("x")
	require.Len(t, reads, 3)
	a, b := types.Named("A", "A"), types.Named("B", "B")
	require.True(t, reads[0].Type.Equal(types.NewUnion(a, b)), reads[0].Type.String())
	require.True(t, reads[1].Type.Equal(types.NewUnion(a)), reads[1].Type.String())
	require.True(t, reads[2].Type.Equal(types.NewUnion(b)), reads[2].Type.String())
	require.Empty(t, res.Issues)
}

func TestNegatedInstanceofSwapsBranches(t *testing.T) {
	res := analyzeSource(t, `<?php
class A {}
class B {}
function f(A|B $x) {
    if (!($x instanceof A)) {
        echo $x;
    } else {
        echo $x;
    }
}
`)
	reads := res.VarReads("x")
	require.Len(t, reads, 3)
	require.True(t, reads[1].Type.Equal(types.NewUnion(types.Named("B", "B"))), reads[1].Type.String())
	require.True(t, reads[2].Type.Equal(types.NewUnion(types.Named("A", "A"))), reads[2].Type.String())
}

func TestCompoundConditionsNarrow(t *testing.T) {
	a := types.Named("A", "A")
	b := types.Named("B", "B")
	c := types.Named("C", "C")
	tests := []struct {
		name string
		body string
		v    string
		want types.Union
	}{
		{
			name: "or narrows the false side by both operands",
			body: "if ($x instanceof A || $x instanceof B) {\n        return;\n    }\n    echo $x;",
			v:    "x",
			want: types.NewUnion(c),
		},
		{
			name: "and narrows the true side",
			body: "if ($x instanceof A && $y) {\n        echo $x;\n    }",
			v:    "x",
			want: types.NewUnion(a),
		},
		{
			name: "negation inside and",
			body: "if (!($x instanceof A) && $y) {\n        echo $x;\n    }",
			v:    "x",
			want: types.NewUnion(b, c),
		},
		{
			name: "and tests the right operand after the left",
			body: "if (!($x instanceof A) && !($x instanceof B)) {\n        echo $x;\n    }",
			v:    "x",
			want: types.NewUnion(c),
		},
		{
			name: "negated or",
			body: "if (!($x instanceof A || $x instanceof B)) {\n        echo $x;\n    }",
			v:    "x",
			want: types.NewUnion(c),
		},
		{
			name: "null check inside or",
			body: "if ($o === null || $y) {\n        return;\n    }\n    echo $o;",
			v:    "o",
			want: types.NewUnion(a),
		},
		{
			name: "negated type check inside and",
			body: "if (!is_null($o) && $y) {\n        echo $o;\n    }",
			v:    "o",
			want: types.NewUnion(a),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := analyzeSource(t, "<?php\nclass A {}\nclass B {}\nclass C {}\nfunction f(A|B|C $x, ?A $o, bool $y) {\n    "+tt.body+"\n}\n")
			require.Empty(t, res.Issues)
			o := lastRead(t, res, tt.v)
			require.True(t, o.Type.Equal(tt.want), o.Type.String())
		})
	}
}

func TestNarrowingEndsWithTheBranch(t *testing.T) {
	res := analyzeSource(t, `<?php
class A {}
class B {}
function f(A|B $x) {
    if ($x instanceof A) {
        echo $x;
    }
    echo $x;
}
`)
	o := lastRead(t, res, "x")
	require.True(t, o.Type.Equal(types.NewUnion(types.Named("A", "A"), types.Named("B", "B"))), o.Type.String())
}

func TestImpossibleInstanceofIsReported(t *testing.T) {
	res := analyzeSource(t, `<?php
final class A {}
final class B {}
function f(A $x) {
    if ($x instanceof B) {
        echo $x;
    }
}
`)
	require.Contains(t, issueKinds(res), IssueAlwaysFalseCondition)
	// The checked class still types the branch.
	o := lastRead(t, res, "x")
	require.True(t, o.Type.Equal(types.NewUnion(types.Named("B", "B"))), o.Type.String())
}

func TestNullCheckNarrows(t *testing.T) {
	res := analyzeSource(t, `<?php
function f(?int $n) {
    if ($n !== null) {
        echo $n;
    }
}
`)
	o := lastRead(t, res, "n")
	require.True(t, o.Type.Equal(types.NewUnion(types.Int)), o.Type.String())
}

func TestBooleanLiterals(t *testing.T) {
	res := analyzeSource(t, `<?php
$a = TRUE;
$b = false;
`)
	a, ok := res.Globals.GetVar("a")
	require.True(t, ok)
	v, ok := a.Value().AsBool()
	require.True(t, ok)
	require.True(t, v)

	b, ok := res.Globals.GetVar("b")
	require.True(t, ok)
	require.Equal(t, types.ValueBool, b.Value().Kind())

	s := newState(nil, nil, Options{}, discardSink{})
	e := evalBoolean(s, syntax.NewNode("boolean", "yes"))
	require.Nil(t, e.Value)
	require.True(t, e.Type.Equal(types.NewUnion(types.Bool)))
	require.Equal(t, 1, s.Unsupported().Count("boolean literal"))
}

func TestShiftOverflowHasNoValue(t *testing.T) {
	res := analyzeSource(t, `<?php
$a = 1 << 100;
$b = 1 << 3;
`)
	o := requireExpr(t, res, "binary_expression", "1 << 100")
	require.Nil(t, o.Value)
	require.True(t, o.Type.Equal(types.NewUnion(types.Int)))

	b, ok := res.Globals.GetVar("b")
	require.True(t, ok)
	require.Equal(t, "8", b.Value().String())
}

func TestDefineDeclaresConstant(t *testing.T) {
	res := analyzeSource(t, `<?php
define('GREETING', 'hello');
$a = GREETING;
$b = MISSING;
`)
	a, ok := res.Globals.GetVar("a")
	require.True(t, ok)
	got, ok := a.Value().AsString()
	require.True(t, ok)
	require.Equal(t, "hello", got)
	require.Equal(t, []IssueKind{IssueUnknownConstant}, issueKinds(res))
	require.Equal(t, "MISSING", res.Issues[0].Name)
}

func TestNamespacedConstantsAndFunctions(t *testing.T) {
	res := analyzeSource(t, `<?php
namespace App\Util;

const LIMIT = 10;

function twice(int $n): int {
    return $n * 2;
}

$a = LIMIT + 1;
$b = twice(LIMIT);
$c = strlen("abc");
`)
	require.Empty(t, res.Issues)
	a, _ := res.Globals.GetVar("a")
	require.Equal(t, "11", a.Value().String())
	b, _ := res.Globals.GetVar("b")
	require.True(t, b.Type().Equal(types.NewUnion(types.Int)))
	c, _ := res.Globals.GetVar("c")
	require.Equal(t, "3", c.Value().String())
}

func TestDocCommentPrecedence(t *testing.T) {
	res := analyzeSource(t, `<?php
function f(int $n) {
    /** @var string $n */
    echo $n;
}

/** @return string */
function g(): ?string {
    return "x";
}

function h() {
    return 5;
}

$r = g();
$i = h();
`)
	o := lastRead(t, res, "n")
	require.True(t, o.Type.Equal(types.NewUnion(types.String)), o.Type.String())

	r, _ := res.Globals.GetVar("r")
	require.True(t, r.Type().Equal(types.NewUnion(types.String)), r.Type().String())
	i, _ := res.Globals.GetVar("i")
	require.True(t, i.Type().Equal(types.NewUnion(types.Int)), i.Type().String())
}

func TestReturnInferenceSeesLaterFunctions(t *testing.T) {
	res := analyzeSource(t, `<?php
function outer() {
    return inner();
}

function inner() {
    return "s";
}

$v = outer();
`)
	v, _ := res.Globals.GetVar("v")
	require.True(t, v.Type().Equal(types.NewUnion(types.String)), v.Type().String())
}

func TestUndefinedVariables(t *testing.T) {
	res := analyzeSource(t, `<?php
echo $nope;
$x = $maybe ?? 1;
if (isset($other)) {}
`)
	require.Equal(t, []IssueKind{IssueUnknownVariable}, issueKinds(res))
	require.Equal(t, "nope", res.Issues[0].Name)
}

func TestUnknownSymbols(t *testing.T) {
	res := analyzeSource(t, `<?php
$a = new Missing();
$b = nothing_here(1);
`)
	require.True(t, res.HasIssue(IssueUnknownClass, "Missing"), "%v", res.Issues)
	require.True(t, res.HasIssue(IssueUnknownFunction, "nothing_here"), "%v", res.Issues)
}

func TestUnusedVariablesAreOptIn(t *testing.T) {
	src := `<?php
function f() {
    $used = 1;
    $unused = 2;
    $_ignored = 3;
    return $used;
}
`
	require.Empty(t, analyzeSource(t, src).Issues)

	res := analyzeSource(t, src, func(o *Options) { o.ReportUnused = true })
	require.Equal(t, []IssueKind{IssueUnusedVariable}, issueKinds(res))
	require.Equal(t, "unused", res.Issues[0].Name)

	res = analyzeSource(t, src, func(o *Options) {
		o.ReportUnused = true
		o.Disabled = []IssueKind{IssueUnusedVariable}
	})
	require.Empty(t, res.Issues)
}

func TestSinkReceivesIssues(t *testing.T) {
	sink := NewCollector()
	res := analyzeSource(t, `<?php echo $nope;`, func(o *Options) { o.Sink = sink })
	require.Len(t, res.Issues, 1)
	require.Equal(t, res.Issues, sink.Issues())
}

func TestUnsupportedConstructsStaySilent(t *testing.T) {
	res := analyzeSource(t, `<?php
$name = 'a';
$y = $$name;
`)
	require.Empty(t, res.Issues)
	require.Equal(t, 1, res.Unsupported["variable variable"])

	y, ok := res.Globals.GetVar("y")
	require.True(t, ok)
	require.True(t, y.Type().IsEmpty())
	require.Nil(t, y.Value())
}

func TestDepthBoundDegradesToUnknown(t *testing.T) {
	res := analyzeSource(t, `<?php
$a = ((((1 + 2))));
`, func(o *Options) { o.MaxDepth = 3 })
	require.Empty(t, res.Issues)
	require.Positive(t, res.Unsupported["expression depth"])
	a, _ := res.Globals.GetVar("a")
	require.Nil(t, a.Value())
}

func TestParseErrorsAreReported(t *testing.T) {
	res := analyzeSource(t, `<?php
$a = );
$b = 2;
`)
	require.Contains(t, issueKinds(res), IssueParseError)
	b, ok := res.Globals.GetVar("b")
	require.True(t, ok)
	require.Equal(t, "2", b.Value().String())
}

func TestLoopWritesForgetValues(t *testing.T) {
	res := analyzeSource(t, `<?php
$i = 0;
while ($i < 10) {
    echo $i;
    $i = $i + 1;
}
`)
	require.Empty(t, res.Issues)
	for _, read := range res.VarReads("i") {
		require.Nil(t, read.Value, "read at line %d", read.Range.StartLine)
		require.True(t, read.Type.Equal(types.NewUnion(types.Int)), read.Type.String())
	}
}

func TestForeachBindsElementTypes(t *testing.T) {
	res := analyzeSource(t, `<?php
$list = [1, 2, 3];
foreach ($list as $k => $v) {
    echo $v;
}
`)
	o := lastRead(t, res, "v")
	require.True(t, o.Type.Equal(types.NewUnion(types.Int)), o.Type.String())
	require.Empty(t, res.Issues)
}

func TestMethodsAndProperties(t *testing.T) {
	res := analyzeSource(t, `<?php
namespace App;

class Counter {
    private int $count = 0;

    public function __construct(private string $label) {}

    public function next(): int {
        return $this->count + 1;
    }

    public function label() {
        return $this->label;
    }

    public static function make(): static {
        return new static("x");
    }
}

$c = Counter::make();
$n = $c->next();
$l = $c->label();
`)
	require.Empty(t, res.Issues)
	n, _ := res.Globals.GetVar("n")
	require.True(t, n.Type().Equal(types.NewUnion(types.Int)), n.Type().String())
	l, _ := res.Globals.GetVar("l")
	require.True(t, l.Type().Equal(types.NewUnion(types.String)), l.Type().String())
	_, ok := res.Scopes["App\\Counter::next"]
	require.True(t, ok)
}

func TestThisOutsideClass(t *testing.T) {
	res := analyzeSource(t, `<?php
function f() {
    return $this;
}
`)
	require.True(t, res.HasIssue(IssueUnknownVariable, "this"))
}

func TestResultAt(t *testing.T) {
	src := `<?php
$count = 41 + 1;
`
	res := analyzeSource(t, src)
	o, ok := res.At(uint32(len("<?php\n$count = 4")))
	require.True(t, ok)
	require.Equal(t, "integer", o.Kind)
	require.Equal(t, "41", o.Text)
}

func TestCatchSeesPossibleTryWrites(t *testing.T) {
	res := analyzeSource(t, `<?php
function g(): int {
    return 1;
}
function f() {
    $y = 1;
    try {
        $x = g();
        $y = 2;
    } catch (Exception $e) {
        echo $x, $y, $e;
    }
}
`)
	require.True(t, res.HasIssue(IssueVariableNotInitializedInAllBranches, "x"), "%v", res.Issues)
	require.False(t, res.HasIssue(IssueUnknownVariable, "x"))
	require.Equal(t, []IssueKind{IssueVariableNotInitializedInAllBranches}, issueKinds(res))

	y := lastRead(t, res, "y")
	require.True(t, y.Type.Equal(types.NewUnion(types.Int)), y.Type.String())
	require.Nil(t, y.Value)
}

func TestUseFunctionAndConst(t *testing.T) {
	res := analyzeSource(t, `<?php
namespace Lib {
    const LIMIT = 3;
    function helper(): int {
        return 1;
    }
}

namespace App {
    use function Lib\helper;
    use const Lib\LIMIT;
    use const Lib\LIMIT as Cap;

    $a = HELPER();
    $b = LIMIT + Cap;
    $c = cap;
}
`)
	require.Equal(t, []IssueKind{IssueUnknownConstant}, issueKinds(res), "%v", res.Issues)
	a, _ := res.Globals.GetVar("a")
	require.True(t, a.Type().Equal(types.NewUnion(types.Int)), a.Type().String())
	b, _ := res.Globals.GetVar("b")
	require.Equal(t, "6", b.Value().String())
}
