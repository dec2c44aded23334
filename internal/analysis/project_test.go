package analysis

import (
	"context"
	"testing"

	"github.com/shinyvision/phpinfer/internal/symbols"
	"github.com/shinyvision/phpinfer/internal/types"
	"github.com/stretchr/testify/require"
)

const shapesSource = `<?php
namespace App;

interface Shape {}

class Circle implements Shape {
    public function area(): float {
        return 3.14;
    }
}

final class Square {}

const SIDES = 4;
`

const usesShapesSource = `<?php
namespace Client;

use App\Circle;
use App\Square;
use App\Shape;

function describe(Circle $c) {
    if ($c instanceof Shape) {
        echo $c;
    }
    return $c->area();
}

function never(Square $s) {
    if ($s instanceof Shape) {
        echo $s;
    }
}

$sides = \App\SIDES;
`

func newTestProject(t *testing.T, files ...string) *Project {
	t.Helper()
	p := NewProject(Options{}, 2)
	t.Cleanup(p.Close)
	for i := 0; i+1 < len(files); i += 2 {
		require.NoError(t, p.AddSource(context.Background(), files[i], []byte(files[i+1])))
	}
	return p
}

func TestProjectSeesSymbolsFromLaterFiles(t *testing.T) {
	p := newTestProject(t, "client.php", usesShapesSource, "shapes.php", shapesSource)
	results := p.Analyze(context.Background())
	require.Len(t, results, 2)

	client := results[0]
	require.Equal(t, "client.php", client.File)

	reads := client.VarReads("c")
	require.NotEmpty(t, reads)
	circle := types.NewUnion(types.Named("Circle", "App\\Circle"))
	for _, read := range reads {
		require.True(t, read.Type.Equal(circle), read.Type.String())
	}

	// Square is final and does not implement Shape.
	require.Equal(t, []IssueKind{IssueAlwaysFalseCondition}, issueKinds(client))
	require.Empty(t, results[1].Issues)

	sides, ok := client.Globals.GetVar("sides")
	require.True(t, ok)
	require.Equal(t, "4", sides.Value().String())

	fn, ok := p.Store().Function("Client\\describe")
	require.True(t, ok)
	var ret types.Union
	fn.Read(func(f *symbols.FunctionData) { ret = f.ReturnType() })
	require.True(t, ret.Equal(types.NewUnion(types.FloatType)), ret.String())
}

func TestProjectHierarchy(t *testing.T) {
	p := newTestProject(t, "shapes.php", shapesSource)
	p.Analyze(context.Background())
	require.True(t, p.Store().IsA("App\\Circle", "App\\Shape"))
	require.False(t, p.Store().IsA("App\\Square", "App\\Shape"))
}

func TestProjectReplacesAndRemovesFiles(t *testing.T) {
	p := newTestProject(t, "shapes.php", shapesSource, "client.php", usesShapesSource)
	p.Analyze(context.Background())
	require.True(t, p.Store().HasClass("App\\Circle"))

	require.NoError(t, p.AddSource(context.Background(), "shapes.php", []byte("<?php\nnamespace App;\nclass Other {}\n")))
	results := p.Analyze(context.Background())
	require.Len(t, results, 2)
	require.False(t, p.Store().HasClass("App\\Circle"))
	require.True(t, p.Store().HasClass("App\\Other"))
	require.True(t, results[1].HasIssue(IssueUnknownClass, "App\\Shape"), "%v", results[1].Issues)

	p.RemoveFile("shapes.php")
	require.Equal(t, []string{"client.php"}, p.Files())
	require.False(t, p.Store().HasClass("App\\Other"))
}

func TestProjectIsRepeatable(t *testing.T) {
	p := newTestProject(t, "client.php", usesShapesSource, "shapes.php", shapesSource)
	first := p.Analyze(context.Background())
	second := p.Analyze(context.Background())
	require.Equal(t, len(first), len(second))
	for i := range first {
		require.Equal(t, first[i].Issues, second[i].Issues)
		require.Equal(t, len(first[i].Observations), len(second[i].Observations))
	}
}
