package state

import (
	"context"
	"testing"

	"github.com/shinyvision/phpinfer/internal/analysis"
	"github.com/stretchr/testify/require"
)

func newTestState(t *testing.T) *State {
	t.Helper()
	p := analysis.NewProject(analysis.Options{}, 1)
	t.Cleanup(p.Close)
	return NewState(p)
}

func TestRefreshAnalyzesOpenDocumentsTogether(t *testing.T) {
	s := newTestState(t)
	ctx := context.Background()
	require.NoError(t, s.SetDocument(ctx, "file:///w/use.php", "<?php\n$u = new User();\n", 1))
	require.NoError(t, s.SetDocument(ctx, "file:///w/user.php", "<?php\nclass User {}\n", 1))

	docs := s.Refresh(ctx)
	require.Len(t, docs, 2)
	require.Equal(t, "/w/use.php", docs[0].Path)
	docs[0].Read(func(text string, result *analysis.Result) {
		require.NotNil(t, result)
		require.Empty(t, result.Issues)
	})

	s.DeleteDocument("file:///w/user.php")
	_, ok := s.GetDocument("file:///w/user.php")
	require.False(t, ok)
	docs = s.Refresh(ctx)
	require.Len(t, docs, 1)
	docs[0].Read(func(_ string, result *analysis.Result) {
		require.True(t, result.HasIssue(analysis.IssueUnknownClass, "User"), "%v", result.Issues)
	})
}

func TestUpdateClearsStaleResult(t *testing.T) {
	s := newTestState(t)
	ctx := context.Background()
	require.NoError(t, s.SetDocument(ctx, "file:///w/a.php", "<?php\necho $a;\n", 1))
	s.Refresh(ctx)

	require.NoError(t, s.SetDocument(ctx, "file:///w/a.php", "<?php\n$a = 1;\n", 2))
	doc, ok := s.GetDocument("file:///w/a.php")
	require.True(t, ok)
	require.EqualValues(t, 2, doc.Version())
	doc.Read(func(text string, result *analysis.Result) {
		require.Equal(t, "<?php\n$a = 1;\n", text)
		require.Nil(t, result)
	})

	// A result computed for an older version is dropped.
	doc.attach(&analysis.Result{}, 1)
	doc.Read(func(_ string, result *analysis.Result) { require.Nil(t, result) })
}
