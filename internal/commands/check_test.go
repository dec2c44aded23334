package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shinyvision/phpinfer/internal/analysis"
	"github.com/shinyvision/phpinfer/internal/config"
	"github.com/shinyvision/phpinfer/internal/syntax"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func TestCollectFilesSkipsVendorAndHidden(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"src/a.php":        "<?php\n",
		"src/b.txt":        "",
		"vendor/lib/c.php": "<?php\n",
		".cache/d.php":     "<?php\n",
		"e.inc":            "<?php\n",
	})
	cfg := config.NewConfig()
	files, err := collectFiles(cfg, []string{dir})
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "src", "a.php")}, files)

	cfg.Extensions = []string{".php", ".inc"}
	files, err = collectFiles(cfg, []string{dir})
	require.NoError(t, err)
	require.Len(t, files, 2)

	_, err = collectFiles(cfg, []string{filepath.Join(dir, "missing")})
	require.Error(t, err)
}

func TestRunCheckReportsAcrossFiles(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"model.php": "<?php\nclass User {}\n",
		"main.php":  "<?php\n$u = new User();\necho $missing;\n",
	})
	cfg := config.NewConfig()
	cfg.Root = dir

	var out bytes.Buffer
	n, err := runCheck(context.Background(), &out, cfg, nil, false)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	want := filepath.Join(dir, "main.php") + ":3:6: error: undefined variable $missing [UnknownVariable]"
	require.Equal(t, want, lines[0])
	require.Equal(t, "1 issue in 1 file", lines[len(lines)-1])
}

func TestRunCheckHonoursConfig(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"a.php": "<?php\nfunction f() {\n    $unused = PHP_VERSION_ID;\n}\n",
	})
	cfg := config.NewConfig()
	cfg.ReportUnused = true
	cfg.PHPVersion = "8.1"

	var out bytes.Buffer
	n, err := runCheck(context.Background(), &out, cfg, []string{dir}, false)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Contains(t, out.String(), "[UnusedVariable]")

	cfg.DisabledIssues = []string{"UnusedVariable"}
	out.Reset()
	n, err = runCheck(context.Background(), &out, cfg, []string{dir}, false)
	require.NoError(t, err)
	require.Zero(t, n)
	require.Empty(t, out.String())

	cfg.PHPVersion = "next"
	_, err = runCheck(context.Background(), &out, cfg, []string{dir}, false)
	require.Error(t, err)
}

func TestFormatIssueColor(t *testing.T) {
	issue := analysis.Issue{
		Kind:    analysis.IssueAlwaysFalseCondition,
		File:    "a.php",
		Range:   syntax.Range{StartLine: 4, StartColumn: 2},
		Message: "condition is always false",
	}
	require.Equal(t, "a.php:4:3: warning: condition is always false [AlwaysFalseCondition]", formatIssue(issue, false))
	colored := formatIssue(issue, true)
	require.Contains(t, colored, ansiYellow+"warning"+ansiReset)
}
