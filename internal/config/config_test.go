package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shinyvision/phpinfer/internal/analysis"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, FileName, `
php_version: "8.2"
disabled_issues: [unusedvariable, AlwaysFalseCondition]
max_depth: 64
workers: 3
report_unused: true
extensions: [php, .inc]
`)

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "8.2", c.PHPVersion)
	require.Equal(t, 64, c.MaxDepth)
	require.Equal(t, 3, c.Workers)
	require.Equal(t, []string{".php", ".inc"}, c.Extensions)
	require.Equal(t, dir, c.Root)

	opts, err := c.Options()
	require.NoError(t, err)
	require.True(t, opts.ReportUnused)
	require.Equal(t, []analysis.IssueKind{analysis.IssueUnusedVariable, analysis.IssueAlwaysFalseCondition}, opts.Disabled)

	require.True(t, c.HasSourceExtension("lib/a.INC"))
	require.False(t, c.HasSourceExtension("README.md"))
}

func TestLoadRejectsBadConfig(t *testing.T) {
	dir := t.TempDir()
	tests := map[string]string{
		"unknown key":   "colour: red\n",
		"unknown issue": "disabled_issues: [NoSuchIssue]\n",
		"bad depth":     "max_depth: -1\n",
		"bad yaml":      "workers: [\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, dir, name+".yaml", content))
			require.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestEmptyFileKeepsDefaults(t *testing.T) {
	c, err := Load(writeFile(t, t.TempDir(), FileName, ""))
	require.NoError(t, err)
	require.Equal(t, analysis.DefaultMaxDepth, c.MaxDepth)
	require.Equal(t, []string{".php"}, c.Extensions)
}

func TestDiscoverWalksUp(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, FileName, "workers: 2\n")
	nested := filepath.Join(dir, "src", "Model")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	c, err := Discover(nested)
	require.NoError(t, err)
	require.Equal(t, 2, c.Workers)

	bare := t.TempDir()
	c, err = Discover(bare)
	require.NoError(t, err)
	require.Equal(t, []string{bare}, c.SourcePaths())
}

func TestPsr4SourcePaths(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "composer.json", `{
  "autoload": {"psr-4": {"App\\": "src/", "Lib\\": ["lib/", "src/"]}},
  "autoload-dev": {"psr-4": {"App\\Tests\\": "tests/"}}
}`)

	c := NewConfig()
	c.Root = dir
	c.LoadPsr4Map()
	require.Equal(t, []string{"src/"}, c.Psr4["App\\"])
	require.Equal(t, []string{
		filepath.Join(dir, "lib"),
		filepath.Join(dir, "src"),
		filepath.Join(dir, "tests"),
	}, c.SourcePaths())

	c.Paths = []string{"app"}
	require.Equal(t, []string{filepath.Join(dir, "app")}, c.SourcePaths())
}
