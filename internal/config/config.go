package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/shinyvision/phpinfer/internal/analysis"
	"github.com/tliron/commonlog"
	"gopkg.in/yaml.v3"
)

// FileName is looked up in the workspace root and its parents.
const FileName = ".phpinfer.yaml"

type Config struct {
	PHPVersion     string   `yaml:"php_version"`
	DisabledIssues []string `yaml:"disabled_issues"`
	MaxDepth       int      `yaml:"max_depth"`
	Workers        int      `yaml:"workers"`
	ReportUnused   bool     `yaml:"report_unused"`
	Extensions     []string `yaml:"extensions"`
	Paths          []string `yaml:"paths"` // used when the command line names none

	// Root is the directory relative paths resolve against.
	Root string  `yaml:"-"`
	Psr4 Psr4Map `yaml:"-"`
}

func NewConfig() *Config {
	return &Config{
		MaxDepth:   analysis.DefaultMaxDepth,
		Extensions: []string{".php"},
		Root:       ".",
		Psr4:       make(Psr4Map),
	}
}

// Load reads a YAML config file on top of the defaults. Unknown keys are an
// error so typos do not pass silently.
func Load(path string) (*Config, error) {
	logger := commonlog.GetLoggerf("phpinfer.config")
	c := NewConfig()
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open config: %w", err)
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("could not parse %s: %w", path, err)
	}
	c.Root = filepath.Dir(path)
	if err := c.normalize(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	logger.Infof("loaded %s", path)
	return c, nil
}

// Discover looks for FileName in dir and then in each parent. When none is
// found the defaults are returned with Root set to dir.
func Discover(dir string) (*Config, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("could not resolve %s: %w", dir, err)
	}
	for d := abs; ; d = filepath.Dir(d) {
		candidate := filepath.Join(d, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return Load(candidate)
		}
		if filepath.Dir(d) == d {
			break
		}
	}
	c := NewConfig()
	c.Root = abs
	return c, nil
}

func (c *Config) normalize() error {
	if c.MaxDepth < 0 {
		return fmt.Errorf("max_depth must not be negative, got %d", c.MaxDepth)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if len(c.Extensions) == 0 {
		c.Extensions = []string{".php"}
	}
	for i, ext := range c.Extensions {
		if !strings.HasPrefix(ext, ".") {
			c.Extensions[i] = "." + ext
		}
	}
	_, err := c.Disabled()
	return err
}

// Disabled parses DisabledIssues into issue kinds.
func (c *Config) Disabled() ([]analysis.IssueKind, error) {
	var kinds []analysis.IssueKind
	for _, name := range c.DisabledIssues {
		k, ok := analysis.ParseIssueKind(name)
		if !ok {
			return nil, fmt.Errorf("unknown issue %q", name)
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// Options turns the config into analysis options for one run.
func (c *Config) Options() (analysis.Options, error) {
	disabled, err := c.Disabled()
	if err != nil {
		return analysis.Options{}, err
	}
	return analysis.Options{
		MaxDepth:     c.MaxDepth,
		ReportUnused: c.ReportUnused,
		Disabled:     disabled,
	}, nil
}

// HasSourceExtension reports whether path names a file the analyzer reads.
func (c *Config) HasSourceExtension(path string) bool {
	ext := filepath.Ext(path)
	for _, want := range c.Extensions {
		if strings.EqualFold(ext, want) {
			return true
		}
	}
	return false
}

// SourcePaths returns the paths to analyze when none are given: the
// configured paths, else the composer PSR-4 roots, else Root itself.
func (c *Config) SourcePaths() []string {
	var out []string
	switch {
	case len(c.Paths) > 0:
		out = append(out, c.Paths...)
	case len(c.Psr4) > 0:
		out = c.Psr4.Dirs()
	default:
		return []string{c.Root}
	}
	for i, p := range out {
		if !filepath.IsAbs(p) {
			out[i] = filepath.Join(c.Root, p)
		}
	}
	return out
}

// LoadPsr4Map reads composer.json under Root, if present.
func (c *Config) LoadPsr4Map() {
	logger := commonlog.GetLoggerf("phpinfer.config")
	composerFile := filepath.Join(c.Root, "composer.json")
	if _, err := os.Stat(composerFile); err != nil {
		return
	}

	psr4Map, err := GetPsr4Map(composerFile)
	if err != nil {
		logger.Warningf("could not load psr4 map: %v", err)
		return
	}

	c.Psr4 = psr4Map
	logger.Infof("loaded %d psr-4 mappings", len(c.Psr4))
}
