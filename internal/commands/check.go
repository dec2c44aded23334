package commands

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/shinyvision/phpinfer/internal/analysis"
	"github.com/shinyvision/phpinfer/internal/config"
	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	"golang.org/x/term"
)

var noColor bool

var checkCmd = &cobra.Command{
	Use:   "check [paths...]",
	Short: "Analyze PHP files and print diagnostics",
	Long: `Analyze PHP files and directories and print one line per issue.

Without paths, the paths from the config file are used, then the composer
PSR-4 roots, then the working directory. The exit status is 1 when any
issue is reported.

Examples:
  phpinfer check src/
  phpinfer check --disable UnusedVariable --report-unused app.php`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		n, err := runCheck(cmd.Context(), out, cfg, args, useColor(out))
		if err != nil {
			return err
		}
		if n > 0 {
			return errIssuesFound
		}
		return nil
	},
}

func init() {
	addAnalysisFlags(checkCmd)
	checkCmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
}

func useColor(w io.Writer) bool {
	if noColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// collectFiles expands directories into the source files below them.
// Hidden directories and vendor/ are skipped.
func collectFiles(cfg *config.Config, paths []string) ([]string, error) {
	var files []string
	for _, target := range paths {
		info, err := os.Stat(target)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", target, err)
		}
		if !info.IsDir() {
			files = append(files, target)
			continue
		}
		err = filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				name := d.Name()
				if path != target && (strings.HasPrefix(name, ".") || name == "vendor") {
					return filepath.SkipDir
				}
				return nil
			}
			if cfg.HasSourceExtension(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("reading directory %s: %w", target, err)
		}
	}
	return files, nil
}

// runCheck analyzes paths as one project and writes the issues to out. It
// returns how many issues were printed.
func runCheck(ctx context.Context, out io.Writer, cfg *config.Config, paths []string, color bool) (int, error) {
	logger := commonlog.GetLoggerf("phpinfer.check")
	if ctx == nil {
		ctx = context.Background()
	}
	if len(paths) == 0 {
		paths = cfg.SourcePaths()
	}
	files, err := collectFiles(cfg, paths)
	if err != nil {
		return 0, err
	}

	opts, err := cfg.Options()
	if err != nil {
		return 0, err
	}
	project := analysis.NewProject(opts, cfg.Workers)
	defer project.Close()
	if cfg.PHPVersion != "" {
		if err := project.Store().SetPHPVersion(cfg.PHPVersion); err != nil {
			return 0, err
		}
	}

	for _, file := range files {
		source, err := os.ReadFile(file)
		if err != nil {
			return 0, fmt.Errorf("failed to read %s: %w", file, err)
		}
		if err := project.AddSource(ctx, file, source); err != nil {
			return 0, err
		}
	}
	logger.Infof("analyzing %d files", len(files))

	count, affected := 0, 0
	for _, result := range project.Analyze(ctx) {
		if len(result.Issues) > 0 {
			affected++
		}
		for _, issue := range result.Issues {
			fmt.Fprintln(out, formatIssue(issue, color))
			count++
		}
	}
	if count > 0 {
		fmt.Fprintf(out, "\n%d %s in %d %s\n", count, plural(count, "issue"), affected, plural(affected, "file"))
	}
	return count, nil
}

const (
	ansiReset  = "\x1b[0m"
	ansiBold   = "\x1b[1m"
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiCyan   = "\x1b[36m"
)

func formatIssue(issue analysis.Issue, color bool) string {
	pos := fmt.Sprintf("%s:%d:%d", issue.File, issue.Range.StartLine, issue.Range.StartColumn+1)
	severity := issue.Kind.Severity()
	if !color {
		return fmt.Sprintf("%s: %s: %s [%s]", pos, severity, issue.Message, issue.Kind)
	}
	tint := ansiCyan
	switch severity {
	case analysis.SeverityError:
		tint = ansiRed
	case analysis.SeverityWarning:
		tint = ansiYellow
	}
	return fmt.Sprintf("%s%s%s: %s%s%s: %s [%s]", ansiBold, pos, ansiReset, tint, severity, ansiReset, issue.Message, issue.Kind)
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
