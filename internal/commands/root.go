// Package commands provides the phpinfer command line.
package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/shinyvision/phpinfer/internal/config"
	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
)

// errIssuesFound makes the process exit with status 1 without printing
// anything further; the issues are already on stdout.
var errIssuesFound = errors.New("issues found")

var (
	configPath string
	verbosity  int
	logFile    string
)

var rootCmd = &cobra.Command{
	Use:   "phpinfer",
	Short: "Type inference and static analysis for PHP",
	Long: `phpinfer infers types and compile-time values across PHP code and reports
undefined variables, unknown symbols and impossible conditions.

Usage:
  phpinfer check [paths...]   Analyze files and directories
  phpinfer serve              Run the language server on stdio
  phpinfer version            Print version`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbosity > 0 || logFile != "" {
			var path *string
			if logFile != "" {
				path = &logFile
			}
			commonlog.Configure(verbosity, path)
		}
	},
}

// Execute runs the root command and exits on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errIssuesFound) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to "+config.FileName+" (default: discovered from the working directory)")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (repeatable)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to this file instead of stderr")
}

// loadConfig reads the config file and applies flags the user set
// explicitly on cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.Discover(".")
	}
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("php-version") {
		cfg.PHPVersion, _ = flags.GetString("php-version")
	}
	if flags.Changed("disable") {
		disabled, _ := flags.GetStringSlice("disable")
		cfg.DisabledIssues = append(cfg.DisabledIssues, disabled...)
	}
	if flags.Changed("max-depth") {
		cfg.MaxDepth, _ = flags.GetInt("max-depth")
	}
	if flags.Changed("workers") {
		cfg.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("report-unused") {
		cfg.ReportUnused, _ = flags.GetBool("report-unused")
	}
	if flags.Changed("ext") {
		cfg.Extensions, _ = flags.GetStringSlice("ext")
	}
	if _, err := cfg.Disabled(); err != nil {
		return nil, err
	}
	cfg.LoadPsr4Map()
	return cfg, nil
}

// addAnalysisFlags registers the flags that override config values.
func addAnalysisFlags(cmd *cobra.Command) {
	cmd.Flags().String("php-version", "", "Target PHP version, e.g. 8.3")
	cmd.Flags().StringSlice("disable", nil, "Issue kinds to suppress, e.g. UnusedVariable")
	cmd.Flags().Int("max-depth", 0, "Maximum expression nesting before giving up")
	cmd.Flags().Int("workers", 0, "Files analyzed in parallel (default: number of CPUs)")
	cmd.Flags().Bool("report-unused", false, "Report variables that are written but never read")
	cmd.Flags().StringSlice("ext", nil, "File extensions to analyze (default .php)")
}
