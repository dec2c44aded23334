package commands

import (
	"github.com/shinyvision/phpinfer/internal/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the language server on stdio",
	Long: `Run phpinfer as a language server speaking LSP over stdin/stdout.

Diagnostics are published whenever a document is opened or changed, and
hover shows the inferred type of the expression under the cursor.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		s, err := server.NewServer(cfg, Version)
		if err != nil {
			return err
		}
		return s.Run()
	},
}

func init() {
	addAnalysisFlags(serveCmd)
}
