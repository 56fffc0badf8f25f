// Package commands defines all Cobra CLI commands for the kbask binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/kbask/kbask/internal/audit"
	"github.com/kbask/kbask/internal/config"
	"github.com/kbask/kbask/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "kbask",
		Short: "kbask — question answering over your own knowledge base",
		Long: `kbask answers natural language questions using retrieval-augmented
generation over a private knowledge base.

Documents are ingested into a Qdrant vector store ('kbask ingest'), and an
LLM-driven reasoning loop retrieves relevant passages before answering
('kbask ask' or the HTTP server started by 'kbask serve').

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.kbask/config.yaml).
See 'kbask --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.kbask/config.yaml)")

	root.AddCommand(
		NewAskCmd(),
		NewServeCmd(),
		NewIngestCmd(),
		NewVersionCmd(),
	)

	return root
}
