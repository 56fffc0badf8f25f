package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kbask/kbask/internal/agent"
	"github.com/kbask/kbask/internal/logging"
	"github.com/kbask/kbask/internal/provider"
)

// NewAskCmd constructs the `kbask ask` command, which runs a single question
// through the reasoning loop and prints the answer to stdout.
func NewAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask the knowledge base a question",
		Long: `Ask the kbask agent a natural language question.

The agent retrieves relevant passages from the Qdrant vector store before
answering, so run 'kbask ingest' first to populate the knowledge base.

Examples:
  kbask ask "who designed the analytical engine?"
  RAG_TOP_K=10 kbask ask "summarise our deployment process"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			chatModel, err := provider.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("ask: failed to initialise model provider: %w", err)
			}

			retriever, vectorStore, err := buildRetriever(ctx, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer vectorStore.Close()

			kbAgent, err := agent.New(ctx, agentConfigFromEnv(agent.Config{
				ChatModel: chatModel,
			}, retriever, log))
			if err != nil {
				return fmt.Errorf("ask: failed to initialise agent: %w", err)
			}

			res, err := kbAgent.Run(ctx, args[0])
			if err != nil {
				// Exhaustion still carries a best-effort answer worth printing.
				if errors.Is(err, agent.ErrExhausted) && res != nil {
					fmt.Fprintln(os.Stderr, "warning: step budget exhausted, answer may be incomplete")
					fmt.Println(res.Answer)
					return nil
				}
				return fmt.Errorf("ask: %w", err)
			}

			log.Debug("question answered", slog.Int("steps", res.Steps))
			fmt.Println(res.Answer)
			return nil
		},
	}

	return cmd
}
