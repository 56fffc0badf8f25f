package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/kbask/kbask/internal/agent"
	"github.com/kbask/kbask/internal/logging"
	"github.com/kbask/kbask/internal/provider"
	"github.com/kbask/kbask/internal/server"
	"github.com/kbask/kbask/internal/store"
	"github.com/kbask/kbask/internal/tracing"
)

// NewServeCmd constructs the `kbask serve` command, which starts the
// authenticated HTTP server exposing the query endpoint.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the kbask HTTP server",
		Long: `Start the kbask HTTP server on localhost.

The server exposes POST /query (Bearer-token authenticated), GET /health,
GET /ready, and GET /metrics. KBASK_API_TOKEN must be set — the server
refuses to start without a token.

Examples:
  KBASK_API_TOKEN=secret kbask serve
  KBASK_API_TOKEN=secret kbask serve --port 9090
  MODEL_PROVIDER=azure KBASK_API_TOKEN=secret kbask serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			apiToken := os.Getenv("KBASK_API_TOKEN")
			if apiToken == "" {
				return fmt.Errorf("serve: KBASK_API_TOKEN must be set")
			}

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Setup Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			providerCfg := provider.ConfigFromEnv()
			chatModel, err := provider.New(ctx, providerCfg)
			if err != nil {
				return fmt.Errorf("serve: failed to initialise model provider: %w", err)
			}
			log.Info("provider initialised", slog.String("provider", string(providerCfg.Backend)))

			retriever, vectorStore, err := buildRetriever(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer vectorStore.Close()

			kbAgent, err := agent.New(ctx, agentConfigFromEnv(agent.Config{
				ChatModel: chatModel,
			}, retriever, log))
			if err != nil {
				return fmt.Errorf("serve: failed to initialise agent: %w", err)
			}

			// Open the query audit log. KBASK_AUDIT_DB overrides the default
			// path (~/.kbask/audit.db). Set to "disabled" to turn auditing off.
			var queryLog store.QueryLog
			dbPath := os.Getenv("KBASK_AUDIT_DB")
			if dbPath != "disabled" {
				if dbPath == "" {
					dbPath, err = store.DefaultDBPath()
					if err != nil {
						log.Warn("audit: could not resolve default DB path, disabling", slog.Any("error", err))
					}
				}
				if dbPath != "" {
					ql, qlErr := store.Open(dbPath)
					if qlErr != nil {
						log.Warn("audit: failed to open query log, disabling", slog.Any("error", qlErr))
					} else {
						queryLog = ql
						defer func() { _ = ql.Close() }()
						log.Info("audit: query log opened", slog.String("path", dbPath))
					}
				}
			} else {
				log.Info("audit: disabled via KBASK_AUDIT_DB=disabled")
			}

			pingers := []server.Pinger{
				server.NewQdrantPinger(vectorStore.Client()),
				server.NewLLMPinger(chatModel, string(providerCfg.Backend)),
			}

			srv, err := server.New(kbAgent, &server.Config{
				Host:     host,
				Port:     port,
				Logger:   log,
				Pingers:  pingers,
				APIToken: apiToken,
				QueryLog: queryLog,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", getEnvOrDefault("KBASK_HOST", "127.0.0.1"), "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", getEnvInt("KBASK_PORT", 8080), "TCP port to listen on")

	return cmd
}
