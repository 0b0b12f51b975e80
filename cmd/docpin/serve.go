package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/docpin/docpin/internal/config"
	"github.com/docpin/docpin/internal/querytypes"
	"github.com/docpin/docpin/internal/server"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the docpin server",
	Long: `Start the docpin HTTP server.

The server provides:
  - POST /api/documents               - Upload and index a PDF
  - POST /api/documents/{id}/extract  - Run extraction against a document
  - GET  /api/querytypes              - List available query types
  - GET  /health                      - Server health check

When ollama.manage is enabled in the config, the local inference container
is started with the server and stopped on shutdown.

Examples:
  docpin serve                    # Start on default port 8080
  docpin serve --port 3000        # Start on custom port
  docpin serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))

		configMgr, err := getConfigManager()
		if err != nil {
			return err
		}
		configMgr.WatchConfig()

		registry, err := loadRegistry(configMgr)
		if err != nil {
			return err
		}

		srv, err := server.New(server.Config{
			Host:          serveHost,
			Port:          servePort,
			ConfigManager: configMgr,
			Registry:      registry,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

// loadRegistry returns the query type registry, honoring a configured
// override file, then one in the home directory, then the built-in set.
func loadRegistry(configMgr *config.Manager) (*querytypes.Registry, error) {
	if path := configMgr.Get().QueryTypesFile; path != "" {
		return querytypes.Load(path)
	}
	h, err := getHome()
	if err != nil {
		return nil, err
	}
	if h.QueryTypesExists() {
		return querytypes.Load(h.QueryTypesPath())
	}
	return querytypes.Default()
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Host to bind to")
	serveCmd.Flags().StringVar(&servePort, "port", "8080", "Port to listen on")

	rootCmd.AddCommand(serveCmd)
}
