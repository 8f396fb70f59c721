package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rentshare/apiserver/config"
	"github.com/rentshare/apiserver/internal/logging"
	"github.com/rentshare/apiserver/internal/server"
	"github.com/spf13/cobra"
)

var inMemory bool

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Starts the rentshare API server",
	Long: `Starts the rentshare API server. Usage:

	rentshare server
	rentshare server --in-memory
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := logging.New(cfg.Logging)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv, err := server.New(ctx, cfg, server.Options{InMemory: inMemory, Logger: logger})
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}

		return srv.Serve(ctx, 15*time.Second)
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().BoolVar(&inMemory, "in-memory", false, "Use the in-process store and queue instead of Postgres and a broker")
}
