package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rentshare/apiserver/config"
	"github.com/rentshare/apiserver/internal/db"
	"github.com/rentshare/apiserver/internal/logging"
	"github.com/rentshare/apiserver/internal/mq"
	"github.com/rentshare/apiserver/internal/reconcile"
	"github.com/rentshare/apiserver/internal/services"
	"github.com/rentshare/apiserver/internal/store"
	"github.com/spf13/cobra"
)

// workerCmd consumes recompute requests queued by the API server.
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume rating recompute requests from the message queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := logging.New(cfg.Logging)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		queue, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		defer queue.Close()

		dbConn, err := db.Open(ctx, cfg)
		if err != nil {
			return err
		}
		defer dbConn.Close()

		ratings := services.NewRatingService(
			store.NewReviewRepository(dbConn),
			store.NewListingRepository(dbConn),
			store.NewUserRepository(dbConn),
			nil,
			logger,
		)
		return reconcile.NewWorker(queue, cfg.MQ.Channel, ratings, logger).Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
