package cmd

import (
	"errors"
	"fmt"

	"github.com/rentshare/apiserver/config"
	"github.com/rentshare/apiserver/internal/db"
	"github.com/rentshare/apiserver/internal/logging"
	"github.com/rentshare/apiserver/internal/reconcile"
	"github.com/rentshare/apiserver/internal/services"
	"github.com/rentshare/apiserver/internal/storage"
	"github.com/rentshare/apiserver/internal/store"
	"github.com/spf13/cobra"
)

// reconcileCmd recomputes every seller aggregate once.
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Recompute all seller rating aggregates and report drift",
	Long: `Recomputes every user's rating aggregate from their reviews, repairing
any that drifted. When STORAGE_BACKEND is set the report is uploaded to
reconcile/<timestamp>.json in the configured bucket.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := config.LoadConfig()
		logger := logging.New(cfg.Logging)

		dbConn, err := db.Open(ctx, cfg)
		if err != nil {
			return err
		}
		defer dbConn.Close()

		var sink reconcile.ReportSink
		reports, err := storage.Open(ctx, cfg.Storage)
		switch {
		case errors.Is(err, storage.ErrNotConfigured):
			logger.InfoContext(ctx, "no object storage configured; report will not be archived")
		case err != nil:
			return err
		default:
			sink = reports
		}

		ratings := services.NewRatingService(
			store.NewReviewRepository(dbConn),
			store.NewListingRepository(dbConn),
			store.NewUserRepository(dbConn),
			nil,
			logger,
		)

		report, key, err := reconcile.NewRunner(ratings, sink, logger).Run(ctx)
		if err != nil {
			return err
		}
		if key != "" {
			logger.InfoContext(ctx, "report archived", "bucket", reports.Bucket(), "key", key)
		}
		if len(report.Failed) > 0 {
			return fmt.Errorf("%d sellers could not be reconciled", len(report.Failed))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}
