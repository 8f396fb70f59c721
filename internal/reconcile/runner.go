package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rentshare/apiserver/internal/services"
)

const reportPrefix = "reconcile/"

// Runner performs one reconciliation pass and archives its report when a
// sink is configured.
type Runner struct {
	ratings Reconciler
	sink    ReportSink
	logger  *slog.Logger
}

// NewRunner builds a Runner. sink may be nil.
func NewRunner(ratings Reconciler, sink ReportSink, logger *slog.Logger) *Runner {
	return &Runner{ratings: ratings, sink: sink, logger: logger}
}

// ReportKey is the object key a report is archived under.
func ReportKey(report services.ReconcileReport) string {
	return reportPrefix + report.StartedAt.UTC().Format("20060102T150405Z") + ".json"
}

// Run reconciles every seller. The returned key is empty when no sink is
// configured. A failed upload is returned together with the report.
func (r *Runner) Run(ctx context.Context) (services.ReconcileReport, string, error) {
	report, err := r.ratings.Reconcile(ctx)
	if err != nil {
		return report, "", fmt.Errorf("reconcile: %w", err)
	}

	r.logger.InfoContext(ctx, "reconciliation finished",
		"checked", report.Checked,
		"repaired", len(report.Repaired),
		"failed", len(report.Failed),
		"duration", report.FinishedAt.Sub(report.StartedAt),
	)
	for _, drift := range report.Repaired {
		r.logger.WarnContext(ctx, "repaired drifted aggregate",
			"seller_id", drift.SellerID,
			"stored_average", drift.Stored.AverageRating,
			"stored_total", drift.Stored.TotalReviews,
			"derived_average", drift.Derived.AverageRating,
			"derived_total", drift.Derived.TotalReviews,
		)
	}

	if r.sink == nil {
		return report, "", nil
	}
	key := ReportKey(report)
	if err := r.sink.PutJSON(ctx, key, report); err != nil {
		return report, "", fmt.Errorf("archive report: %w", err)
	}
	return report, key, nil
}
