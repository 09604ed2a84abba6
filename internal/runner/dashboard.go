package runner

import (
	"time"

	"go.uber.org/zap"

	"github.com/probelab/fabmon/internal/dashboard"
	"github.com/probelab/fabmon/internal/store"
	"github.com/probelab/fabmon/pkg/models"
)

// BuildDashboard aggregates the durable state into dashboard data. It
// reads, never writes: running it twice over the same files yields
// identical output.
func (r *Runner) BuildDashboard(now time.Time) (*models.DashboardData, error) {
	opts := dashboard.Options{
		Days:           r.cfg.Dashboard.Days,
		FailureWindow:  time.Duration(r.cfg.Dashboard.FailureWindowDays) * 24 * time.Hour,
		FailureLimit:   r.cfg.Dashboard.FailureLimit,
		IncludeScripts: true,
	}

	// The read window must cover both aggregations: the heatmap span and
	// the failures window, whichever reaches further back.
	since := now.UTC().AddDate(0, 0, -(opts.Days - 1)).Truncate(24 * time.Hour)
	if cutoff := now.UTC().Add(-opts.FailureWindow); cutoff.Before(since) {
		since = cutoff
	}
	entries, err := r.history.Load(store.Filter{Since: since})
	if err != nil {
		return nil, err
	}
	return dashboard.Build(r.statuses.List(), entries, now, opts), nil
}

// WriteDashboard builds the dashboard and writes its artifacts into the
// results directory.
func (r *Runner) WriteDashboard(now time.Time) error {
	data, err := r.BuildDashboard(now)
	if err != nil {
		return err
	}
	if err := dashboard.WriteArtifacts(r.cfg.ResultsDir, data); err != nil {
		return err
	}
	r.log.Info("dashboard written",
		zap.Int("models", len(data.Models)),
		zap.Int("failures", len(data.Failures)))
	return nil
}

// PruneHistory drops history entries older than the retention window.
// Retention <= 0 disables pruning.
func (r *Runner) PruneHistory(now time.Time) {
	days := r.cfg.Dashboard.RetentionDays
	if days <= 0 {
		return
	}
	cutoff := now.UTC().AddDate(0, 0, -days)
	removed, err := r.history.Prune(cutoff)
	if err != nil {
		r.log.Warn("history prune failed", zap.Error(err))
		return
	}
	if removed > 0 {
		r.log.Info("history pruned", zap.Int("removed", removed), zap.Time("cutoff", cutoff))
	}
}
