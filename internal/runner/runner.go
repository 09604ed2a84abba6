package runner

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/probelab/fabmon/internal/catalog"
	"github.com/probelab/fabmon/internal/core"
	"github.com/probelab/fabmon/internal/repro"
	"github.com/probelab/fabmon/internal/scenario"
	"github.com/probelab/fabmon/internal/status"
	"github.com/probelab/fabmon/internal/store"
)

// Mode selects how many catalog models one invocation tests.
type Mode string

const (
	// ModeFull tests every catalog model; the cycle pointer is untouched.
	ModeFull Mode = "full"
	// ModeCycle tests exactly one model and advances the pointer after
	// its scenarios complete.
	ModeCycle Mode = "cycle"
)

// Runner orchestrates one short-lived monitoring invocation. All state it
// depends on lives in the results directory; a Runner holds nothing that
// must survive the process.
type Runner struct {
	cfg        *core.Config
	log        *zap.Logger
	statuses   *store.StatusStore
	history    *store.HistoryLog
	cycle      *store.CycleStore
	probes     scenario.Runner
	source     catalog.StatusSource
	repro      *repro.Generator
	scenarios  []scenario.Scenario
	thresholds map[string]int64
	policy     status.AllOKPolicy

	// now is swappable for tests.
	now func() time.Time
}

func New(cfg *core.Config, log *zap.Logger, probes scenario.Runner, source catalog.StatusSource) (*Runner, error) {
	statuses, err := store.NewStatusStore(cfg.ModelsDir(), log)
	if err != nil {
		return nil, err
	}
	history, err := store.NewHistoryLog(cfg.HistoryPath(), log)
	if err != nil {
		return nil, err
	}

	scenarios := cfg.ScenarioList()
	return &Runner{
		cfg:        cfg,
		log:        log,
		statuses:   statuses,
		history:    history,
		cycle:      store.NewCycleStore(cfg.CyclePath(), log),
		probes:     probes,
		source:     source,
		repro:      repro.NewGenerator(cfg.ReproDir(), cfg.Fabric.RequestURL, core.APIKeyEnv),
		scenarios:  scenarios,
		thresholds: scenario.Thresholds(scenarios),
		policy:     cfg.AllOKPolicy(),
		now:        time.Now,
	}, nil
}

// Catalog assembles the model list for this invocation. A hot-model fetch
// failure degrades to the baseline-only catalog with a warning; it never
// fails the run.
func (r *Runner) Catalog(ctx context.Context) *catalog.Catalog {
	cat, err := catalog.BuildFromSource(ctx, r.source, catalog.Options{
		Baseline:        r.cfg.Catalog.Baseline,
		IncludeExtraHot: r.cfg.Catalog.IncludeHot,
		MaxExtraPerArch: r.cfg.Catalog.MaxExtraPerArch,
	})
	if err != nil {
		r.log.Warn("hot-model discovery failed, continuing with baseline catalog", zap.Error(err))
	}
	return cat
}

// Run executes one invocation in the given mode and returns its summary.
// maxModels caps how many catalog models a full run tests; zero means no
// cap. Cycle mode always tests exactly one.
func (r *Runner) Run(ctx context.Context, mode Mode, maxModels int) (*Summary, error) {
	started := r.now()
	cat := r.Catalog(ctx)
	if cat.Len() == 0 {
		r.log.Warn("empty catalog, nothing to test")
		return newSummary(started, 0, nil), nil
	}

	models := cat.Models
	if mode == ModeCycle {
		idx := r.cycle.Next(cat.Len())
		models = models[idx : idx+1]
		r.log.Info("cycle mode",
			zap.Int("pointer", idx),
			zap.Int("catalog_size", cat.Len()),
			zap.String("model", models[0].Key))
	} else {
		if maxModels > 0 && len(models) > maxModels {
			models = models[:maxModels]
		}
		r.log.Info("full mode", zap.Int("models", len(models)))
	}

	var results []status.Result
	for _, model := range models {
		results = append(results, r.runModel(ctx, model)...)
	}

	// The pointer means "next model to test", so it moves only after the
	// selected model's scenarios have all completed.
	if mode == ModeCycle {
		if err := r.cycle.Advance(cat.Len(), r.now()); err != nil {
			r.log.Error("cycle pointer not advanced; next run re-tests the same model", zap.Error(err))
		}
	}

	summary := newSummary(started, time.Since(started).Seconds(), results)
	r.log.Info("run complete",
		zap.Int("total", summary.Total),
		zap.Int("ok", summary.Counts[string(status.OK)]),
		zap.Int("failed", summary.Counts[string(status.Failed)]),
		zap.Int("unavailable", summary.Counts[string(status.Unavailable)]),
		zap.Float64("seconds", summary.DurationSeconds))
	return summary, nil
}

// runModel executes every scenario for one model, persisting each result
// as it lands. A failure here is recorded, never propagated: one broken
// model must not prevent the rest of the catalog from being tested.
func (r *Runner) runModel(ctx context.Context, model catalog.Model) []status.Result {
	r.log.Info("testing model", zap.String("model", model.Key))

	if _, err := r.repro.Generate(model.Key, r.scenarios); err != nil {
		r.log.Warn("repro scripts not generated", zap.String("model", model.Key), zap.Error(err))
	}

	results := make([]status.Result, 0, len(r.scenarios))
	for _, sc := range r.scenarios {
		raw := r.probes.Run(ctx, model, sc)
		res := status.Result{
			Model:      model.Key,
			Scenario:   sc.Name,
			Status:     status.Classify(sc.Name, raw.Outcome, raw.DurationMS, raw.Detail, r.thresholds),
			DurationMS: raw.DurationMS,
			Detail:     raw.Detail,
			CheckedAt:  r.now().UTC(),
		}
		if raw.Outcome == status.OutcomeError {
			res.Category = status.ClassifyError(raw.Detail)
		}
		results = append(results, res)
		r.record(res)

		r.log.Info("scenario result",
			zap.String("model", model.Key),
			zap.String("scenario", sc.Name),
			zap.String("status", string(res.Status)),
			zap.Int64("duration_ms", res.DurationMS))
	}
	return results
}

// record folds one result into the model's durable status and appends it
// to history. Write failures are loud but local: the prior durable state
// is left untouched and the run continues.
func (r *Runner) record(res status.Result) {
	ms, ok := r.statuses.Load(res.Model)
	if !ok {
		ms = status.NewModelStatus(res.Model)
	}
	ms.Apply(res, r.policy)
	if err := r.statuses.Save(ms); err != nil {
		r.log.Error("status not saved", zap.String("model", res.Model), zap.Error(err))
	}
	if err := r.history.Append(store.EntryFromResult(res)); err != nil {
		r.log.Error("history not appended", zap.String("model", res.Model), zap.Error(err))
	}
}

// Statuses returns every tracked model record, sorted by model key.
func (r *Runner) Statuses() []*status.ModelStatus {
	return r.statuses.List()
}

// History exposes the append-only log for aggregation passes.
func (r *Runner) History() *store.HistoryLog {
	return r.history
}
