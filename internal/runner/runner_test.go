package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/probelab/fabmon/internal/catalog"
	"github.com/probelab/fabmon/internal/core"
	"github.com/probelab/fabmon/internal/scenario"
	"github.com/probelab/fabmon/internal/status"
	"github.com/probelab/fabmon/internal/store"
)

// scriptedProbes returns canned outcomes per (model, scenario) and records
// the order models were tested in.
type scriptedProbes struct {
	results map[string]scenario.Result // key: model|scenario
	tested  []string
}

func (p *scriptedProbes) Run(ctx context.Context, model catalog.Model, sc scenario.Scenario) scenario.Result {
	if len(p.tested) == 0 || p.tested[len(p.tested)-1] != model.Key {
		p.tested = append(p.tested, model.Key)
	}
	if res, ok := p.results[model.Key+"|"+sc.Name]; ok {
		return res
	}
	return scenario.Result{Outcome: status.OutcomeSuccess, DurationMS: 1200}
}

type fixedSource struct {
	models []catalog.Model
	err    error
}

func (s fixedSource) Deployments(ctx context.Context) ([]catalog.Model, error) {
	return s.models, s.err
}

func testConfig(t *testing.T, baseline ...string) *core.Config {
	t.Helper()
	if len(baseline) == 0 {
		baseline = []string{"a/one", "b/two", "c/three"}
	}
	return &core.Config{
		ResultsDir: t.TempDir(),
		LogLevel:   "info",
		Fabric: core.FabricConfig{
			StatusURL:  "https://fabric.test/status",
			RequestURL: "https://fabric.test/request",
		},
		Catalog: core.CatalogConfig{Baseline: baseline},
		Scenarios: []core.ScenarioConfig{
			{Name: "basic_trace", Timeout: time.Second, ThresholdMS: 30000},
			{Name: "generation", Timeout: time.Second, ThresholdMS: 45000},
		},
		Dashboard: core.DashboardConfig{
			Days:              7,
			FailureWindowDays: 7,
			FailureLimit:      10,
			RetentionDays:     400,
		},
	}
}

func newTestRunner(t *testing.T, cfg *core.Config, probes scenario.Runner) *Runner {
	t.Helper()
	r, err := New(cfg, zap.NewNop(), probes, fixedSource{})
	require.NoError(t, err)
	return r
}

func TestRunFullMode(t *testing.T) {
	cfg := testConfig(t)
	probes := &scriptedProbes{}
	r := newTestRunner(t, cfg, probes)

	summary, err := r.Run(context.Background(), ModeFull, 0)
	require.NoError(t, err)

	assert.Equal(t, []string{"a/one", "b/two", "c/three"}, probes.tested)
	assert.Equal(t, 6, summary.Total, "3 models x 2 scenarios")
	assert.Equal(t, 6, summary.Counts["OK"])
	assert.Equal(t, status.OK, summary.Worst())

	// Every model has a durable record.
	statuses := r.Statuses()
	require.Len(t, statuses, 3)
	for _, ms := range statuses {
		assert.Equal(t, status.OK, ms.OverallStatus)
		assert.Len(t, ms.Scenarios, 2)
	}

	// Every result is on the history log.
	entries, err := r.History().Load(store.Filter{})
	require.NoError(t, err)
	assert.Len(t, entries, 6)

	// Full mode does not touch the cycle pointer.
	_, err = os.Stat(cfg.CyclePath())
	assert.True(t, os.IsNotExist(err))
}

func TestRunCycleModeWalksCatalog(t *testing.T) {
	cfg := testConfig(t)

	// Each invocation gets a fresh runner over the same results
	// directory, like successive cron runs.
	var tested []string
	for i := 0; i < 4; i++ {
		probes := &scriptedProbes{}
		r := newTestRunner(t, cfg, probes)
		summary, err := r.Run(context.Background(), ModeCycle, 0)
		require.NoError(t, err)
		assert.Equal(t, 2, summary.Total, "one model, two scenarios")
		tested = append(tested, probes.tested...)
	}

	assert.Equal(t, []string{"a/one", "b/two", "c/three", "a/one"}, tested)
}

func TestRunCycleModeAdvancesAfterRun(t *testing.T) {
	cfg := testConfig(t)
	probes := &scriptedProbes{}
	r := newTestRunner(t, cfg, probes)

	_, err := r.Run(context.Background(), ModeCycle, 0)
	require.NoError(t, err)

	st := store.NewCycleStore(cfg.CyclePath(), zap.NewNop()).Load()
	assert.Equal(t, 1, st.Pointer, "pointer names the next model to test")
	assert.False(t, st.LastRunAt.IsZero())
}

func TestRunCycleModeResumesFromStoredPointer(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(cfg.ResultsDir, 0o755))
	require.NoError(t, os.WriteFile(cfg.CyclePath(), []byte(`{"pointer": 2}`), 0o644))

	probes := &scriptedProbes{}
	r := newTestRunner(t, cfg, probes)
	_, err := r.Run(context.Background(), ModeCycle, 0)
	require.NoError(t, err)

	assert.Equal(t, []string{"c/three"}, probes.tested)

	st := store.NewCycleStore(cfg.CyclePath(), zap.NewNop()).Load()
	assert.Equal(t, 0, st.Pointer, "pointer wraps after the last model")
}

func TestRunOneModelFailureDoesNotStopOthers(t *testing.T) {
	cfg := testConfig(t)
	probes := &scriptedProbes{
		results: map[string]scenario.Result{
			"b/two|basic_trace": {Outcome: status.OutcomeError, DurationMS: 50, Detail: "tensor shape mismatch"},
			"b/two|generation":  {Outcome: status.OutcomeError, DurationMS: 40, Detail: "model not loaded"},
		},
	}
	r := newTestRunner(t, cfg, probes)

	summary, err := r.Run(context.Background(), ModeFull, 0)
	require.NoError(t, err)

	assert.Equal(t, []string{"a/one", "b/two", "c/three"}, probes.tested)
	assert.Equal(t, 4, summary.Counts["OK"])
	assert.Equal(t, 1, summary.Counts["FAILED"])
	assert.Equal(t, 1, summary.Counts["UNAVAILABLE"])

	statuses := r.Statuses()
	require.Len(t, statuses, 3)
	assert.Equal(t, status.OK, statuses[0].OverallStatus)
	assert.Equal(t, status.Unavailable, statuses[1].OverallStatus)
	assert.Equal(t, status.OK, statuses[2].OverallStatus)

	// The failed scenario carries its classified category.
	bad := statuses[1].Scenarios["basic_trace"]
	assert.Equal(t, status.Failed, bad.Status)
	assert.Equal(t, status.ErrShapeMismatch, bad.Category)
}

func TestRunClassifiesSlow(t *testing.T) {
	cfg := testConfig(t, "a/one")
	probes := &scriptedProbes{
		results: map[string]scenario.Result{
			"a/one|basic_trace": {Outcome: status.OutcomeSuccess, DurationMS: 40000},
		},
	}
	r := newTestRunner(t, cfg, probes)

	summary, err := r.Run(context.Background(), ModeFull, 0)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Counts["SLOW"])
	assert.Equal(t, 1, summary.Counts["OK"])
}

func TestRunPartialClassifiesDegraded(t *testing.T) {
	cfg := testConfig(t, "a/one")
	probes := &scriptedProbes{
		results: map[string]scenario.Result{
			"a/one|generation": {Outcome: status.OutcomePartial, DurationMS: 5000, Detail: "returned 12 of 32 layers"},
		},
	}
	r := newTestRunner(t, cfg, probes)

	summary, err := r.Run(context.Background(), ModeFull, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Counts["DEGRADED"])
	assert.Equal(t, status.Degraded, r.Statuses()[0].OverallStatus)
}

func TestRunStateSurvivesAcrossInvocations(t *testing.T) {
	cfg := testConfig(t, "a/one")

	// First invocation fails, second succeeds. The record must show the
	// recovery while history keeps both.
	fail := &scriptedProbes{results: map[string]scenario.Result{
		"a/one|basic_trace": {Outcome: status.OutcomeError, Detail: "connection refused"},
		"a/one|generation":  {Outcome: status.OutcomeError, Detail: "connection refused"},
	}}
	r := newTestRunner(t, cfg, fail)
	_, err := r.Run(context.Background(), ModeFull, 0)
	require.NoError(t, err)
	require.Equal(t, status.Failed, r.Statuses()[0].OverallStatus)

	r2 := newTestRunner(t, cfg, &scriptedProbes{})
	_, err = r2.Run(context.Background(), ModeFull, 0)
	require.NoError(t, err)
	assert.Equal(t, status.OK, r2.Statuses()[0].OverallStatus)

	entries, err := r2.History().Load(store.Filter{})
	require.NoError(t, err)
	assert.Len(t, entries, 4, "history is append-only across invocations")
}

func TestRunWritesReproScripts(t *testing.T) {
	cfg := testConfig(t, "a/one")
	r := newTestRunner(t, cfg, &scriptedProbes{})

	_, err := r.Run(context.Background(), ModeFull, 0)
	require.NoError(t, err)

	script := filepath.Join(cfg.ReproDir(), "a--one", "basic_trace.sh")
	content, err := os.ReadFile(script)
	require.NoError(t, err)
	assert.Contains(t, string(content), "https://fabric.test/request")
}

func TestRunFullModeMaxModels(t *testing.T) {
	cfg := testConfig(t)
	probes := &scriptedProbes{}
	r := newTestRunner(t, cfg, probes)

	summary, err := r.Run(context.Background(), ModeFull, 2)
	require.NoError(t, err)

	assert.Equal(t, []string{"a/one", "b/two"}, probes.tested)
	assert.Equal(t, 4, summary.Total)
}

func TestRunEmptyCatalog(t *testing.T) {
	cfg := testConfig(t)
	cfg.Catalog.Baseline = nil

	r := newTestRunner(t, cfg, &scriptedProbes{})
	summary, err := r.Run(context.Background(), ModeFull, 0)
	require.NoError(t, err)
	assert.Zero(t, summary.Total)
}

func TestCatalogDegradesOnSourceError(t *testing.T) {
	cfg := testConfig(t)
	r, err := New(cfg, zap.NewNop(), &scriptedProbes{}, fixedSource{err: errors.New("fabric down")})
	require.NoError(t, err)

	cat := r.Catalog(context.Background())
	assert.Equal(t, []string{"a/one", "b/two", "c/three"}, cat.Keys())
}

func TestSaveRunLog(t *testing.T) {
	cfg := testConfig(t, "a/one")
	r := newTestRunner(t, cfg, &scriptedProbes{})

	summary, err := r.Run(context.Background(), ModeFull, 0)
	require.NoError(t, err)
	r.SaveRunLog(summary)

	entries, err := os.ReadDir(cfg.RunsDir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "run_")
}

func TestWriteDashboard(t *testing.T) {
	cfg := testConfig(t)
	probes := &scriptedProbes{
		results: map[string]scenario.Result{
			"b/two|generation": {Outcome: status.OutcomeError, Detail: "timed out after 90s"},
		},
	}
	r := newTestRunner(t, cfg, probes)

	_, err := r.Run(context.Background(), ModeFull, 0)
	require.NoError(t, err)
	require.NoError(t, r.WriteDashboard(time.Now()))

	_, err = os.Stat(filepath.Join(cfg.ResultsDir, "index.html"))
	assert.NoError(t, err)

	data, err := r.BuildDashboard(time.Now())
	require.NoError(t, err)
	assert.Equal(t, []string{"a/one", "b/two", "c/three"}, data.Models)
	require.Len(t, data.Failures, 1)
	assert.Equal(t, "b/two", data.Failures[0].Model)
	assert.Equal(t, "repro/b--two/generation.sh", data.Failures[0].ReproScript)
}

func TestBuildDashboardFailureWindowWiderThanHeatmap(t *testing.T) {
	cfg := testConfig(t, "a/one")
	cfg.Dashboard.Days = 2
	cfg.Dashboard.FailureWindowDays = 7
	r := newTestRunner(t, cfg, &scriptedProbes{})

	// A failure four days back: outside the heatmap span but inside the
	// failures window.
	fail := store.HistoryEntry{
		Timestamp: time.Now().UTC().AddDate(0, 0, -4),
		Model:     "a/one",
		Scenario:  "basic_trace",
		Status:    status.Failed,
		Detail:    "connection refused",
	}
	require.NoError(t, r.History().Append(fail))

	data, err := r.BuildDashboard(time.Now())
	require.NoError(t, err)

	require.Len(t, data.Failures, 1)
	assert.Equal(t, "a/one", data.Failures[0].Model)
	assert.Empty(t, data.Daily, "heatmap still honors its own span")
}

func TestRunPathNeverRewritesHistory(t *testing.T) {
	cfg := testConfig(t, "a/one")
	cfg.Dashboard.RetentionDays = 30
	r := newTestRunner(t, cfg, &scriptedProbes{})

	// An entry far past the retention window. Retention is a dedicated
	// maintenance operation; a run plus its dashboard rebuild only ever
	// appends to the log.
	old := store.HistoryEntry{
		Timestamp: time.Now().UTC().AddDate(0, 0, -120),
		Model:     "a/one",
		Scenario:  "basic_trace",
		Status:    status.Failed,
	}
	require.NoError(t, r.History().Append(old))

	_, err := r.Run(context.Background(), ModeFull, 0)
	require.NoError(t, err)
	require.NoError(t, r.WriteDashboard(time.Now()))

	entries, err := r.History().Load(store.Filter{})
	require.NoError(t, err)
	assert.Len(t, entries, 3, "old entry survives the run path")
	assert.Equal(t, old.Timestamp.Unix(), entries[0].Timestamp.Unix())
}

func TestPruneHistory(t *testing.T) {
	cfg := testConfig(t, "a/one")
	cfg.Dashboard.RetentionDays = 30
	r := newTestRunner(t, cfg, &scriptedProbes{})

	old := store.HistoryEntry{
		Timestamp: time.Now().UTC().AddDate(0, 0, -60),
		Model:     "a/one",
		Scenario:  "basic_trace",
		Status:    status.OK,
	}
	require.NoError(t, r.History().Append(old))

	_, err := r.Run(context.Background(), ModeFull, 0)
	require.NoError(t, err)

	r.PruneHistory(time.Now())

	entries, err := r.History().Load(store.Filter{})
	require.NoError(t, err)
	assert.Len(t, entries, 2, "only the fresh run survives the retention window")
}
