package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/probelab/fabmon/internal/status"
)

func newHistoryLog(t *testing.T) *HistoryLog {
	t.Helper()
	h, err := NewHistoryLog(filepath.Join(t.TempDir(), "history.jsonl"), zap.NewNop())
	require.NoError(t, err)
	return h
}

func entry(model, scenario string, st status.Status, at time.Time) HistoryEntry {
	return HistoryEntry{
		Timestamp: at,
		Model:     model,
		Scenario:  scenario,
		Status:    st,
		Duration:  1500,
	}
}

func TestHistoryAppendLoad(t *testing.T) {
	h := newHistoryLog(t)
	base := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)

	require.NoError(t, h.Append(entry("a/one", "basic_trace", status.OK, base)))
	require.NoError(t, h.Append(entry("a/one", "generation", status.Failed, base.Add(time.Minute))))
	require.NoError(t, h.Append(entry("b/two", "basic_trace", status.Slow, base.Add(2*time.Minute))))

	all, err := h.Load(Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a/one", all[0].Model, "file order is preserved")
	assert.Equal(t, status.Slow, all[2].Status)
}

func TestHistoryLoadFilters(t *testing.T) {
	h := newHistoryLog(t)
	base := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)

	require.NoError(t, h.Append(entry("a/one", "basic_trace", status.OK, base)))
	require.NoError(t, h.Append(entry("a/one", "generation", status.OK, base.Add(time.Hour))))
	require.NoError(t, h.Append(entry("b/two", "basic_trace", status.OK, base.Add(2*time.Hour))))

	byModel, err := h.Load(Filter{Model: "a/one"})
	require.NoError(t, err)
	assert.Len(t, byModel, 2)

	byScenario, err := h.Load(Filter{Scenario: "generation"})
	require.NoError(t, err)
	assert.Len(t, byScenario, 1)

	since, err := h.Load(Filter{Since: base.Add(30 * time.Minute)})
	require.NoError(t, err)
	assert.Len(t, since, 2)
}

func TestHistoryLoadMissingFile(t *testing.T) {
	h := newHistoryLog(t)
	entries, err := h.Load(Filter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestHistoryLoadSkipsMalformedLines(t *testing.T) {
	h := newHistoryLog(t)
	base := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	require.NoError(t, h.Append(entry("a/one", "basic_trace", status.OK, base)))

	// Simulate a torn write from a crashed invocation.
	f, err := os.OpenFile(h.Path(), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"ts":"2026-08-26T11:` + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, h.Append(entry("b/two", "basic_trace", status.OK, base.Add(time.Hour))))

	entries, err := h.Load(Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a/one", entries[0].Model)
	assert.Equal(t, "b/two", entries[1].Model)
}

func TestHistoryRecentFailures(t *testing.T) {
	h := newHistoryLog(t)
	base := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)

	require.NoError(t, h.Append(entry("a/one", "basic_trace", status.OK, base)))
	require.NoError(t, h.Append(entry("a/one", "generation", status.Failed, base.Add(time.Minute))))
	require.NoError(t, h.Append(entry("b/two", "basic_trace", status.Degraded, base.Add(2*time.Minute))))
	require.NoError(t, h.Append(entry("c/three", "basic_trace", status.Unavailable, base.Add(3*time.Minute))))
	require.NoError(t, h.Append(entry("d/four", "basic_trace", status.Slow, base.Add(4*time.Minute))))

	failures, err := h.RecentFailures(base, 2)
	require.NoError(t, err)
	require.Len(t, failures, 2)
	assert.Equal(t, "c/three", failures[0].Model, "newest failure first")
	assert.Equal(t, "b/two", failures[1].Model)
}

func TestHistoryDay(t *testing.T) {
	// 23:30 in UTC-5 is already the next UTC day.
	loc := time.FixedZone("UTC-5", -5*3600)
	e := HistoryEntry{Timestamp: time.Date(2026, 8, 25, 23, 30, 0, 0, loc)}
	assert.Equal(t, "2026-08-26", e.Day())
}

func TestHistoryPrune(t *testing.T) {
	h := newHistoryLog(t)
	base := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)

	require.NoError(t, h.Append(entry("a/one", "basic_trace", status.OK, base.AddDate(0, 0, -500))))
	require.NoError(t, h.Append(entry("a/one", "basic_trace", status.OK, base.AddDate(0, 0, -10))))
	require.NoError(t, h.Append(entry("a/one", "basic_trace", status.OK, base)))

	removed, err := h.Prune(base.AddDate(0, 0, -400))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	kept, err := h.Load(Filter{})
	require.NoError(t, err)
	require.Len(t, kept, 2)

	// Entry exactly at the cutoff is kept.
	removed, err = h.Prune(base.AddDate(0, 0, -10))
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

func TestHistoryEntryFromResultTruncatesDetail(t *testing.T) {
	res := status.Result{
		Model:     "a/one",
		Scenario:  "basic_trace",
		Status:    status.Failed,
		Detail:    strings.Repeat("y", 1000),
		CheckedAt: time.Now(),
	}
	e := EntryFromResult(res)
	assert.Len(t, e.Detail, historyDetailLen)
}
