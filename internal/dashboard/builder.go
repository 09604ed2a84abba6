package dashboard

import (
	"sort"
	"strings"
	"time"

	"github.com/probelab/fabmon/internal/catalog"
	"github.com/probelab/fabmon/internal/status"
	"github.com/probelab/fabmon/internal/store"
	"github.com/probelab/fabmon/pkg/models"
)

// Options bounds the aggregation windows.
type Options struct {
	Days           int           // heatmap span in calendar days
	FailureWindow  time.Duration // how far back the failures list reaches
	FailureLimit   int           // max entries on the failures list
	IncludeScripts bool          // attach repro script paths to failures
}

// Build aggregates persisted model statuses and raw history into the
// dashboard data model. Pure: no I/O, and identical inputs (including now)
// produce an identical result, so rendering twice is byte-identical.
func Build(statuses []*status.ModelStatus, entries []store.HistoryEntry, now time.Time, opts Options) *models.DashboardData {
	if opts.Days <= 0 {
		opts.Days = 1
	}
	today := now.UTC().Truncate(24 * time.Hour)
	start := today.AddDate(0, 0, -(opts.Days - 1))

	dates := make([]string, 0, opts.Days)
	for d := 0; d < opts.Days; d++ {
		dates = append(dates, start.AddDate(0, 0, d).Format("2006-01-02"))
	}

	daily := buildDaily(entries, start)

	modelSet := make(map[string]bool)
	for _, ms := range statuses {
		modelSet[ms.Model] = true
	}
	for _, byModel := range daily {
		for m := range byModel {
			modelSet[m] = true
		}
	}
	allModels := make([]string, 0, len(modelSet))
	for m := range modelSet {
		allModels = append(allModels, m)
	}
	sort.Strings(allModels)

	return &models.DashboardData{
		Generated: now.UTC(),
		Days:      opts.Days,
		Dates:     dates,
		Models:    allModels,
		Daily:     daily,
		Current:   buildCurrent(statuses),
		Failures:  buildFailures(entries, now, opts),
	}
}

// buildDaily reduces raw history to one cell per (day, model): the cell's
// status is the worst status among every entry for that model on that day,
// and the scenario breakdown is the worst per scenario. Days without
// entries get no cell.
func buildDaily(entries []store.HistoryEntry, start time.Time) map[string]map[string]models.Day {
	daily := make(map[string]map[string]models.Day)
	for _, e := range entries {
		if e.Timestamp.Before(start) {
			continue
		}
		day := e.Day()
		byModel, ok := daily[day]
		if !ok {
			byModel = make(map[string]models.Day)
			daily[day] = byModel
		}
		cell, ok := byModel[e.Model]
		if !ok {
			cell = models.Day{Status: string(status.OK), Scenarios: make(map[string]string)}
		}
		cell.Status = string(status.Worst(status.Status(cell.Status), e.Status))
		if prev, ok := cell.Scenarios[e.Scenario]; ok {
			cell.Scenarios[e.Scenario] = string(status.Worst(status.Status(prev), e.Status))
		} else {
			cell.Scenarios[e.Scenario] = string(e.Status)
		}
		byModel[e.Model] = cell
	}
	return daily
}

// buildCurrent copies the persisted records verbatim: the displayed
// overall_status must be the stored value, not something re-derived from
// history.
func buildCurrent(statuses []*status.ModelStatus) []models.CurrentRow {
	rows := make([]models.CurrentRow, 0, len(statuses))
	for _, ms := range statuses {
		row := models.CurrentRow{
			Model:         ms.Model,
			OverallStatus: string(ms.OverallStatus),
			LastUpdated:   ms.LastUpdated,
			LastAllOK:     ms.LastAllOK,
			Scenarios:     make(map[string]models.ScenarioCell, len(ms.Scenarios)),
		}
		for name, e := range ms.Scenarios {
			row.Scenarios[name] = models.ScenarioCell{
				Status:      string(e.Status),
				DurationMS:  e.DurationMS,
				LastChecked: e.LastChecked,
				LastSuccess: e.LastSuccess,
			}
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Model < rows[j].Model })
	return rows
}

func buildFailures(entries []store.HistoryEntry, now time.Time, opts Options) []models.Failure {
	cutoff := now.Add(-opts.FailureWindow)
	var failures []models.Failure
	for _, e := range entries {
		if !e.Status.IsFailure() || e.Timestamp.Before(cutoff) {
			continue
		}
		f := models.Failure{
			Timestamp: e.Timestamp,
			Model:     e.Model,
			Scenario:  e.Scenario,
			Status:    string(e.Status),
			Category:  string(e.Category),
			Detail:    e.Detail,
		}
		if opts.IncludeScripts {
			f.ReproScript = ScriptPath(e.Model, e.Scenario)
		}
		failures = append(failures, f)
	}
	sort.SliceStable(failures, func(i, j int) bool {
		if !failures[i].Timestamp.Equal(failures[j].Timestamp) {
			return failures[i].Timestamp.After(failures[j].Timestamp)
		}
		if failures[i].Model != failures[j].Model {
			return failures[i].Model < failures[j].Model
		}
		return failures[i].Scenario < failures[j].Scenario
	})
	if opts.FailureLimit > 0 && len(failures) > opts.FailureLimit {
		failures = failures[:opts.FailureLimit]
	}
	return failures
}

// ScriptPath is the artifact-relative location of the reproduction script
// for one (model, scenario) pair.
func ScriptPath(model, scenario string) string {
	dir := strings.TrimSuffix(catalog.Filename(model), ".json")
	return "repro/" + dir + "/" + scenario + ".sh"
}
