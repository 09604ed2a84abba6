package models

import (
	"time"
)

// DashboardData is the JSON artifact consumed by the static dashboard
// renderer. It is recomputed in full on every aggregation pass and safe to
// discard and rebuild.
type DashboardData struct {
	Generated time.Time                 `json:"generated"`
	Days      int                       `json:"days"`
	Dates     []string                  `json:"dates"`
	Models    []string                  `json:"models"`
	Daily     map[string]map[string]Day `json:"daily"`
	Current   []CurrentRow              `json:"current"`
	Failures  []Failure                 `json:"failures"`
}

// Day is one heatmap cell: the worst status observed for a model on one
// UTC calendar day, plus the per-scenario breakdown. Days with no entries
// have no cell at all, which the renderer shows as "no data".
type Day struct {
	Status    string            `json:"status"`
	Scenarios map[string]string `json:"scenarios"`
}

// CurrentRow is one row of the current-status table, copied verbatim from
// the model's persisted record rather than re-derived from history.
type CurrentRow struct {
	Model         string                  `json:"model"`
	OverallStatus string                  `json:"overall_status"`
	LastUpdated   time.Time               `json:"last_updated"`
	LastAllOK     *time.Time              `json:"last_all_ok,omitempty"`
	Scenarios     map[string]ScenarioCell `json:"scenarios"`
}

type ScenarioCell struct {
	Status      string     `json:"status"`
	DurationMS  int64      `json:"duration_ms"`
	LastChecked time.Time  `json:"last_checked"`
	LastSuccess *time.Time `json:"last_success,omitempty"`
}

// Failure is one recent failure with enough identity for the renderer to
// construct a reproduction link.
type Failure struct {
	Timestamp   time.Time `json:"timestamp"`
	Model       string    `json:"model"`
	Scenario    string    `json:"scenario"`
	Status      string    `json:"status"`
	Category    string    `json:"error_category,omitempty"`
	Detail      string    `json:"details,omitempty"`
	ReproScript string    `json:"repro_script,omitempty"`
}
