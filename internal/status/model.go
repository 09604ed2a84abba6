package status

import (
	"time"
)

// maxDetailLen bounds stored error text so one traceback cannot bloat a
// status file.
const maxDetailLen = 500

// AllOKPolicy controls when a model's last_all_ok timestamp may advance.
type AllOKPolicy string

const (
	// AllOKStrict requires every scenario to be exactly OK.
	AllOKStrict AllOKPolicy = "strict"
	// AllOKAllowSlow treats SLOW scenarios as healthy for last_all_ok.
	AllOKAllowSlow AllOKPolicy = "allow-slow"
)

func (p AllOKPolicy) healthy(s Status) bool {
	if p == AllOKAllowSlow {
		return s == OK || s == Slow
	}
	return s == OK
}

// Result is one immutable (run, model, scenario) outcome after
// classification. It is appended to history and folded into the model's
// durable status, never mutated.
type Result struct {
	Model      string        `json:"model"`
	Scenario   string        `json:"scenario"`
	Status     Status        `json:"status"`
	DurationMS int64         `json:"duration_ms"`
	Category   ErrorCategory `json:"error_category,omitempty"`
	Detail     string        `json:"details,omitempty"`
	CheckedAt  time.Time     `json:"checked_at"`
}

// ScenarioEntry is the per-scenario slot inside a model's durable record.
type ScenarioEntry struct {
	Status      Status        `json:"status"`
	DurationMS  int64         `json:"duration_ms"`
	LastChecked time.Time     `json:"last_checked"`
	LastSuccess *time.Time    `json:"last_success,omitempty"`
	Category    ErrorCategory `json:"error_category,omitempty"`
	Detail      string        `json:"details,omitempty"`
}

// ModelStatus is the durable per-model record. OverallStatus is derived
// from the scenario entries but stored explicitly so the dashboard's
// current table displays exactly what was persisted.
type ModelStatus struct {
	Model         string                   `json:"model"`
	LastUpdated   time.Time                `json:"last_updated"`
	OverallStatus Status                   `json:"overall_status"`
	LastAllOK     *time.Time               `json:"last_all_ok,omitempty"`
	Scenarios     map[string]ScenarioEntry `json:"scenarios"`
}

// NewModelStatus returns a fresh record for a model with no prior state.
func NewModelStatus(model string) *ModelStatus {
	return &ModelStatus{
		Model:     model,
		Scenarios: make(map[string]ScenarioEntry),
	}
}

// ComputeOverall derives the worst status among all scenario entries. A
// record with no scenarios yet counts as UNAVAILABLE.
func (m *ModelStatus) ComputeOverall() Status {
	if len(m.Scenarios) == 0 {
		return Unavailable
	}
	worst := OK
	for _, e := range m.Scenarios {
		worst = Worst(worst, e.Status)
	}
	return worst
}

// Apply folds one scenario result into the record. The new result replaces
// the prior entry for that scenario, overall status is recomputed, and
// last_success / last_all_ok / last_updated only ever move forward.
func (m *ModelStatus) Apply(res Result, policy AllOKPolicy) {
	if m.Scenarios == nil {
		m.Scenarios = make(map[string]ScenarioEntry)
	}

	detail := res.Detail
	if len(detail) > maxDetailLen {
		detail = detail[:maxDetailLen] + "... [truncated]"
	}

	entry := ScenarioEntry{
		Status:      res.Status,
		DurationMS:  res.DurationMS,
		LastChecked: res.CheckedAt,
		Category:    res.Category,
		Detail:      detail,
	}

	if prev, ok := m.Scenarios[res.Scenario]; ok {
		entry.LastSuccess = prev.LastSuccess
		if prev.LastChecked.After(entry.LastChecked) {
			entry.LastChecked = prev.LastChecked
		}
	}
	if res.Status == OK || res.Status == Slow {
		entry.LastSuccess = laterOf(entry.LastSuccess, res.CheckedAt)
	}
	m.Scenarios[res.Scenario] = entry

	m.OverallStatus = m.ComputeOverall()
	if res.CheckedAt.After(m.LastUpdated) {
		m.LastUpdated = res.CheckedAt
	}

	allHealthy := true
	for _, e := range m.Scenarios {
		if !policy.healthy(e.Status) {
			allHealthy = false
			break
		}
	}
	if allHealthy {
		m.LastAllOK = laterOf(m.LastAllOK, res.CheckedAt)
	}
}

func laterOf(prev *time.Time, t time.Time) *time.Time {
	if prev != nil && prev.After(t) {
		return prev
	}
	return &t
}
