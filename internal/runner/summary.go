package runner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/probelab/fabmon/internal/status"
)

// Summary describes one completed invocation. It is written to the runs
// directory as an audit record and rendered by the CLI.
type Summary struct {
	StartedAt       time.Time       `json:"started_at"`
	DurationSeconds float64         `json:"duration_seconds"`
	Total           int             `json:"total"`
	Counts          map[string]int  `json:"counts"`
	Models          []string        `json:"models"`
	Results         []status.Result `json:"results"`
}

func newSummary(started time.Time, seconds float64, results []status.Result) *Summary {
	s := &Summary{
		StartedAt:       started.UTC(),
		DurationSeconds: seconds,
		Total:           len(results),
		Counts:          make(map[string]int),
		Results:         results,
	}
	seen := make(map[string]bool)
	for _, res := range results {
		s.Counts[string(res.Status)]++
		if !seen[res.Model] {
			seen[res.Model] = true
			s.Models = append(s.Models, res.Model)
		}
	}
	return s
}

// Worst returns the highest-severity status observed in the run.
func (s *Summary) Worst() status.Status {
	worst := status.OK
	for _, res := range s.Results {
		worst = status.Worst(worst, res.Status)
	}
	return worst
}

// SaveRunLog writes the summary to runs/run_<UTC stamp>.json. Run logs are
// an audit trail only; nothing reads them back, so a write failure is
// logged and swallowed.
func (r *Runner) SaveRunLog(s *Summary) {
	dir := r.cfg.RunsDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		r.log.Warn("run log not written", zap.Error(err))
		return
	}

	path := filepath.Join(dir, fmt.Sprintf("run_%s.json", s.StartedAt.Format("20060102_150405")))
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		r.log.Warn("run log not written", zap.Error(err))
		return
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		r.log.Warn("run log not written", zap.String("path", path), zap.Error(err))
		return
	}
	r.log.Debug("run log written", zap.String("path", path))
}
