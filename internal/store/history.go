package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/probelab/fabmon/internal/status"
)

// historyDetailLen bounds per-line error text; the full detail lives in
// the per-model status file.
const historyDetailLen = 200

// HistoryEntry is one line of the append-only log. Keys are kept short on
// the wire because the log accumulates one entry per scenario per run,
// indefinitely.
type HistoryEntry struct {
	Timestamp time.Time            `json:"ts"`
	Model     string               `json:"m"`
	Scenario  string               `json:"s"`
	Status    status.Status        `json:"st"`
	Duration  int64                `json:"d"`
	Category  status.ErrorCategory `json:"ec,omitempty"`
	Detail    string               `json:"det,omitempty"`
}

// Day returns the entry's UTC calendar day as YYYY-MM-DD, the bucket key
// for heatmap aggregation.
func (e HistoryEntry) Day() string {
	return e.Timestamp.UTC().Format("2006-01-02")
}

// EntryFromResult converts a classified scenario result into its history
// line, truncating the detail.
func EntryFromResult(res status.Result) HistoryEntry {
	detail := res.Detail
	if len(detail) > historyDetailLen {
		detail = detail[:historyDetailLen]
	}
	return HistoryEntry{
		Timestamp: res.CheckedAt,
		Model:     res.Model,
		Scenario:  res.Scenario,
		Status:    res.Status,
		Duration:  res.DurationMS,
		Category:  res.Category,
		Detail:    detail,
	}
}

// HistoryLog is the append-only JSONL audit trail. Entries are never
// rewritten or deleted by the run path; every derived view is computed by
// a separate read pass.
type HistoryLog struct {
	path string
	log  *zap.Logger
}

func NewHistoryLog(path string, log *zap.Logger) (*HistoryLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	return &HistoryLog{path: path, log: log}, nil
}

func (h *HistoryLog) Path() string { return h.path }

// Append writes one complete line with a single O_APPEND write, so
// overlapping invocations can interleave entries but never tear one.
func (h *HistoryLog) Append(entry HistoryEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal history entry: %w", err)
	}
	line = append(line, '\n')

	f, err := os.OpenFile(h.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open history log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("append history entry: %w", err)
	}
	return nil
}

// Filter narrows a history read.
type Filter struct {
	Since    time.Time // zero means no lower bound
	Model    string
	Scenario string
}

// Load reads matching entries in file order (chronological for a single
// writer). Malformed lines are skipped, not fatal.
func (h *HistoryLog) Load(f Filter) ([]HistoryEntry, error) {
	file, err := os.Open(h.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open history log: %w", err)
	}
	defer file.Close()

	var entries []HistoryEntry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e HistoryEntry
		if err := json.Unmarshal(line, &e); err != nil {
			h.log.Debug("skipping malformed history line", zap.Error(err))
			continue
		}
		if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
			continue
		}
		if f.Model != "" && e.Model != f.Model {
			continue
		}
		if f.Scenario != "" && e.Scenario != f.Scenario {
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return entries, fmt.Errorf("scan history log: %w", err)
	}
	return entries, nil
}

// RecentFailures returns failure-class entries since the cutoff, newest
// first, capped at limit.
func (h *HistoryLog) RecentFailures(since time.Time, limit int) ([]HistoryEntry, error) {
	entries, err := h.Load(Filter{Since: since})
	if err != nil {
		return nil, err
	}
	var failures []HistoryEntry
	for _, e := range entries {
		if e.Status.IsFailure() {
			failures = append(failures, e)
		}
	}
	sort.SliceStable(failures, func(i, j int) bool {
		return failures[i].Timestamp.After(failures[j].Timestamp)
	})
	if limit > 0 && len(failures) > limit {
		failures = failures[:limit]
	}
	return failures, nil
}

// Prune rewrites the log keeping only entries newer than the cutoff.
// Retention maintenance only; never called from the run path. The rewrite
// goes through a temp file and rename so a crash cannot lose the log.
func (h *HistoryLog) Prune(cutoff time.Time) (int, error) {
	entries, err := h.Load(Filter{})
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	var kept []HistoryEntry
	for _, e := range entries {
		if !e.Timestamp.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	removed := len(entries) - len(kept)
	if removed == 0 {
		return 0, nil
	}

	tmp := h.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("write pruned history: %w", err)
	}
	w := bufio.NewWriter(f)
	for _, e := range kept {
		line, err := json.Marshal(e)
		if err != nil {
			f.Close()
			return 0, fmt.Errorf("marshal history entry: %w", err)
		}
		w.Write(line)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return 0, fmt.Errorf("flush pruned history: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("close pruned history: %w", err)
	}
	if err := os.Rename(tmp, h.path); err != nil {
		return 0, fmt.Errorf("replace history log: %w", err)
	}
	return removed, nil
}
