package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/probelab/fabmon/internal/catalog"
	"github.com/probelab/fabmon/internal/status"
)

// StatusStore keeps one JSON document per model under dir. Each model is an
// independently replaceable resource, so concurrent invocations touching
// different models never conflict.
type StatusStore struct {
	dir string
	log *zap.Logger
}

func NewStatusStore(dir string, log *zap.Logger) (*StatusStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create status directory: %w", err)
	}
	return &StatusStore{dir: dir, log: log}, nil
}

func (s *StatusStore) Path(model string) string {
	return filepath.Join(s.dir, catalog.Filename(model))
}

// Load reads a model's durable record. A missing or corrupt file yields
// (nil, false): the model is treated as fresh, never as an error, so one
// unreadable record cannot take down a run.
func (s *StatusStore) Load(model string) (*status.ModelStatus, bool) {
	data, err := os.ReadFile(s.Path(model))
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("unreadable status file, treating model as fresh",
				zap.String("model", model), zap.Error(err))
		}
		return nil, false
	}

	var ms status.ModelStatus
	if err := json.Unmarshal(data, &ms); err != nil {
		s.log.Warn("corrupt status file, treating model as fresh",
			zap.String("model", model), zap.Error(err))
		return nil, false
	}
	if ms.Model == "" {
		ms.Model = model
	}
	return &ms, true
}

// Save atomically replaces the model's record: marshal, write a temp file
// in the same directory, then rename over the target. A crash at any point
// leaves either the old or the new record, never a torn one.
func (s *StatusStore) Save(ms *status.ModelStatus) error {
	data, err := json.MarshalIndent(ms, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal status for %s: %w", ms.Model, err)
	}

	target := s.Path(ms.Model)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write status temp file: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("replace status file: %w", err)
	}
	return nil
}

// List loads every model record in the store, sorted by model key. Files
// that do not parse are skipped.
func (s *StatusStore) List() []*status.ModelStatus {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.log.Warn("cannot list status directory", zap.Error(err))
		return nil
	}

	var statuses []*status.ModelStatus
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
			continue
		}
		if ms, ok := s.Load(catalog.KeyFromFilename(name)); ok {
			statuses = append(statuses, ms)
		}
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Model < statuses[j].Model })
	return statuses
}
