package store

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
)

// CycleState is the persisted round-robin pointer. The stored pointer
// always means "next model to test": it is advanced only after a run for
// the selected model completes, so a crash mid-run re-tests the same model
// on the next invocation instead of skipping it.
type CycleState struct {
	Pointer   int       `json:"pointer"`
	LastRunAt time.Time `json:"last_run_at"`
}

// CycleStore persists the singleton cycle state as one JSON document.
type CycleStore struct {
	path string
	log  *zap.Logger
}

func NewCycleStore(path string, log *zap.Logger) *CycleStore {
	return &CycleStore{path: path, log: log}
}

// Load returns the persisted state. A missing or unreadable file is a cold
// start: pointer 0, never an error.
func (c *CycleStore) Load() CycleState {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.log.Warn("unreadable cycle state, starting from zero", zap.Error(err))
		}
		return CycleState{}
	}
	var st CycleState
	if err := json.Unmarshal(data, &st); err != nil {
		c.log.Warn("corrupt cycle state, starting from zero", zap.Error(err))
		return CycleState{}
	}
	if st.Pointer < 0 {
		st.Pointer = 0
	}
	return st
}

// Next returns the index the current invocation must test, clamped by
// modulo so a catalog that shrank since the pointer was written never
// produces an out-of-range index. It does not advance anything.
func (c *CycleStore) Next(catalogSize int) int {
	if catalogSize <= 0 {
		return 0
	}
	return c.Load().Pointer % catalogSize
}

// Advance persists pointer+1 (wrapping) together with the run timestamp,
// using the same temp-and-rename replacement as the status store.
func (c *CycleStore) Advance(catalogSize int, now time.Time) error {
	if catalogSize <= 0 {
		return nil
	}
	st := CycleState{
		Pointer:   (c.Load().Pointer%catalogSize + 1) % catalogSize,
		LastRunAt: now,
	}

	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal cycle state: %w", err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write cycle state temp file: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("replace cycle state: %w", err)
	}
	return nil
}
