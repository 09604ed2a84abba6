package scenario

import (
	"context"
	"time"

	"github.com/probelab/fabmon/internal/catalog"
	"github.com/probelab/fabmon/internal/status"
)

// Canonical scenario names.
const (
	BasicTrace   = "basic_trace"
	Generation   = "generation"
	HiddenStates = "hidden_states"
)

// Scenario is one named probe run against every tested model.
type Scenario struct {
	Name        string
	Description string
	Timeout     time.Duration // execution cutoff, owned by the runner
	ThresholdMS int64         // SLOW threshold, consumed by the classifier
}

// Defaults returns the standard probe suite.
func Defaults() []Scenario {
	return []Scenario{
		{
			Name:        BasicTrace,
			Description: "single-layer trace with hidden state extraction",
			Timeout:     90 * time.Second,
			ThresholdMS: 30000,
		},
		{
			Name:        Generation,
			Description: "short text generation",
			Timeout:     90 * time.Second,
			ThresholdMS: 45000,
		},
		{
			Name:        HiddenStates,
			Description: "hidden states from all layers",
			Timeout:     120 * time.Second,
			ThresholdMS: 60000,
		},
	}
}

// Thresholds extracts the per-scenario SLOW thresholds for the classifier.
func Thresholds(scenarios []Scenario) map[string]int64 {
	t := make(map[string]int64, len(scenarios))
	for _, s := range scenarios {
		t[s.Name] = s.ThresholdMS
	}
	return t
}

// Result is the raw, unclassified outcome of one scenario execution.
type Result struct {
	Outcome    status.Outcome
	DurationMS int64
	Detail     string
}

// Runner executes one scenario against one model. Implementations own
// their timeout and retry policy; the monitor core only records the
// outcome and duration it is handed.
type Runner interface {
	Run(ctx context.Context, model catalog.Model, sc Scenario) Result
}
