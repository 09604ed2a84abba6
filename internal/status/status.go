package status

// Status is the health level of a single scenario run or of a whole model.
// The ranked order below is the single authoritative severity comparison:
// classification, aggregation and dashboard rendering all go through Worst.
type Status string

const (
	OK          Status = "OK"
	Slow        Status = "SLOW"
	Degraded    Status = "DEGRADED"
	Failed      Status = "FAILED"
	Unavailable Status = "UNAVAILABLE"
)

var severity = map[Status]int{
	OK:          0,
	Slow:        1,
	Degraded:    2,
	Failed:      3,
	Unavailable: 4,
}

// Rank returns the severity rank of s. Unknown statuses rank worst so a
// corrupt or future value is never displayed as healthy.
func (s Status) Rank() int {
	if r, ok := severity[s]; ok {
		return r
	}
	return len(severity)
}

func (s Status) Valid() bool {
	_, ok := severity[s]
	return ok
}

// IsFailure reports whether s belongs on the recent-failures list.
func (s Status) IsFailure() bool {
	return s == Failed || s == Degraded || s == Unavailable
}

// Worst returns the highest-severity status among the given statuses.
// With no arguments it returns OK.
func Worst(statuses ...Status) Status {
	worst := OK
	for _, s := range statuses {
		if s.Rank() > worst.Rank() {
			worst = s
		}
	}
	return worst
}

// Outcome is the raw result of a scenario execution, before classification.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial"
	OutcomeError   Outcome = "error"
)

// Classify maps a raw scenario outcome to a status level. thresholds maps
// scenario name to its SLOW threshold in milliseconds; a scenario with no
// threshold is never SLOW. Pure and deterministic.
func Classify(scenario string, outcome Outcome, durationMS int64, detail string, thresholds map[string]int64) Status {
	switch outcome {
	case OutcomeError:
		if ClassifyError(detail) == ErrModelNotLoaded {
			return Unavailable
		}
		return Failed
	case OutcomePartial:
		return Degraded
	}

	if t, ok := thresholds[scenario]; ok && t > 0 && durationMS > t {
		return Slow
	}
	return OK
}
