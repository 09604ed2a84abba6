package status

import (
	"regexp"
	"strings"
)

// ErrorCategory buckets scenario error text into actionable diagnostics.
// Only ErrModelNotLoaded influences the status level (UNAVAILABLE instead
// of FAILED); the rest are carried along for the failures list.
type ErrorCategory string

const (
	ErrModelNotLoaded ErrorCategory = "MODEL_NOT_LOADED"
	ErrSerialization  ErrorCategory = "SERIALIZATION_ERROR"
	ErrTimeout        ErrorCategory = "TIMEOUT"
	ErrShapeMismatch  ErrorCategory = "SHAPE_MISMATCH"
	ErrValue          ErrorCategory = "VALUE_ERROR"
	ErrConnection     ErrorCategory = "CONNECTION_ERROR"
	ErrAuth           ErrorCategory = "AUTH_ERROR"
	ErrUnknown        ErrorCategory = "UNKNOWN"
)

var errorPatterns = []struct {
	re       *regexp.Regexp
	category ErrorCategory
}{
	{regexp.MustCompile(`not whitelisted|whitelist|serializ|pickle|marshal`), ErrSerialization},
	{regexp.MustCompile(`timeout|timed out|deadline exceeded`), ErrTimeout},
	{regexp.MustCompile(`connection|network|unreachable|refused`), ErrConnection},
	{regexp.MustCompile(`auth|api.key|unauthorized|forbidden|401|403`), ErrAuth},
	{regexp.MustCompile(`not loaded|not available|not deployed|not found.*model`), ErrModelNotLoaded},
	{regexp.MustCompile(`shape|dimension|size mismatch|expected.*got`), ErrShapeMismatch},
	{regexp.MustCompile(`nan|inf|invalid value|value error`), ErrValue},
}

// ClassifyError matches error text against known signatures. The first
// matching pattern wins; order matters (a serialization failure that also
// mentions the model name must not count as MODEL_NOT_LOADED).
func ClassifyError(text string) ErrorCategory {
	if text == "" {
		return ErrUnknown
	}
	lower := strings.ToLower(text)
	for _, p := range errorPatterns {
		if p.re.MatchString(lower) {
			return p.category
		}
	}
	return ErrUnknown
}
