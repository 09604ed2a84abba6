package catalog

import (
	"strings"
)

// Architecture is the model family, used to spread cycle coverage across
// distinct deployments instead of testing five Llama variants in a row.
type Architecture string

const (
	ArchLlama    Architecture = "llama"
	ArchMistral  Architecture = "mistral"
	ArchQwen     Architecture = "qwen"
	ArchGPT2     Architecture = "gpt2"
	ArchGPTJ     Architecture = "gptj"
	ArchGPTNeoX  Architecture = "gpt_neox"
	ArchGemma    Architecture = "gemma"
	ArchOlmo     Architecture = "olmo"
	ArchPhi      Architecture = "phi"
	ArchDeepseek Architecture = "deepseek"
	ArchUnknown  Architecture = "unknown"
)

var archKeywords = []struct {
	keywords []string
	arch     Architecture
}{
	{[]string{"llama"}, ArchLlama},
	{[]string{"mistral"}, ArchMistral},
	{[]string{"qwen"}, ArchQwen},
	{[]string{"gpt2", "gpt-2"}, ArchGPT2},
	{[]string{"gptj", "gpt-j"}, ArchGPTJ},
	{[]string{"pythia", "gpt-neox"}, ArchGPTNeoX},
	{[]string{"gemma"}, ArchGemma},
	{[]string{"olmo"}, ArchOlmo},
	{[]string{"phi"}, ArchPhi},
	{[]string{"deepseek"}, ArchDeepseek},
}

// DetectArchitecture infers the model family from its key.
func DetectArchitecture(modelKey string) Architecture {
	lower := strings.ToLower(modelKey)
	for _, entry := range archKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.arch
			}
		}
	}
	return ArchUnknown
}

// Model describes one deployment on the fabric. The key has the form
// org/name and is the stable identity used everywhere.
type Model struct {
	Key          string       `json:"key"`
	Hot          bool         `json:"hot"`
	State        string       `json:"state"`
	NumParams    int64        `json:"n_params,omitempty"`
	Dedicated    bool         `json:"dedicated"`
	Architecture Architecture `json:"architecture"`
}

// Available reports whether the model is immediately usable.
func (m Model) Available() bool {
	return m.Hot && m.State == "RUNNING"
}

// ShortName strips the org prefix from the model key.
func (m Model) ShortName() string {
	if i := strings.LastIndex(m.Key, "/"); i >= 0 {
		return m.Key[i+1:]
	}
	return m.Key
}

// Filename converts a model key to a file-safe identifier: / becomes --
// and : becomes _. KeyFromFilename reverses it for keys without a literal
// underscore; readers that need the exact key use the record's model field.
func Filename(modelKey string) string {
	safe := strings.ReplaceAll(modelKey, "/", "--")
	safe = strings.ReplaceAll(safe, ":", "_")
	return safe + ".json"
}

// KeyFromFilename reverses Filename, mapping _ back to :. A key that
// itself contained an underscore comes back altered, which is tolerable
// because every stored record carries the exact key in its model field.
func KeyFromFilename(name string) string {
	key := strings.TrimSuffix(name, ".json")
	key = strings.ReplaceAll(key, "--", "/")
	return strings.ReplaceAll(key, "_", ":")
}
