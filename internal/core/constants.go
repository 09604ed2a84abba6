package core

const (
	Version = "0.3.0"

	DefaultStatusURL  = "https://api.modelfabric.dev/status"
	DefaultRequestURL = "https://api.modelfabric.dev/request"

	DefaultResultsDir = "results"

	// File names inside the results directory.
	ModelsDirName   = "models"
	RunsDirName     = "runs"
	ReproDirName    = "repro"
	HistoryFileName = "history.jsonl"
	CycleFileName   = "cycle_state.json"

	DefaultHeatmapDays       = 365
	DefaultFailureWindowDays = 7
	DefaultFailureLimit      = 10
	DefaultMaxExtraPerArch   = 1
	DefaultRetentionDays     = 400

	// APIKeyEnv is honored both from the environment and .env.local.
	APIKeyEnv = "FABRIC_API_KEY"
)

// DefaultBaselineModels are the always-tested canaries. They are probed
// even when the fabric does not report them hot, so a silently dropped
// deployment shows up as unavailable instead of vanishing from the
// dashboard.
var DefaultBaselineModels = []string{
	"openai-community/gpt2",
	"EleutherAI/gpt-j-6b",
	"meta-llama/Llama-2-7b-hf",
	"meta-llama/Llama-3.1-8B",
	"allenai/Olmo-3-1025-7B",
	"meta-llama/Llama-3.1-70B",
	"meta-llama/Llama-3.1-70B-Instruct",
	"meta-llama/Llama-3.3-70B-Instruct",
	"meta-llama/Llama-3.1-405B-Instruct",
}
