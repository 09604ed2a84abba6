package repro

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probelab/fabmon/internal/scenario"
)

func TestGenerate(t *testing.T) {
	dir := t.TempDir()
	gen := NewGenerator(dir, "https://api.modelfabric.dev/request", "FABRIC_API_KEY")

	paths, err := gen.Generate("meta-llama/Llama-3.1-8B", scenario.Defaults())
	require.NoError(t, err)
	require.Len(t, paths, 3)

	modelDir := filepath.Join(dir, "meta-llama--Llama-3.1-8B")
	for _, name := range []string{"basic_trace.sh", "generation.sh", "hidden_states.sh"} {
		assert.Contains(t, paths, filepath.Join(modelDir, name))
	}

	content, err := os.ReadFile(filepath.Join(modelDir, "basic_trace.sh"))
	require.NoError(t, err)
	script := string(content)

	assert.True(t, strings.HasPrefix(script, "#!/bin/sh"))
	assert.Contains(t, script, "https://api.modelfabric.dev/request")
	assert.Contains(t, script, "meta-llama/Llama-3.1-8B")
	assert.Contains(t, script, "$FABRIC_API_KEY")
	assert.Contains(t, script, `"kind":"trace"`)

	if runtime.GOOS != "windows" {
		info, err := os.Stat(filepath.Join(modelDir, "basic_trace.sh"))
		require.NoError(t, err)
		assert.NotZero(t, info.Mode()&0o111, "script must be executable")
	}
}

func TestGenerateOverwritesStaleScript(t *testing.T) {
	dir := t.TempDir()
	gen := NewGenerator(dir, "https://old.example/request", "FABRIC_API_KEY")

	_, err := gen.Generate("a/one", scenario.Defaults()[:1])
	require.NoError(t, err)

	gen = NewGenerator(dir, "https://new.example/request", "FABRIC_API_KEY")
	_, err = gen.Generate("a/one", scenario.Defaults()[:1])
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(dir, "a--one", "basic_trace.sh"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "https://new.example/request")
	assert.NotContains(t, string(content), "https://old.example/request")
}

func TestPayloadJSONEscapesSingleQuotes(t *testing.T) {
	out, err := payloadJSON("o'brien/model", scenario.Scenario{Name: scenario.BasicTrace})
	require.NoError(t, err)
	assert.Contains(t, out, `o'\''brien/model`)
}
