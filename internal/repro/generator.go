package repro

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/probelab/fabmon/internal/catalog"
	"github.com/probelab/fabmon/internal/scenario"
)

const scriptTemplate = `#!/bin/sh
# Replays the {{.Scenario}} probe against {{.Model}}.
# Set {{.APIKeyEnv}} before running.

curl -sS -X POST '{{.RequestURL}}' \
  -H 'Content-Type: application/json' \
  -H "Authorization: Bearer ${{.APIKeyEnv}}" \
  -d '{{.Payload}}'
`

// Generator writes one executable shell script per (model, scenario) that
// replays the exact probe request against the fabric. The dashboard's
// failures list points at these scripts.
type Generator struct {
	dir        string
	requestURL string
	apiKeyEnv  string
	tmpl       *template.Template
}

func NewGenerator(dir, requestURL, apiKeyEnv string) *Generator {
	return &Generator{
		dir:        dir,
		requestURL: requestURL,
		apiKeyEnv:  apiKeyEnv,
		tmpl:       template.Must(template.New("repro").Parse(scriptTemplate)),
	}
}

// Generate writes the scripts for one model, overwriting stale copies.
// Returns the paths written.
func (g *Generator) Generate(model string, scenarios []scenario.Scenario) ([]string, error) {
	modelDir := filepath.Join(g.dir, strings.TrimSuffix(catalog.Filename(model), ".json"))
	if err := os.MkdirAll(modelDir, 0o755); err != nil {
		return nil, fmt.Errorf("create repro directory: %w", err)
	}

	var paths []string
	for _, sc := range scenarios {
		path := filepath.Join(modelDir, sc.Name+".sh")
		if err := g.writeScript(path, model, sc); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (g *Generator) writeScript(path, model string, sc scenario.Scenario) error {
	payload, err := payloadJSON(model, sc)
	if err != nil {
		return err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		return fmt.Errorf("create repro script: %w", err)
	}
	defer file.Close()

	data := struct {
		Model, Scenario, RequestURL, APIKeyEnv, Payload string
	}{
		Model:      model,
		Scenario:   sc.Name,
		RequestURL: g.requestURL,
		APIKeyEnv:  g.apiKeyEnv,
		Payload:    payload,
	}
	if err := g.tmpl.Execute(file, data); err != nil {
		return fmt.Errorf("write repro script: %w", err)
	}
	return nil
}

func payloadJSON(model string, sc scenario.Scenario) (string, error) {
	out, err := json.Marshal(scenario.Payload(model, sc))
	if err != nil {
		return "", fmt.Errorf("encode repro payload: %w", err)
	}
	// The body sits inside single quotes in the script.
	return strings.ReplaceAll(string(out), "'", `'\''`), nil
}
