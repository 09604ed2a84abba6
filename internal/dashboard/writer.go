package dashboard

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/probelab/fabmon/pkg/models"
)

//go:embed assets/index.html
var indexHTML []byte

// Render serializes the dashboard data model. Separated from writing so
// determinism can be checked byte-for-byte.
func Render(data *models.DashboardData) ([]byte, error) {
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal dashboard data: %w", err)
	}
	return append(out, '\n'), nil
}

// WriteArtifacts places the dashboard artifact set under resultsDir:
// data/status.json (atomic replace) and the static index.html that loads
// it. Copying the set elsewhere is the deploy collaborator's job.
func WriteArtifacts(resultsDir string, data *models.DashboardData) error {
	rendered, err := Render(data)
	if err != nil {
		return err
	}

	dataDir := filepath.Join(resultsDir, "data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create dashboard data directory: %w", err)
	}

	target := filepath.Join(dataDir, "status.json")
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, rendered, 0o644); err != nil {
		return fmt.Errorf("write dashboard data: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("replace dashboard data: %w", err)
	}

	if err := os.WriteFile(filepath.Join(resultsDir, "index.html"), indexHTML, 0o644); err != nil {
		return fmt.Errorf("write dashboard page: %w", err)
	}
	return nil
}
