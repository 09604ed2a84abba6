package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// StatusSource reports the deployments currently known to the fabric.
type StatusSource interface {
	Deployments(ctx context.Context) ([]Model, error)
}

// Client fetches deployment status from the fabric's public status
// endpoint.
type Client struct {
	url    string
	client *http.Client
}

func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// statusResponse mirrors the status endpoint payload. Entries are
// duck-typed on the wire, so every field is optional and validated here.
type statusResponse struct {
	Deployments map[string]struct {
		RepoID           string `json:"repo_id"`
		DeploymentLevel  string `json:"deployment_level"`
		ApplicationState string `json:"application_state"`
		NumParams        int64  `json:"n_params"`
		Dedicated        bool   `json:"dedicated"`
	} `json:"deployments"`
}

// Deployments returns the validated model list. Malformed entries are
// dropped, not fatal: a broken record for one deployment must not hide the
// rest of the fabric.
func (c *Client) Deployments(ctx context.Context) ([]Model, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build status request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch fabric status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fabric status endpoint returned %d", resp.StatusCode)
	}

	var body statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode fabric status: %w", err)
	}

	models := make([]Model, 0, len(body.Deployments))
	for key, d := range body.Deployments {
		id := d.RepoID
		if id == "" {
			id = key
		}
		if id == "" {
			continue
		}
		models = append(models, Model{
			Key:          id,
			Hot:          d.DeploymentLevel == "HOT",
			State:        d.ApplicationState,
			NumParams:    d.NumParams,
			Dedicated:    d.Dedicated,
			Architecture: DetectArchitecture(id),
		})
	}
	return models, nil
}
