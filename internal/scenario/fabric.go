package scenario

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/probelab/fabmon/internal/catalog"
	"github.com/probelab/fabmon/internal/status"
)

const probePrompt = "The quick brown fox jumps over the lazy dog"

// Request is the body posted to the fabric's request endpoint. The same
// payload is embedded into reproduction scripts, so it must stay
// self-contained.
type Request struct {
	Model        string `json:"model"`
	Kind         string `json:"kind"`
	Prompt       string `json:"prompt"`
	Layers       string `json:"layers,omitempty"`
	MaxNewTokens int    `json:"max_new_tokens,omitempty"`
}

// Payload builds the request body for a (model, scenario) pair.
func Payload(model string, sc Scenario) Request {
	switch sc.Name {
	case Generation:
		return Request{Model: model, Kind: "generate", Prompt: probePrompt, MaxNewTokens: 20}
	case HiddenStates:
		return Request{Model: model, Kind: "trace", Prompt: probePrompt, Layers: "all"}
	default:
		return Request{Model: model, Kind: "trace", Prompt: probePrompt, Layers: "0"}
	}
}

type response struct {
	Status         string `json:"status"`
	Error          string `json:"error,omitempty"`
	Output         string `json:"output,omitempty"`
	LayersReturned int    `json:"layers_returned,omitempty"`
	LayersExpected int    `json:"layers_expected,omitempty"`
}

// FabricRunner executes scenarios over the fabric's HTTP request API.
type FabricRunner struct {
	url    string
	apiKey string
	client *http.Client
}

func NewFabricRunner(url, apiKey string) *FabricRunner {
	return &FabricRunner{
		url:    url,
		apiKey: apiKey,
		// Per-call deadlines come from the scenario timeout via context.
		client: &http.Client{},
	}
}

// Run posts the scenario request and interprets the reply. Every failure
// mode is folded into the Result; Run never returns an error because a
// scenario failure is data, not a process fault.
func (f *FabricRunner) Run(ctx context.Context, model catalog.Model, sc Scenario) Result {
	start := time.Now()
	done := func(outcome status.Outcome, detail string) Result {
		return Result{
			Outcome:    outcome,
			DurationMS: time.Since(start).Milliseconds(),
			Detail:     detail,
		}
	}

	if sc.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, sc.Timeout)
		defer cancel()
	}

	body, err := json.Marshal(Payload(model.Key, sc))
	if err != nil {
		return done(status.OutcomeError, fmt.Sprintf("encode request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
	if err != nil {
		return done(status.OutcomeError, fmt.Sprintf("build request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if f.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.apiKey)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return done(status.OutcomeError, fmt.Sprintf("timed out after %s", sc.Timeout))
		}
		return done(status.OutcomeError, fmt.Sprintf("connection error: %v", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return done(status.OutcomeError, fmt.Sprintf("read response: %v", err))
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return done(status.OutcomeError, fmt.Sprintf("unauthorized (%d): %s", resp.StatusCode, firstLine(raw)))
	case http.StatusNotFound:
		return done(status.OutcomeError, fmt.Sprintf("model not available: %s", firstLine(raw)))
	default:
		return done(status.OutcomeError, fmt.Sprintf("request failed (%d): %s", resp.StatusCode, firstLine(raw)))
	}

	var parsed response
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return done(status.OutcomeError, fmt.Sprintf("decode response: %v", err))
	}
	if parsed.Status != "ok" {
		detail := parsed.Error
		if detail == "" {
			detail = fmt.Sprintf("fabric reported status %q", parsed.Status)
		}
		return done(status.OutcomeError, detail)
	}

	// A hidden-states reply that came back short is a partial result.
	if sc.Name == HiddenStates && parsed.LayersExpected > 0 && parsed.LayersReturned < parsed.LayersExpected {
		return done(status.OutcomePartial,
			fmt.Sprintf("returned %d of %d layers", parsed.LayersReturned, parsed.LayersExpected))
	}

	return done(status.OutcomeSuccess, "")
}

func firstLine(raw []byte) string {
	for i, b := range raw {
		if b == '\n' {
			raw = raw[:i]
			break
		}
	}
	if len(raw) > 200 {
		raw = raw[:200]
	}
	return string(raw)
}
