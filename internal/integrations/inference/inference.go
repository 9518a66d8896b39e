package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Dan9191/winprob-gateway/internal/config"
	"github.com/Dan9191/winprob-gateway/internal/models"
	"github.com/sirupsen/logrus"
)

// maxResponseBytes caps how much of a backend response is read.
const maxResponseBytes = 1 << 20

// ErrMalformedResponse is returned when the backend answers with something other than a JSON object.
var ErrMalformedResponse = errors.New("malformed inference response")

// Client forwards match-state payloads to the inference backend
type Client struct {
	url    string
	client *http.Client
	log    *logrus.Logger
}

// NewClient initializes a new inference client
func NewClient(cfg *config.Config, log *logrus.Logger) *Client {
	return &Client{
		url: cfg.InferenceURL,
		client: &http.Client{
			Timeout: cfg.InferenceTimeout,
		},
		log: log,
	}
}

// sendRequest posts the payload unchanged and returns the raw response body
func (c *Client) sendRequest(ctx context.Context, payload json.RawMessage) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status code: %d: %s", resp.StatusCode, truncate(body, 256))
	}

	c.log.Debugf("Inference response: %s", string(body))

	return body, nil
}

// parseResponse extracts per-team win probabilities.
// Missing or mistyped team fields yield absent values, not errors.
func parseResponse(raw []byte) (*models.PredictionResult, error) {
	var body map[string]json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if body == nil {
		return nil, fmt.Errorf("%w: response is null", ErrMalformedResponse)
	}

	return &models.PredictionResult{
		BattingTeam: teamProbability(body["batting_team"]),
		BowlingTeam: teamProbability(body["bowling_team"]),
	}, nil
}

func teamProbability(raw json.RawMessage) models.TeamProbability {
	var team map[string]json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &team) != nil {
		return models.TeamProbability{}
	}
	var p *float64
	if v, ok := team["winning_probability"]; ok && json.Unmarshal(v, &p) == nil {
		return models.TeamProbability{WinningProbability: p}
	}
	return models.TeamProbability{}
}

// Predict forwards the payload to the backend and normalizes its answer
func (c *Client) Predict(ctx context.Context, payload json.RawMessage) (*models.PredictionResult, error) {
	body, err := c.sendRequest(ctx, payload)
	if err != nil {
		return nil, err
	}
	return parseResponse(body)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
