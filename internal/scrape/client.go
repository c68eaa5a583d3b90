package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"creator_sync/internal/domain"
)

// Config holds job API client configuration.
type Config struct {
	BaseURL        string
	Token          string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Client talks to the external asynchronous scrape-job API. Runs execute out
// of band; the client only starts them and reads their results back.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	token          string
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:        cfg.BaseURL,
		token:          cfg.Token,
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		logger:         logger.With("component", "scrape_client"),
	}
}

// StartRun submits a job for the given actor and returns as soon as the API
// acknowledges it. Deliberately no retries here: a timed-out submit may still
// have started a run, and re-submitting would double it. Recovery from a
// failed submit is the next scheduler or health-monitor cycle.
func (c *Client) StartRun(ctx context.Context, actorID string, input map[string]any) (domain.RunHandle, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return domain.RunHandle{}, fmt.Errorf("marshal run input: %w", err)
	}

	url := fmt.Sprintf("%s/v2/acts/%s/runs?token=%s", c.baseURL, actorID, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return domain.RunHandle{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.RunHandle{}, fmt.Errorf("submit run: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return domain.RunHandle{}, fmt.Errorf("submit run: unexpected status %d", resp.StatusCode)
	}

	var env runEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return domain.RunHandle{}, fmt.Errorf("decode run response: %w", err)
	}
	if env.Data.ID == "" {
		return domain.RunHandle{}, fmt.Errorf("submit run: response carries no run id")
	}

	c.logger.Debug("run started", "actor", actorID, "run_id", env.Data.ID)

	return domain.RunHandle{RunID: env.Data.ID, DatasetID: env.Data.DefaultDatasetID}, nil
}

// RunStatus returns the current status and dataset id of a run.
func (c *Client) RunStatus(ctx context.Context, runID string) (string, string, error) {
	data, err := c.getRun(ctx, runID)
	if err != nil {
		return "", "", err
	}
	return data.Status, data.DefaultDatasetID, nil
}

// RunCost returns the accumulated USD cost of a run.
func (c *Client) RunCost(ctx context.Context, runID string) (float64, error) {
	data, err := c.getRun(ctx, runID)
	if err != nil {
		return 0, err
	}
	if data.UsageTotalUSD == nil {
		return 0, fmt.Errorf("run %s: cost unavailable", runID)
	}
	return *data.UsageTotalUSD, nil
}

// DatasetItems fetches up to limit records of a run's result dataset.
func (c *Client) DatasetItems(ctx context.Context, datasetID string, limit int) ([]RawItem, error) {
	url := fmt.Sprintf("%s/v2/datasets/%s/items?token=%s&format=json&clean=true&limit=%d",
		c.baseURL, datasetID, c.token, limit)

	var items []RawItem
	err := c.getJSON(ctx, url, &items)
	if err != nil {
		return nil, fmt.Errorf("fetch dataset %s: %w", datasetID, err)
	}
	return items, nil
}

func (c *Client) getRun(ctx context.Context, runID string) (*runData, error) {
	url := fmt.Sprintf("%s/v2/actor-runs/%s?token=%s", c.baseURL, runID, c.token)

	var env runEnvelope
	if err := c.getJSON(ctx, url, &env); err != nil {
		return nil, fmt.Errorf("fetch run %s: %w", runID, err)
	}
	return &env.Data, nil
}

// getJSON is a read-only GET with retry. Reads are safe to repeat, unlike
// run submission.
func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	var err error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		err = c.doGet(ctx, url, out)
		if err == nil {
			return nil
		}

		if attempt == c.maxAttempts {
			break
		}

		backoff := c.calculateBackoff(attempt)
		c.logger.Warn("request failed, retrying",
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	return fmt.Errorf("after %d attempts: %w", c.maxAttempts, err)
}

func (c *Client) doGet(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) calculateBackoff(attempt int) time.Duration {
	backoff := c.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if backoff > c.maxBackoff {
		backoff = c.maxBackoff
	}
	return backoff
}
