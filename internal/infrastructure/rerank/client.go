package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/smikhalev/support-rag/internal/infrastructure/resilience"
)

// Client scores passages against a query via an external cross-encoder
// service. A semaphore caps in-flight requests across all queries so a
// slow reranker cannot absorb every handler goroutine.
type Client struct {
	baseURL    string
	httpClient *http.Client
	slots      chan struct{}
	executor   *resilience.Executor
}

type Config struct {
	BaseURL       string
	Timeout       time.Duration
	MaxConcurrent int
}

func New(cfg Config, executor *resilience.Executor) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		slots:      make(chan struct{}, maxConcurrent),
		executor:   executor,
	}
}

type rerankRequest struct {
	Query string   `json:"query"`
	Texts []string `json:"texts"`
}

type rerankResponse struct {
	Scores []float64 `json:"scores"`
}

func (c *Client) Rerank(ctx context.Context, query string, passages []string) ([]float64, error) {
	if len(passages) == 0 {
		return nil, nil
	}

	// The slot is held across retries so the concurrency cap bounds
	// load on the sidecar, not just first attempts.
	select {
	case c.slots <- struct{}{}:
		defer func() { <-c.slots }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var scores []float64
	call := func(callCtx context.Context) error {
		var err error
		scores, err = c.doRerank(callCtx, query, passages)
		return err
	}

	if c.executor == nil {
		if err := call(ctx); err != nil {
			return nil, err
		}
		return scores, nil
	}
	if err := c.executor.Do(ctx, "rerank.score", classifyRerankError, call); err != nil {
		return nil, wrapTemporaryIfNeeded("rerank.score", err)
	}
	return scores, nil
}

func (c *Client) doRerank(ctx context.Context, query string, passages []string) ([]float64, error) {
	body, err := json.Marshal(rerankRequest{Query: query, Texts: passages})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &HTTPStatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(raw)),
		}
	}

	var result rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}
	if len(result.Scores) != len(passages) {
		return nil, fmt.Errorf("rerank returned %d scores for %d passages", len(result.Scores), len(passages))
	}
	return result.Scores, nil
}
