package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/smikhalev/support-rag/internal/core/domain"
	"github.com/smikhalev/support-rag/internal/infrastructure/resilience"
)

// Client talks to a local Ollama instance. Generation runs on one of
// two models depending on the routed tier; embeddings use a dedicated
// embedding model. Unary calls go through the resilience executor,
// streaming calls do not: a broken stream cannot be replayed without
// duplicating already-delivered text.
type Client struct {
	baseURL    string
	fastModel  string
	deepModel  string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Config struct {
	BaseURL    string
	FastModel  string
	DeepModel  string
	EmbedModel string
	Timeout    time.Duration
}

func New(cfg Config, executor *resilience.Executor) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		fastModel:  cfg.FastModel,
		deepModel:  cfg.DeepModel,
		embedModel: cfg.EmbedModel,
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}
}

func (c *Client) modelFor(tier domain.ModelTier) string {
	if tier == domain.TierDeep {
		return c.deepModel
	}
	return c.fastModel
}

func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": c.embedModel,
		"input": texts,
	}
	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	err := c.execute(ctx, "ollama.embed", func(callCtx context.Context) error {
		return c.postJSON(callCtx, "/api/embed", request, &response, "embed")
	})
	if err != nil {
		return nil, wrapTemporaryIfNeeded("embed", err)
	}
	if len(response.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed count mismatch: got %d vectors for %d inputs", len(response.Embeddings), len(texts))
	}
	return response.Embeddings, nil
}

func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

func (c *Client) Complete(ctx context.Context, prompt string, tier domain.ModelTier) (string, domain.TokenUsage, error) {
	request := map[string]any{
		"model":  c.modelFor(tier),
		"prompt": prompt,
		"stream": false,
	}
	var response generateChunk
	err := c.execute(ctx, "ollama.generate", func(callCtx context.Context) error {
		return c.postJSON(callCtx, "/api/generate", request, &response, "generate")
	})
	if err != nil {
		return "", domain.TokenUsage{}, wrapTemporaryIfNeeded("generate", err)
	}
	return strings.TrimSpace(response.Response), response.usage(), nil
}

func (c *Client) CompleteStream(
	ctx context.Context,
	prompt string,
	tier domain.ModelTier,
	onDelta func(string) error,
) (domain.TokenUsage, error) {
	request := map[string]any{
		"model":  c.modelFor(tier),
		"prompt": prompt,
		"stream": true,
	}

	var usage domain.TokenUsage
	err := c.postStream(ctx, "/api/generate", request, "generate", func(chunk generateChunk) error {
		if chunk.Response != "" {
			if err := onDelta(chunk.Response); err != nil {
				return err
			}
		}
		if chunk.Done {
			usage = chunk.usage()
		}
		return nil
	})
	if err != nil {
		return domain.TokenUsage{}, wrapTemporaryIfNeeded("generate stream", err)
	}
	return usage, nil
}

func (c *Client) execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	if c.executor == nil {
		return fn(ctx)
	}
	return c.executor.Do(ctx, operation, classifyOllamaError, fn)
}

// generateChunk is one /api/generate response object: the entire
// response in non-stream mode, or a single JSONL line in stream mode.
type generateChunk struct {
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

func (g generateChunk) usage() domain.TokenUsage {
	return domain.TokenUsage{
		Input:  g.PromptEvalCount,
		Output: g.EvalCount,
	}
}
