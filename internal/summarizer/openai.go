package summarizer

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/time/rate"

	"github.com/rcliao/observational-memory/internal/config"
)

const (
	openAIDefaultModel = "gpt-4o-mini"
	openAIMaxRetries   = 3
	openAIBaseBackoff  = 2 * time.Second

	// One request per second, small burst. Extraction runs once per
	// session boundary; this only guards the degraded re-extraction
	// path from hammering the API.
	openAIRequestsPerSec = 1
	openAIBurst          = 2
)

// openAIClient is the OpenAI chat-completions backend.
type openAIClient struct {
	client  openai.Client
	limiter *rate.Limiter
	timeout time.Duration
}

func newOpenAIClient(cfg config.SummarizerConfig) (*openAIClient, error) {
	key := cfg.APIKey
	if key == "" {
		key = os.Getenv("OPENAI_API_KEY")
	}
	if key == "" {
		return nil, fmt.Errorf("openai summarizer: no API key (set summarizer.api_key or OPENAI_API_KEY)")
	}

	opts := []option.RequestOption{option.WithAPIKey(key)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	timeout := 120 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	return &openAIClient{
		client:  openai.NewClient(opts...),
		limiter: rate.NewLimiter(rate.Limit(openAIRequestsPerSec), openAIBurst),
		timeout: timeout,
	}, nil
}

func (c *openAIClient) complete(ctx context.Context, model, system, user string) (string, error) {
	if model == "" {
		model = openAIDefaultModel
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	}

	var lastErr error
	for attempt := 0; attempt <= openAIMaxRetries; attempt++ {
		if attempt > 0 {
			backoff := openAIBaseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		completion, err := c.client.Chat.Completions.New(ctx, params)
		if err != nil {
			lastErr = err
			continue
		}
		if len(completion.Choices) == 0 {
			lastErr = fmt.Errorf("empty completion")
			continue
		}
		return completion.Choices[0].Message.Content, nil
	}
	return "", fmt.Errorf("openai completion after %d attempts: %w", openAIMaxRetries+1, lastErr)
}
