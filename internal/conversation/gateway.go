package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wavecare-ai/wavecare-voice/pkg/logging"
)

// ErrGateway marks any completion-provider failure: timeout, transport error,
// or an empty response. Callers never surface it to the caller on the phone;
// the orchestrator substitutes a fixed apology instead.
var ErrGateway = errors.New("conversation: completion gateway failure")

// Gateway wraps a single completion call with a hard timeout. The timeout must
// stay well below the telephony provider's webhook deadline: a slow model has
// to degrade into a fallback reply, not into a retried webhook that would
// duplicate the turn.
type Gateway struct {
	client  LLMClient
	timeout time.Duration
	logger  *logging.Logger
}

// NewGateway creates a completion gateway around an LLM client.
func NewGateway(client LLMClient, timeout time.Duration, logger *logging.Logger) *Gateway {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Gateway{client: client, timeout: timeout, logger: logger}
}

// Complete runs the prompt through the completion provider and returns the
// raw response text. Any failure is reported as ErrGateway.
func (g *Gateway) Complete(ctx context.Context, prompt Prompt) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.client.Complete(ctx, LLMRequest{
		System:      []string{prompt.System},
		Messages:    prompt.Messages,
		MaxTokens:   512,
		Temperature: 0.4,
	})
	if err != nil {
		g.logger.Warn("completion failed",
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", fmt.Errorf("%w: %w", ErrGateway, err)
	}
	if resp.Text == "" {
		return "", fmt.Errorf("%w: empty completion", ErrGateway)
	}

	g.logger.Debug("completion succeeded",
		"elapsed_ms", time.Since(start).Milliseconds(),
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
	)
	return resp.Text, nil
}
