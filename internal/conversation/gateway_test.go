package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLLM struct {
	resp  LLMResponse
	err   error
	delay time.Duration

	gotReq LLMRequest
}

func (f *fakeLLM) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	f.gotReq = req
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return LLMResponse{}, ctx.Err()
		}
	}
	return f.resp, f.err
}

func TestGatewayCompleteReturnsText(t *testing.T) {
	llm := &fakeLLM{resp: LLMResponse{Text: "Hello there!", Usage: TokenUsage{InputTokens: 10}}}
	g := NewGateway(llm, time.Second, nil)

	text, err := g.Complete(context.Background(), Prompt{
		System:   "be brief",
		Messages: []ChatMessage{{Role: ChatRoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello there!", text)
	assert.Equal(t, []string{"be brief"}, llm.gotReq.System)
	assert.Len(t, llm.gotReq.Messages, 1)
}

func TestGatewayCompleteWrapsProviderError(t *testing.T) {
	llm := &fakeLLM{err: errors.New("rate limited")}
	g := NewGateway(llm, time.Second, nil)

	_, err := g.Complete(context.Background(), Prompt{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGateway)
}

func TestGatewayCompleteEmptyTextIsError(t *testing.T) {
	llm := &fakeLLM{resp: LLMResponse{Text: ""}}
	g := NewGateway(llm, time.Second, nil)

	_, err := g.Complete(context.Background(), Prompt{})
	assert.ErrorIs(t, err, ErrGateway)
}

func TestGatewayCompleteTimesOut(t *testing.T) {
	llm := &fakeLLM{resp: LLMResponse{Text: "too late"}, delay: 500 * time.Millisecond}
	g := NewGateway(llm, 20*time.Millisecond, nil)

	start := time.Now()
	_, err := g.Complete(context.Background(), Prompt{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGateway)
	assert.Less(t, time.Since(start), 400*time.Millisecond, "timeout should cut the call short")
}
