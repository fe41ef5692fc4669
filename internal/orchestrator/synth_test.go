package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"astro-rag/internal/llm"
	"astro-rag/internal/passage"
)

type fakeChat struct {
	req     *llm.ChatRequest
	content string
	err     error
}

func (f *fakeChat) ChatCompletion(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ChatResponse{Model: req.Model, Content: f.content, FinishReason: "stop"}, nil
}

func (f *fakeChat) Embeddings(context.Context, *llm.EmbeddingRequest) (*llm.EmbeddingResponse, error) {
	return nil, errors.New("not used")
}

func TestLLMSynthesizer_Modes(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{content: "  Jupiter blesses the marriage.  "}
	s := NewLLMSynthesizer(chat, LLMSynthesizerConfig{Model: "gpt-4o-mini"}, zaptest.NewLogger(t))

	got, err := s.Synthesize(context.Background(), SynthesisInput{Question: "Tell me about my spouse", Mode: ModeDraft})
	require.NoError(t, err)
	assert.Equal(t, "Jupiter blesses the marriage.", got)
	assert.Equal(t, 4000, chat.req.MaxTokens)
	assert.InDelta(t, 0.3, chat.req.Temperature, 1e-6)
	require.Len(t, chat.req.Messages, 2)
	assert.Equal(t, llm.RoleSystem, chat.req.Messages[0].Role)
	assert.NoError(t, chat.req.Validate())

	_, err = s.Synthesize(context.Background(), SynthesisInput{Question: "Tell me about my spouse", Mode: ModeExpand})
	require.NoError(t, err)
	assert.Equal(t, 6000, chat.req.MaxTokens)
	assert.InDelta(t, 0.6, chat.req.Temperature, 1e-6)
}

func TestLLMSynthesizer_Errors(t *testing.T) {
	t.Parallel()

	boom := errors.New("upstream 503")
	s := NewLLMSynthesizer(&fakeChat{err: boom}, LLMSynthesizerConfig{Model: "m"}, nil)
	_, err := s.Synthesize(context.Background(), SynthesisInput{Question: "q"})
	assert.ErrorIs(t, err, boom)

	s = NewLLMSynthesizer(&fakeChat{content: "   "}, LLMSynthesizerConfig{Model: "m"}, nil)
	_, err = s.Synthesize(context.Background(), SynthesisInput{Question: "q"})
	assert.ErrorIs(t, err, ErrEmptyAnswer)
}

func TestBuildPrompt(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("Saturn delays but does not deny. ", 30)
	in := SynthesisInput{
		Question:   "When will I marry?",
		Niche:      love,
		Intent:     "timing",
		Complexity: "MODERATE",
		ChartFocus: []string{"7th lord: Jupiter", "Venus sign: Libra"},
		Passages:   []passage.Record{{Text: long, Source: "BPHS"}},
		History: []Turn{
			{UserMessage: "first", AssistantResponse: "one"},
			{UserMessage: "second", AssistantResponse: "two"},
			{UserMessage: "third", AssistantResponse: "three"},
		},
		DraftHint: "Marriage likely in Jupiter antardasha.",
	}

	draft := buildPrompt(in)
	assert.Contains(t, draft, "When will I marry?")
	assert.Contains(t, draft, "7th lord: Jupiter\nVenus sign: Libra")
	assert.Contains(t, draft, "[1] BPHS: Saturn delays")
	assert.Contains(t, draft, "...(truncated)")
	assert.NotContains(t, draft, "Q: first", "only the last two turns are kept")
	assert.Contains(t, draft, "Q: third")
	assert.Contains(t, draft, "Marriage likely in Jupiter antardasha.")
	assert.Contains(t, draft, "dasha periods", "timing questions get timing guidance")

	in.Mode = ModeExpand
	expanded := buildPrompt(in)
	assert.NotContains(t, expanded, "...(truncated)")
	assert.Contains(t, expanded, strings.TrimSpace(long))

	empty := buildPrompt(SynthesisInput{Question: "Tell me about Venus"})
	assert.Contains(t, empty, "Chart data:\nNone")
	assert.NotContains(t, empty, "dasha periods")
}
