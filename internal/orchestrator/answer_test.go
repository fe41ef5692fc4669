package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"astro-rag/internal/cache"
	"astro-rag/internal/classify"
	"astro-rag/internal/passage"
	"astro-rag/internal/retrieval"
)

type recordingSynth struct {
	mu     sync.Mutex
	inputs []SynthesisInput
	err    error
}

func (s *recordingSynth) Synthesize(_ context.Context, in SynthesisInput) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputs = append(s.inputs, in)
	if s.err != nil {
		return "", s.err
	}
	return "Your spouse will be warm and principled.", nil
}

func (s *recordingSynth) calls() []SynthesisInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SynthesisInput(nil), s.inputs...)
}

func newAnswerer(t *testing.T, r retrieval.Retriever, s Synthesizer) *Answerer {
	t.Helper()
	mgr := newManager(t)
	return NewAnswerer(nil, mgr, newOrchestrator(t, mgr, r), s, AnswererConfig{}, zaptest.NewLogger(t))
}

func testChart() map[string]any {
	return map[string]any{
		"7th_house_sign":    "Aries",
		"7th_lord":          "Jupiter",
		"venus_sign":        "Libra",
		"moon_sign":         "Cancer",
		"darakaraka_planet": "Venus",
	}
}

func TestAnswer_FullFlowThenCaches(t *testing.T) {
	t.Parallel()

	r := &countingRetriever{}
	s := &recordingSynth{}
	a := newAnswerer(t, r, s)
	ctx := context.Background()
	req := Request{SessionID: "s1", Niche: "love", Question: "What is my spouse's nature?", Chart: testChart()}

	resp, err := a.Answer(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "Your spouse will be warm and principled.", resp.Answer)
	assert.Equal(t, love, resp.Niche)
	assert.Equal(t, classify.Simple, resp.Complexity)
	assert.Equal(t, "personality", resp.Intent)
	assert.False(t, resp.L1Hit)
	assert.False(t, resp.L2Hit)
	assert.True(t, resp.RAGUsed)
	assert.Equal(t, len(resp.Passages), resp.PassagesUsed)
	assert.LessOrEqual(t, resp.PassagesUsed, classify.ProfileFor(classify.Simple).PassageLimit)
	require.Len(t, resp.Queries, 2)
	assert.Equal(t, req.Question, resp.Queries[0])
	require.NotEmpty(t, resp.ChartFocus)
	assert.Equal(t, "7th house sign: Aries", resp.ChartFocus[0])
	require.NotNil(t, resp.Retrieval)
	assert.Equal(t, 2, resp.Retrieval.DeepFactorCount)
	assert.GreaterOrEqual(t, resp.Retrieval.BroadFactorCount, 3)
	for _, k := range []string{"classification_ms", "chart_focus_ms", "query_generation_ms", "retrieval_ms", "synthesis_ms", "total_ms"} {
		assert.Contains(t, resp.Latencies, k)
	}

	first := s.calls()
	require.Len(t, first, 1)
	assert.Equal(t, ModeDraft, first[0].Mode)
	assert.Empty(t, first[0].DraftHint)
	assert.Equal(t, resp.Passages, first[0].Passages)
	retrievals := r.calls.Load()

	again, err := a.Answer(ctx, req)
	require.NoError(t, err)
	assert.True(t, again.L2Hit)
	assert.Equal(t, resp.Answer, again.Answer)
	assert.Len(t, s.calls(), 1, "an exact repeat never reaches synthesis")
	assert.Equal(t, retrievals, r.calls.Load())

	req.History = []Turn{{UserMessage: "Hi", AssistantResponse: "Hello"}}
	similar, err := a.Answer(ctx, req)
	require.NoError(t, err)
	assert.False(t, similar.L2Hit)
	assert.True(t, similar.L1Hit)
	assert.Nil(t, similar.Retrieval)
	assert.Equal(t, retrievals, r.calls.Load(), "a bucket hit skips retrieval")
	assert.Equal(t, resp.Passages, similar.Passages)

	calls := s.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, resp.Answer, calls[1].DraftHint)
	assert.Equal(t, req.History, calls[1].History)
}

func TestAnswer_SynthesisFailureIsReturned(t *testing.T) {
	t.Parallel()

	boom := errors.New("model overloaded")
	r := &countingRetriever{}
	a := newAnswerer(t, r, &recordingSynth{err: boom})
	req := Request{SessionID: "s1", Niche: "love", Question: "What is my spouse's nature?", Chart: testChart()}

	_, err := a.Answer(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	before := r.calls.Load()
	a.synth = &recordingSynth{}
	resp, err := a.Answer(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, resp.L1Hit, "a failed answer writes no bucket entry")
	assert.False(t, resp.L2Hit)
	assert.Greater(t, r.calls.Load(), before)
}

func TestAnswer_NoPassagesStillAnswers(t *testing.T) {
	t.Parallel()

	r := retrieval.RetrieverFunc(func(context.Context, []retrieval.Query) (passage.List, error) {
		return nil, errors.New("index offline")
	})
	s := &recordingSynth{}
	a := newAnswerer(t, r, s)
	req := Request{SessionID: "s1", Niche: "career", Question: "What is my spouse's nature?", Chart: testChart(), Mode: ModeExpand}

	resp, err := a.Answer(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, resp.RAGUsed)
	assert.Zero(t, resp.PassagesUsed)
	assert.Equal(t, ModeExpand, s.calls()[0].Mode)

	req.History = []Turn{{UserMessage: "again"}}
	resp, err = a.Answer(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, resp.L1Hit, "empty retrievals are not cached at the bucket level")
}

func TestAnswer_EmptyQuestion(t *testing.T) {
	t.Parallel()

	a := newAnswerer(t, &countingRetriever{}, &recordingSynth{})
	_, err := a.Answer(context.Background(), Request{Niche: "love"})
	assert.ErrorIs(t, err, ErrEmptyQuestion)
}

func TestSelectFactors(t *testing.T) {
	t.Parallel()

	chart := map[string]any{"venus_sign": "Libra", "7th_lord": "", "moon_sign": "Cancer"}
	all := []string{"venus_sign", "7th_lord", "jupiter_mahadasha_marriage", "moon_sign"}

	tests := []struct {
		name   string
		timing []string
		limit  int
		want   []string
	}{
		{"present only", nil, 10, []string{"venus_sign", "moon_sign"}},
		{"timing pseudo factors kept", []string{"jupiter_mahadasha_marriage"}, 10, []string{"venus_sign", "jupiter_mahadasha_marriage", "moon_sign"}},
		{"limit", []string{"jupiter_mahadasha_marriage"}, 2, []string{"venus_sign", "jupiter_mahadasha_marriage"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, selectFactors(all, chart, tt.timing, tt.limit))
		})
	}
}

func TestAnswer_PromptHashCoversMode(t *testing.T) {
	t.Parallel()

	s := &recordingSynth{}
	a := newAnswerer(t, &countingRetriever{}, s)
	req := Request{SessionID: "s1", Niche: "love", Question: "What is my spouse's nature?", Chart: testChart()}

	_, err := a.Answer(context.Background(), req)
	require.NoError(t, err)
	req.Mode = ModeExpand
	resp, err := a.Answer(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, resp.L2Hit, "draft and expanded answers are cached separately")
	assert.Len(t, s.calls(), 2)
}

func TestAnswerer_RetrieveSkipsCachesAndSynthesis(t *testing.T) {
	t.Parallel()

	r := &countingRetriever{}
	s := &recordingSynth{}
	a := newAnswerer(t, r, s)
	ctx := context.Background()
	req := Request{SessionID: "s1", Niche: "love", Question: "What is my spouse's nature?", Chart: testChart()}

	plan, res, err := a.Retrieve(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, love, plan.Niche)
	assert.Equal(t, classify.Simple, plan.Classification.Complexity)
	assert.Len(t, plan.Retrieve.Deep, 2)
	assert.Equal(t, plan.Retrieve.Deep, plan.Retrieve.Broad[:2])
	assert.Equal(t, classify.ProfileFor(classify.Simple).PassageLimit, plan.Retrieve.TopK)
	assert.NotEmpty(t, res.Passages)
	assert.Empty(t, s.calls())

	_, ok := a.cache.GetLevel1(ctx, cache.IntentBucket(req.Question, love), cache.ChartBucket(req.Chart, ""))
	assert.False(t, ok, "retrieval alone never writes the bucket cache")

	_, _, err = a.Retrieve(ctx, Request{Niche: "love"})
	assert.ErrorIs(t, err, ErrEmptyQuestion)
}
