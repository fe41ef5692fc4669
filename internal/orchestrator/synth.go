package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"astro-rag/internal/llm"
	"astro-rag/internal/niche"
	"astro-rag/internal/passage"
	"astro-rag/pkg/logging/logging"
)

// Answer modes.
const (
	ModeDraft  = "draft"
	ModeExpand = "expand"
)

// Turn is one prior exchange in the conversation.
type Turn struct {
	UserMessage       string `json:"user_message"`
	AssistantResponse string `json:"assistant_response"`
}

// SynthesisInput is everything the synthesis step may use.
type SynthesisInput struct {
	Question   string
	Niche      string
	Complexity string
	Intent     string
	Mode       string
	ChartFocus []string
	Passages   []passage.Record
	History    []Turn
	// DraftHint is a previous answer for a structurally similar question.
	DraftHint string
}

type Synthesizer interface {
	Synthesize(ctx context.Context, in SynthesisInput) (string, error)
}

// SynthesizerFunc adapts a function to Synthesizer.
type SynthesizerFunc func(ctx context.Context, in SynthesisInput) (string, error)

func (f SynthesizerFunc) Synthesize(ctx context.Context, in SynthesisInput) (string, error) {
	return f(ctx, in)
}

var ErrEmptyAnswer = errors.New("synthesis returned an empty answer")

type LLMSynthesizerConfig struct {
	Model             string
	DraftMaxTokens    int     // default: 4000
	ExpandMaxTokens   int     // default: 6000
	DraftTemperature  float32 // default: 0.3
	ExpandTemperature float32 // default: 0.6
}

// LLMSynthesizer asks an OpenAI-compatible chat model for the final answer.
type LLMSynthesizer struct {
	client llm.Client
	cfg    LLMSynthesizerConfig
	logger *zap.Logger
}

func NewLLMSynthesizer(client llm.Client, cfg LLMSynthesizerConfig, logger *zap.Logger) *LLMSynthesizer {
	if cfg.DraftMaxTokens <= 0 {
		cfg.DraftMaxTokens = 4000
	}
	if cfg.ExpandMaxTokens <= 0 {
		cfg.ExpandMaxTokens = 6000
	}
	if cfg.DraftTemperature <= 0 {
		cfg.DraftTemperature = 0.3
	}
	if cfg.ExpandTemperature <= 0 {
		cfg.ExpandTemperature = 0.6
	}
	return &LLMSynthesizer{client: client, cfg: cfg, logger: logging.Or(logger).Named("synthesis")}
}

func (s *LLMSynthesizer) Synthesize(ctx context.Context, in SynthesisInput) (string, error) {
	req := &llm.ChatRequest{
		Model: s.cfg.Model,
		Messages: []llm.ChatMessage{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleUser, Content: buildPrompt(in)},
		},
		MaxTokens:   s.cfg.ExpandMaxTokens,
		Temperature: s.cfg.ExpandTemperature,
	}
	if in.Mode != ModeExpand {
		req.MaxTokens = s.cfg.DraftMaxTokens
		req.Temperature = s.cfg.DraftTemperature
	}

	resp, err := s.client.ChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("synthesize: %w", err)
	}
	answer := strings.TrimSpace(resp.Content)
	if answer == "" {
		return "", ErrEmptyAnswer
	}
	s.logger.Debug("synthesized answer",
		zap.String("model", resp.Model),
		zap.String("mode", in.Mode),
		zap.Int("passages", len(in.Passages)),
		zap.String("finish_reason", resp.FinishReason),
	)
	return answer, nil
}

const systemPrompt = "You are a master Vedic astrologer. Base every statement on the chart factors and classical references you are given. Do not invent placements."

const (
	draftReferenceRunes = 400
	draftChartRunes     = 800
	historyTurns        = 2
	historyRunes        = 80
)

func buildPrompt(in SynthesisInput) string {
	chart := strings.Join(in.ChartFocus, "\n")
	refs := formatReferences(in.Passages)
	draft := in.Mode != ModeExpand
	if draft {
		refs = clip(refs, draftReferenceRunes, "\n...(truncated)")
		chart = clip(chart, draftChartRunes, "\n...(truncated)")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Question:\n%s\n\n", in.Question)
	fmt.Fprintf(&b, "Niche: %s (intent: %s, complexity: %s)\n\n", in.Niche, in.Intent, in.Complexity)
	fmt.Fprintf(&b, "Chart data:\n%s\n\n", orNone(chart))
	fmt.Fprintf(&b, "Classical references:\n%s\n\n", orNone(refs))
	fmt.Fprintf(&b, "Recent conversation:\n%s\n\n", orNone(formatHistory(in.History)))
	if in.DraftHint != "" {
		fmt.Fprintf(&b, "Earlier answer for a similar chart and question, use only as a hint:\n%s\n\n", clip(in.DraftHint, draftReferenceRunes, "..."))
	}

	b.WriteString("Instructions:\n")
	if draft {
		b.WriteString("- Give a short direct answer, then 4-6 bullet points, then a one-line summary.\n")
	} else {
		b.WriteString("- Give a short direct answer, a detailed analysis citing the references inline, a summary and follow-up suggestions.\n")
	}
	if niche.IsTimingQuestion(in.Question) {
		b.WriteString("- Prioritize the running and upcoming Vimshottari dasha periods and give realistic date ranges.\n")
	}
	b.WriteString("- If the chart data is insufficient for a point, say what additional data would help.\n")
	return b.String()
}

func formatReferences(recs []passage.Record) string {
	lines := make([]string, 0, len(recs))
	for i, r := range recs {
		lines = append(lines, fmt.Sprintf("[%d] %s: %s", i+1, r.Source, strings.TrimSpace(r.Text)))
	}
	return strings.Join(lines, "\n")
}

func formatHistory(turns []Turn) string {
	if len(turns) > historyTurns {
		turns = turns[len(turns)-historyTurns:]
	}
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, fmt.Sprintf("- Q: %s\n  A: %s", clip(t.UserMessage, historyRunes, ""), clip(t.AssistantResponse, historyRunes, "")))
	}
	return strings.Join(lines, "\n")
}

func clip(s string, n int, suffix string) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + suffix
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "None"
	}
	return s
}
