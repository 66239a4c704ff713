// Package ai provides advisory bonus-point suggestions for user feedback. Suggestions are
// never authoritative: an admin always enters the awarded amount explicitly.
package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// Suggestion is a suggested point range for a piece of feedback.
type Suggestion struct {
	Min       int64  `json:"min"`
	Max       int64  `json:"max"`
	Reasoning string `json:"reasoning"`
}

// Suggester returns a suggested bonus range for feedback text.
type Suggester interface {
	SuggestBonusRange(ctx context.Context, feedback string) (*Suggestion, error)
}

const suggestPrompt = `You help moderators of a points-based prediction game reward user feedback.
Read the feedback and suggest how many bonus points it deserves.
Small typo reports or vague praise: 5-20. Concrete usability issues: 20-80.
Reproducible bugs or well argued feature proposals: 80-200.
Answer in exactly two lines and nothing else:
RANGE: <min>-<max>
REASON: <one sentence>`

// GeminiSuggester asks a Gemini model for a range.
type GeminiSuggester struct {
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewGeminiSuggester creates a suggester. An empty apiKey falls back to the GOOGLE_API_KEY /
// GEMINI_API_KEY environment variables read by the genai client.
func NewGeminiSuggester(apiKey, model string, logger *zap.Logger) *GeminiSuggester {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GeminiSuggester{
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		logger:     logger,
	}
}

// SuggestBonusRange implements Suggester.
func (g *GeminiSuggester) SuggestBonusRange(ctx context.Context, feedback string) (*Suggestion, error) {
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		return nil, fmt.Errorf("%w: empty feedback", ErrParseFailed)
	}
	start := time.Now()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     g.apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: g.httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}

	parts := []*genai.Part{
		genai.NewPartFromText(suggestPrompt),
		genai.NewPartFromText("Feedback:\n" + feedback),
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}
	temp := float32(0)
	res, err := client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		Temperature: &temp,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	raw := res.Text()
	s, err := ParseSuggestion(raw)
	if err != nil {
		g.logger.Warn("bonus suggestion unparseable",
			zap.String("model", g.model), zap.Int("len", len(raw)), zap.Error(err))
		return nil, err
	}
	g.logger.Debug("bonus suggestion",
		zap.String("model", g.model), zap.Int64("min", s.Min), zap.Int64("max", s.Max),
		zap.Duration("took", time.Since(start)))
	return s, nil
}
