package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang-news-aggregator/internal/aggregator/apperrors"
	"golang-news-aggregator/internal/aggregator/config"
	"golang-news-aggregator/internal/aggregator/dto"
	"golang-news-aggregator/internal/entity"
	"golang-news-aggregator/pkg/logger"
	"golang-news-aggregator/pkg/ratelimit"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// geminiAIRepository implements AIRepository against the Google Gemini API.
// The genai client counts tokens for the per-minute token budget; the
// generateContent call itself goes over plain HTTP so response status codes
// can be classified for the retry policy.
type geminiAIRepository struct {
	client         *http.Client
	cfg            *config.Config
	logger         *logger.Logger
	tokenLimiter   *ratelimit.TokenLimiter
	requestLimiter *rate.Limiter
	genAiClient    *genai.Client
	taxonomyNames  []string
}

// NewGeminiAIRepository creates a Gemini-backed AI repository. taxonomyNames
// is the canonical tag list embedded in tagging prompts.
func NewGeminiAIRepository(cfg *config.Config, log *logger.Logger, genAiClient *genai.Client, taxonomyNames []string) (AIRepository, error) {
	secondsPerRequest := time.Minute / time.Duration(cfg.Gemini.MaxRequestPerMinute)
	requestLimiter := rate.NewLimiter(rate.Every(secondsPerRequest), 1)
	tokenLimiter := ratelimit.NewTokenLimiter(cfg.Gemini.MaxTokenPerMinute)

	return &geminiAIRepository{
		client: &http.Client{
			Timeout: 90 * time.Second,
		},
		cfg:            cfg,
		logger:         log,
		requestLimiter: requestLimiter,
		tokenLimiter:   tokenLimiter,
		genAiClient:    genAiClient,
		taxonomyNames:  taxonomyNames,
	}, nil
}

// Summarize generates a summary for the article in the requested mode.
func (r *geminiAIRepository) Summarize(ctx context.Context, article *entity.Article, mode entity.SummaryMode) (*dto.SummaryResult, error) {
	prompt := BuildSummarizePrompt(article, mode)

	started := time.Now()
	raw, err := r.executeGeminiRequest(ctx, "summarize", prompt)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Summary     string   `json:"summary"`
		BulletTexts []string `json:"bullet_texts"`
		Error       string   `json:"error"`
	}
	if err := json.Unmarshal([]byte(stripJSONFences(raw)), &parsed); err != nil {
		return nil, apperrors.NewTransient("summarize", "malformed model output", err)
	}
	if parsed.Error != "" || parsed.Summary == "" {
		return nil, apperrors.NewPersistent("summarize", "content rejected by model", nil)
	}

	return &dto.SummaryResult{
		Text:        parsed.Summary,
		BulletTexts: parsed.BulletTexts,
		WordCount:   len(strings.Fields(parsed.Summary)),
		ModelID:     r.cfg.Gemini.Model,
		LatencyMs:   time.Since(started).Milliseconds(),
	}, nil
}

// Tag produces raw (label, confidence) pairs for the article.
func (r *geminiAIRepository) Tag(ctx context.Context, article *entity.Article, summaryText string) ([]dto.RawTag, error) {
	prompt := BuildTagPrompt(article, summaryText, r.taxonomyNames)

	raw, err := r.executeGeminiRequest(ctx, "tag", prompt)
	if err != nil {
		return nil, err
	}

	var parsed dto.GeminiTagResponse
	if err := json.Unmarshal([]byte(stripJSONFences(raw)), &parsed); err != nil {
		return nil, apperrors.NewTransient("tag", "malformed model output", err)
	}
	return parsed.Tags, nil
}

func (r *geminiAIRepository) executeGeminiRequest(ctx context.Context, stage, prompt string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, "user"),
	}
	tokenResp, err := r.genAiClient.Models.CountTokens(ctx, r.cfg.Gemini.Model, contents, nil)
	if err != nil {
		return "", apperrors.NewTransient(stage, "failed to count tokens", err)
	}

	r.logger.Debug("Gemini token count",
		logger.IntField("total_tokens", int(tokenResp.TotalTokens)),
		logger.IntField("remaining", r.tokenLimiter.GetRemaining()),
	)

	if err := r.tokenLimiter.Wait(ctx, int(tokenResp.TotalTokens)); err != nil {
		return "", apperrors.NewTransient(stage, "token budget wait interrupted", err)
	}
	if err := r.requestLimiter.Wait(ctx); err != nil {
		return "", apperrors.NewTransient(stage, "request rate wait interrupted", err)
	}

	payload := dto.GeminiAPIRequest{
		Contents: []dto.Content{{Parts: []dto.Part{{Text: prompt}}}},
	}
	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return "", apperrors.NewPersistent(stage, "failed to marshal request payload", err)
	}

	apiURL := fmt.Sprintf("%s/%s:generateContent?key=%s", r.cfg.Gemini.BaseURL, r.cfg.Gemini.Model, r.cfg.Gemini.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewBuffer(jsonPayload))
	if err != nil {
		return "", apperrors.NewPersistent(stage, "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", err
		}
		return "", apperrors.NewTransient(stage, "request to Gemini API failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		reason := fmt.Sprintf("non-OK response from Gemini API: %d - %s", resp.StatusCode, string(body))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return "", apperrors.NewTransient(stage, reason, nil)
		}
		return "", apperrors.NewPersistent(stage, reason, nil)
	}

	var geminiResp dto.GeminiAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&geminiResp); err != nil {
		return "", apperrors.NewTransient(stage, "failed to decode response body", err)
	}
	if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
		return "", apperrors.NewPersistent(stage, "empty response from model", nil)
	}

	return geminiResp.Candidates[0].Content.Parts[0].Text, nil
}

// stripJSONFences removes markdown code fences the model sometimes wraps
// around its JSON despite instructions.
func stripJSONFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
