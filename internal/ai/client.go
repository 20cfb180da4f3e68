// Package ai crafts message variations using a hosted language model,
// falling back to local synonym rewrites when no provider is available.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/avetel/outreach/internal/variation"
)

// Provider names accepted in configuration.
const (
	ProviderClaude = "claude"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	// ProviderLocal marks results produced by the synonym fallback.
	ProviderLocal = "local"
)

// Default models used when the configured model is "auto".
const (
	defaultClaudeModel = "claude-3-5-sonnet-20241022"
	defaultOpenAIModel = "gpt-4"
	defaultGeminiModel = "gemini-pro"
)

const (
	claudeEndpoint = "https://api.anthropic.com/v1/messages"
	openaiEndpoint = "https://api.openai.com/v1/chat/completions"
	geminiEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent"

	// Parsed variations shorter than this are treated as noise.
	minVariationLen = 50

	minVariations = 5
	maxVariations = 10
)

// Config holds provider settings for the client.
type Config struct {
	Provider    string
	APIKey      string
	Model       string // "auto" selects the provider default
	MaxTokens   int
	Temperature float64
}

// Result is a crafted set of variations and the provider that produced them.
type Result struct {
	Variations []string `json:"variations"`
	Provider   string   `json:"provider"`
}

// Client calls the configured provider over HTTP.
type Client struct {
	cfg      Config
	http     *http.Client
	fallback *variation.SynonymGenerator
	logger   *slog.Logger

	// Endpoint overrides for tests.
	claudeURL string
	openaiURL string
	geminiURL string
}

// New creates a variation-crafting client.
func New(cfg Config, httpClient *http.Client, fallback *variation.SynonymGenerator, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		cfg:       cfg,
		http:      httpClient,
		fallback:  fallback,
		logger:    logger.With("component", "ai"),
		claudeURL: claudeEndpoint,
		openaiURL: openaiEndpoint,
		geminiURL: geminiEndpoint,
	}
}

// CraftVariations asks the configured provider for count variations of
// baseMessage. If the provider is not configured or the call fails, it
// falls back to local synonym rewrites and reports ProviderLocal.
func (c *Client) CraftVariations(ctx context.Context, baseMessage, jobTitle, companyName string, count int) (*Result, error) {
	if baseMessage == "" {
		return nil, fmt.Errorf("base message is empty")
	}
	if count <= 0 {
		count = maxVariations
	}

	if c.cfg.APIKey == "" {
		c.logger.Debug("no API key configured, using local variations")
		return c.localResult(baseMessage, count), nil
	}

	prompt := buildPrompt(baseMessage, jobTitle, companyName, count)

	var (
		text string
		err  error
	)
	switch c.cfg.Provider {
	case ProviderClaude:
		text, err = c.callClaude(ctx, prompt)
	case ProviderOpenAI:
		text, err = c.callOpenAI(ctx, prompt)
	case ProviderGemini:
		text, err = c.callGemini(ctx, prompt)
	default:
		return nil, fmt.Errorf("unsupported AI provider: %s", c.cfg.Provider)
	}
	if err != nil {
		c.logger.Warn("provider call failed, using local variations",
			"provider", c.cfg.Provider,
			"error", err)
		return c.localResult(baseMessage, count), nil
	}

	return &Result{
		Variations: parseVariations(text, baseMessage),
		Provider:   c.cfg.Provider,
	}, nil
}

func (c *Client) localResult(baseMessage string, count int) *Result {
	return &Result{
		Variations: c.fallback.GenerateWithOriginal(baseMessage, count),
		Provider:   ProviderLocal,
	}
}

func (c *Client) model(def string) string {
	if c.cfg.Model == "" || c.cfg.Model == "auto" {
		return def
	}
	return c.cfg.Model
}

// buildPrompt produces the instruction sent to the model. The separator
// and numbering format are what parseVariations expects back.
func buildPrompt(baseMessage, jobTitle, companyName string, count int) string {
	if jobTitle == "" {
		jobTitle = "Not specified"
	}
	if companyName == "" {
		companyName = "Not specified"
	}

	return fmt.Sprintf(`Create %d variations of the following email message while maintaining the same professional tone, intent, and key information. Each variation should:

1. Keep the same core message and request
2. Maintain professional tone
3. Use different wording and sentence structures
4. Keep all placeholder tags exactly as they are: [Your name], [First Name], [Company Name], [Job Title], [Position]
5. Ensure each variation feels natural and authentic
6. Vary the opening, middle, and closing phrases
7. Keep the same length (2-3 paragraphs)

Original message:
"%s"

Job context:
- Job Title: %s
- Company: %s

Please provide exactly %d variations, each separated by "---VARIATION---" and numbered (1, 2, 3, etc.).

Example format:
1. [First variation here]
---VARIATION---
2. [Second variation here]
---VARIATION---
[etc.]`, count, baseMessage, jobTitle, companyName, count)
}

var leadingNumber = regexp.MustCompile(`^\d+\.\s*`)

// parseVariations extracts variations from a model response. The base
// message is always element zero. Parts shorter than minVariationLen are
// dropped; if separator splitting yields fewer than three entries the
// response is re-split on blank lines. The result is padded with the base
// message up to minVariations and capped at maxVariations.
func parseVariations(response, baseMessage string) []string {
	variations := []string{baseMessage}

	for _, part := range strings.Split(response, "---VARIATION---") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" || trimmed == baseMessage {
			continue
		}
		cleaned := strings.TrimSpace(leadingNumber.ReplaceAllString(trimmed, ""))
		if len(cleaned) > minVariationLen {
			variations = append(variations, cleaned)
		}
	}

	if len(variations) < 3 {
		for _, block := range strings.Split(response, "\n\n") {
			cleaned := strings.TrimSpace(leadingNumber.ReplaceAllString(block, ""))
			if len(cleaned) > minVariationLen && !contains(variations, cleaned) {
				variations = append(variations, cleaned)
			}
		}
	}

	for len(variations) < minVariations {
		variations = append(variations, baseMessage)
	}
	if len(variations) > maxVariations {
		variations = variations[:maxVariations]
	}
	return variations
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type claudeRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
	Messages    []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

func (c *Client) callClaude(ctx context.Context, prompt string) (string, error) {
	body := claudeRequest{
		Model:       c.model(defaultClaudeModel),
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		Messages:    []claudeMessage{{Role: "user", Content: prompt}},
	}

	data, err := c.post(ctx, c.claudeURL, body, map[string]string{
		"x-api-key":         c.cfg.APIKey,
		"anthropic-version": "2023-06-01",
	})
	if err != nil {
		return "", fmt.Errorf("claude API: %w", err)
	}

	var resp claudeResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("failed to parse claude response: %w", err)
	}
	if len(resp.Content) == 0 {
		return "", fmt.Errorf("empty claude response")
	}
	return resp.Content[0].Text, nil
}

type openaiRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
	Messages    []claudeMessage `json:"messages"`
}

type openaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) callOpenAI(ctx context.Context, prompt string) (string, error) {
	body := openaiRequest{
		Model:       c.model(defaultOpenAIModel),
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		Messages:    []claudeMessage{{Role: "user", Content: prompt}},
	}

	data, err := c.post(ctx, c.openaiURL, body, map[string]string{
		"Authorization": "Bearer " + c.cfg.APIKey,
	})
	if err != nil {
		return "", fmt.Errorf("openai API: %w", err)
	}

	var resp openaiResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("failed to parse openai response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty openai response")
	}
	return resp.Choices[0].Message.Content, nil
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig geminiGenConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens"`
	Temperature     float64 `json:"temperature"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (c *Client) callGemini(ctx context.Context, prompt string) (string, error) {
	url := c.geminiURL
	if strings.Contains(url, "%s") {
		url = fmt.Sprintf(url, c.model(defaultGeminiModel))
	}

	body := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: geminiGenConfig{
			MaxOutputTokens: c.cfg.MaxTokens,
			Temperature:     c.cfg.Temperature,
		},
	}

	data, err := c.post(ctx, url, body, map[string]string{
		"x-goog-api-key": c.cfg.APIKey,
	})
	if err != nil {
		return "", fmt.Errorf("gemini API: %w", err)
	}

	var resp geminiResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("failed to parse gemini response: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty gemini response")
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}

func (c *Client) post(ctx context.Context, url string, body interface{}, headers map[string]string) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return data, nil
}
