package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/kentaroh-toyoda/ai-security-feed/config"
	"github.com/kentaroh-toyoda/ai-security-feed/models"
)

// maxPromptChars caps how much prepared Markdown is sent per request.
const maxPromptChars = 60_000

// truncateForPrompt caps s at maxPromptChars, backing off to a rune boundary
// so the prompt stays valid UTF-8.
func truncateForPrompt(s string) string {
	if len(s) <= maxPromptChars {
		return s
	}
	cut := maxPromptChars
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// Client extracts article listings from rendered pages through an
// OpenAI-compatible chat completions API. It uses net/http directly, no
// provider SDK needed.
type Client struct {
	httpClient *http.Client
	cfg        config.LLMConfig
}

// NewClient creates an LLM extraction client. Pass nil to use a default
// http.Client.
func NewClient(cfg config.LLMConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	return &Client{httpClient: httpClient, cfg: cfg}
}

// chatRequest is the OpenAI chat completion request body.
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// chatResponse is the minimal chat completion response we need.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// chatErrorResponse captures an API error from the LLM provider.
type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// extractedArticle is the JSON shape the model is asked to produce per
// article.
type extractedArticle struct {
	Title       string   `json:"title"`
	Link        string   `json:"link"`
	Summary     string   `json:"summary"`
	Categories  []string `json:"categories"`
	Author      string   `json:"author"`
	PublishedAt string   `json:"published_at"`
}

type extractionResult struct {
	Articles []extractedArticle `json:"articles"`
}

const extractSystemPrompt = `You are an article extraction assistant. The user gives you the Markdown rendering of a web page that lists security-related articles or blog posts. Return JSON of the form {"articles": [...]} where each article has: title, link (absolute URL), summary, categories (array of strings), author, published_at (RFC 3339 or empty).

Rules:
- Return ONLY valid JSON, no markdown fences or explanation.
- Only include real article entries, not navigation or footer links.
- Use empty strings or empty arrays for fields not present on the page.`

// ExtractArticles turns a resolved page into normalized articles. The chosen
// attempt's HTML is reduced to Markdown first so the prompt stays small and
// clean.
func (c *Client) ExtractArticles(ctx context.Context, dec *models.FetchDecision) ([]models.Article, error) {
	if dec == nil || dec.Chosen == nil {
		return nil, models.NewFetchError(models.ErrCodeInvalidInput, "no resolved content to extract from", nil)
	}

	md := truncateForPrompt(PrepareMarkdown(dec.Chosen.Content, dec.Source.URL))

	raw, err := c.chat(ctx, extractSystemPrompt, md)
	if err != nil {
		return nil, err
	}

	var result extractionResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, models.NewFetchError(models.ErrCodeLLMFailure, "failed to parse extraction result", err)
	}

	articles := make([]models.Article, 0, len(result.Articles))
	for _, ea := range result.Articles {
		if strings.TrimSpace(ea.Title) == "" && strings.TrimSpace(ea.Link) == "" {
			continue
		}
		published := time.Now().UTC()
		if ea.PublishedAt != "" {
			if ts, perr := time.Parse(time.RFC3339, ea.PublishedAt); perr == nil {
				published = ts
			}
		}
		articles = append(articles, models.Article{
			ID:          uuid.New(),
			Title:       strings.TrimSpace(ea.Title),
			Link:        strings.TrimSpace(ea.Link),
			Summary:     strings.TrimSpace(ea.Summary),
			Categories:  ea.Categories,
			Author:      strings.TrimSpace(ea.Author),
			GUID:        strings.TrimSpace(ea.Link),
			PublishedAt: published,
			SourceURL:   dec.Source.URL,
			SourceName:  dec.Source.Name,
		})
	}
	return articles, nil
}

const enrichSystemPrompt = `You are a security news editor. The user gives you the Markdown rendering of a single article page. Return JSON of the form {"summary": "...", "categories": ["..."]} where summary is 2-3 sentences covering the article's key points and categories are short topical tags (for example "vulnerability", "malware", "ai").

Rules:
- Return ONLY valid JSON, no markdown fences or explanation.
- Write the summary from the article body, not from navigation or footer text.
- Use an empty array if no category fits.`

type enrichmentResult struct {
	Summary    string   `json:"summary"`
	Categories []string `json:"categories"`
}

// EnrichArticle rewrites a feed article's summary and categories from the
// article's own page content. The article is returned unchanged apart from
// those two fields; an empty model answer leaves the feed's values in place.
func (c *Client) EnrichArticle(ctx context.Context, article models.Article, pageHTML string) (models.Article, error) {
	md := truncateForPrompt(PrepareMarkdown(pageHTML, article.Link))

	raw, err := c.chat(ctx, enrichSystemPrompt, md)
	if err != nil {
		return article, err
	}

	var result enrichmentResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return article, models.NewFetchError(models.ErrCodeLLMFailure, "failed to parse enrichment result", err)
	}
	if s := strings.TrimSpace(result.Summary); s != "" {
		article.Summary = s
	}
	if len(result.Categories) > 0 {
		article.Categories = result.Categories
	}
	return article, nil
}

// chat performs one chat completion round-trip and returns the message
// content, validated to be JSON.
func (c *Client) chat(ctx context.Context, system, user string) (string, error) {
	reqBody := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature:    c.cfg.Temperature,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", models.NewFetchError(models.ErrCodeLLMFailure, "LLM request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", models.NewFetchError(models.ErrCodeLLMFailure, "failed to read LLM response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyLLMError(resp.StatusCode, respBody)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", models.NewFetchError(models.ErrCodeLLMFailure, "failed to parse LLM response", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", models.NewFetchError(models.ErrCodeLLMFailure, "LLM returned no choices", nil)
	}

	raw := chatResp.Choices[0].Message.Content
	if !json.Valid([]byte(raw)) {
		return "", models.NewFetchError(models.ErrCodeLLMFailure, "LLM returned invalid JSON", nil)
	}
	return raw, nil
}

// classifyLLMError maps HTTP status codes to error codes.
func classifyLLMError(statusCode int, body []byte) *models.FetchError {
	var errResp chatErrorResponse
	msg := "LLM API error"
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		msg = errResp.Error.Message
	}
	return models.NewFetchError(models.ErrCodeLLMFailure,
		fmt.Sprintf("LLM API returned %d: %s", statusCode, msg), nil)
}
