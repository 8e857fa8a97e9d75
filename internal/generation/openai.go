package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/iliyamo/notes-marketplace/internal/model"
)

const (
	openaiBaseURL      = "https://api.openai.com/v1/chat/completions"
	openaiModel        = "gpt-4o-mini"
	openaiMaxRetries   = 3
	openaiInitialDelay = 1 * time.Second
	// openaiMaxInput caps the document text sent in one prompt.
	openaiMaxInput = 48000
)

const systemPrompt = `You are a study assistant. Given course material, reply with a JSON object:
{"summary": string, "flashcards": [{"question": string, "answer": string}],
 "quiz": [{"question": string, "options": [string], "correct": int, "explanation": string}]}
Write a concise summary, 3 to 8 flashcards and 2 to 5 quiz questions with 4 options each.
"correct" is the zero based index of the right option.`

// OpenAIGenerator calls the chat completions API in JSON mode.
type OpenAIGenerator struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
	delay   time.Duration
}

// OpenAIOption customizes an OpenAIGenerator.
type OpenAIOption func(*OpenAIGenerator)

// WithBaseURL points the client at a compatible endpoint.
func WithBaseURL(u string) OpenAIOption { return func(g *OpenAIGenerator) { g.baseURL = u } }

// WithModel overrides the chat model.
func WithModel(m string) OpenAIOption { return func(g *OpenAIGenerator) { g.model = m } }

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) OpenAIOption { return func(g *OpenAIGenerator) { g.client = c } }

// WithRetryDelay sets the initial backoff delay.
func WithRetryDelay(d time.Duration) OpenAIOption { return func(g *OpenAIGenerator) { g.delay = d } }

// NewOpenAIGenerator creates a new OpenAI backed generator.
func NewOpenAIGenerator(apiKey string, opts ...OpenAIOption) *OpenAIGenerator {
	g := &OpenAIGenerator{
		apiKey:  apiKey,
		baseURL: openaiBaseURL,
		model:   openaiModel,
		client:  &http.Client{Timeout: 90 * time.Second},
		delay:   openaiInitialDelay,
	}
	for _, o := range opts {
		o(g)
	}
	if g.model == "" {
		g.model = openaiModel
	}
	return g
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
	Temperature float64 `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type openaiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

type generated struct {
	Summary    string               `json:"summary"`
	Flashcards []model.Flashcard    `json:"flashcards"`
	Quiz       []model.QuizQuestion `json:"quiz"`
}

func (g *OpenAIGenerator) Generate(ctx context.Context, text string) (model.StudyContent, error) {
	if g.apiKey == "" {
		return model.StudyContent{}, fmt.Errorf("OPENAI_API_KEY not set")
	}
	text = truncateUTF8(text, openaiMaxInput)
	req := chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: text},
		},
		Temperature: 0.2,
	}
	req.ResponseFormat.Type = "json_object"
	body, err := json.Marshal(req)
	if err != nil {
		return model.StudyContent{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	raw, err := g.do(ctx, body)
	if err != nil {
		return model.StudyContent{}, err
	}
	var out generated
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return model.StudyContent{}, fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}
	c := model.StudyContent{Summary: out.Summary, Flashcards: out.Flashcards, Quiz: out.Quiz}
	if err := Validate(c); err != nil {
		return model.StudyContent{}, err
	}
	return c, nil
}

// do posts body with retry and exponential backoff on transport errors,
// 429 and 5xx. It returns the first choice's message content.
func (g *OpenAIGenerator) do(ctx context.Context, body []byte) (string, error) {
	var lastErr error
	for attempt := 0; attempt < openaiMaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt-1))) * g.delay
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL, bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("failed to create request: %w", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := g.client.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			lastErr = fmt.Errorf("HTTP request failed: %w", err)
			continue
		}
		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response body: %w", err)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			var oe openaiError
			if json.Unmarshal(respBody, &oe) == nil && oe.Error.Message != "" {
				lastErr = fmt.Errorf("OpenAI API error (%d): %s", resp.StatusCode, oe.Error.Message)
			} else {
				lastErr = fmt.Errorf("OpenAI API error (%d): %s", resp.StatusCode, string(respBody))
			}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				continue
			}
			return "", lastErr
		}

		var cr chatResponse
		if err := json.Unmarshal(respBody, &cr); err != nil {
			return "", fmt.Errorf("failed to decode response: %w", err)
		}
		if len(cr.Choices) == 0 {
			return "", fmt.Errorf("%w: no choices returned", ErrInvalidContent)
		}
		return cr.Choices[0].Message.Content, nil
	}
	return "", fmt.Errorf("max retries (%d) exceeded: %w", openaiMaxRetries, lastErr)
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
