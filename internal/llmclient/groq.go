package llmclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// GroqClient calls the Groq Chat Completions API (OpenAI-compatible).
// See: https://console.groq.com/docs/api-reference
type GroqClient struct {
	http    *http.Client
	apiKey  string
	model   string
	baseURL string
}

// NewGroqClient creates a Groq client. If apiKey is empty, it falls back to GROQ_API_KEY env var.
func NewGroqClient(apiKey, model string) (*GroqClient, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GROQ_API_KEY")
	}
	return &GroqClient{
		http:    &http.Client{Timeout: 120 * time.Second},
		apiKey:  apiKey,
		model:   model,
		baseURL: "https://api.groq.com/openai/v1/chat/completions",
	}, nil
}

func (g *GroqClient) Name() string { return "Groq:" + g.model }
func (g *GroqClient) Close() error { return nil }

type groqChatReq struct {
	Model       string        `json:"model"`
	Messages    []groqMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}
type groqMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
type groqChatResp struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}
type groqStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func (g *GroqClient) request(req Request, stream bool) groqChatReq {
	model := req.Model
	if model == "" {
		model = g.model
	}
	msgs := make([]groqMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, groqMessage{Role: m.Role, Content: m.Content})
	}
	return groqChatReq{
		Model:       model,
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	}
}

func (g *GroqClient) do(ctx context.Context, body groqChatReq) (*http.Response, error) {
	b, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}
	resp, err := g.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		const max = 2048
		if len(raw) > max {
			raw = raw[:max]
		}
		err := fmt.Errorf("groq: unexpected status %s: %s", resp.Status, string(raw))
		if resp.StatusCode == 400 && strings.Contains(string(raw), `"code":"context_length_exceeded"`) {
			return nil, NewPermanentError(err)
		}
		return nil, err
	}
	return resp, nil
}

func (g *GroqClient) GenerateText(ctx context.Context, req Request) (string, error) {
	resp, err := g.do(ctx, g.request(req, false))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	var out groqChatResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}
	return out.Choices[0].Message.Content, nil
}

// GenerateTextStream consumes the SSE stream ("data: {...}" lines) chunk by chunk.
func (g *GroqClient) GenerateTextStream(ctx context.Context, req Request, onChunk func(chunk string)) (string, error) {
	resp, err := g.do(ctx, g.request(req, true))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var full strings.Builder
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}
		var chunk groqStreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		if onChunk != nil {
			onChunk(delta)
		}
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	if full.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return full.String(), nil
}

func RegisterGroqModels(reg ModelRegistrar) error {
	limits := &RateLimitConfig{RPM: 30, RPS: 0.5, Burst: 1}
	models := []struct {
		name  string
		level ModelLevel
	}{
		{name: "llama-3.1-8b-instant", level: ModelLevelLow},
		{name: "llama-3.3-70b-versatile", level: ModelLevelMiddle},
		{name: "llama-3.3-70b-versatile", level: ModelLevelHigh},
	}
	for _, m := range models {
		modelName := m.name
		if err := reg.RegisterModel(ModelRegistration{
			Provider:  "groq",
			Model:     modelName,
			Level:     m.level,
			MaxTokens: 6000,
			RateLimit: limits,
			Factory: func(ctx context.Context) (LLMClient, error) {
				return NewGroqClient("", modelName)
			},
		}); err != nil {
			return err
		}
	}
	return nil
}
