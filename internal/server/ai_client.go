package server

import (
	"context"
	"errors"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"emojournal/backend/internal/config"
)

const (
	chatRoleUser  = "user"
	chatRoleModel = "model"
)

// ChatTurn is one message in a conversation, using the provider's role
// convention ("user" / "model").
type ChatTurn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// AIClient is the provider boundary. Implementations return *ProviderError
// for transport failures so callers can classify without string matching.
type AIClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Chat(ctx context.Context, history []ChatTurn, message string) (string, error)
}

// GeminiClient calls the Gemini API with the system prompt installed as the
// model's system instruction.
type GeminiClient struct {
	client  *genai.Client
	apiKey  string
	model   string
	timeout time.Duration
}

func NewGeminiClient(ctx context.Context, cfg config.Config) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, err
	}
	return &GeminiClient{
		client:  client,
		apiKey:  cfg.GeminiAPIKey,
		model:   cfg.AIModel,
		timeout: time.Duration(cfg.AITimeoutSeconds) * time.Second,
	}, nil
}

func (g *GeminiClient) Close() error {
	return g.client.Close()
}

func (g *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	if g.apiKey == "" {
		return "", &ProviderError{Kind: ProviderUnavailable, Detail: "GEMINI_API_KEY is not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.generativeModel().GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", g.wrapErr(err)
	}
	return responseText(resp)
}

func (g *GeminiClient) Chat(ctx context.Context, history []ChatTurn, message string) (string, error) {
	if g.apiKey == "" {
		return "", &ProviderError{Kind: ProviderUnavailable, Detail: "GEMINI_API_KEY is not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	session := g.generativeModel().StartChat()
	session.History = toGenaiHistory(history)
	resp, err := session.SendMessage(ctx, genai.Text(message))
	if err != nil {
		return "", g.wrapErr(err)
	}
	return responseText(resp)
}

func (g *GeminiClient) generativeModel() *genai.GenerativeModel {
	model := g.client.GenerativeModel(g.model)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt)},
	}
	return model
}

func (g *GeminiClient) wrapErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &ProviderError{Kind: ProviderTimedOut, Detail: "request deadline exceeded", Err: err}
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 429:
			return &ProviderError{Kind: ProviderRateLimited, Detail: "quota exhausted", Err: err}
		case 500, 502, 503:
			return &ProviderError{Kind: ProviderUnavailable, Detail: "upstream unavailable", Err: err}
		case 504:
			return &ProviderError{Kind: ProviderTimedOut, Detail: "upstream timeout", Err: err}
		}
	}
	return &ProviderError{Kind: ProviderOther, Detail: "request failed", Err: err}
}

func toGenaiHistory(history []ChatTurn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, turn := range history {
		contents = append(contents, &genai.Content{
			Role:  turn.Role,
			Parts: []genai.Part{genai.Text(turn.Text)},
		})
	}
	return contents
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", &ProviderError{Kind: ProviderOther, Detail: "empty response from model"}
	}
	var out string
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			out += string(text)
		}
	}
	if out == "" {
		return "", &ProviderError{Kind: ProviderOther, Detail: "empty response from model"}
	}
	return out, nil
}

// MockAIClient is a canned-response client for tests and for running the
// API without provider credentials.
type MockAIClient struct {
	Response string
	Err      error

	Prompts   []string
	Histories [][]ChatTurn
}

func (m *MockAIClient) Generate(_ context.Context, prompt string) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

func (m *MockAIClient) Chat(_ context.Context, history []ChatTurn, message string) (string, error) {
	m.Prompts = append(m.Prompts, message)
	m.Histories = append(m.Histories, history)
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}
