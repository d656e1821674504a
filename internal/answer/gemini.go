package answer

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiGenerator implements Generator with Google's Generative AI chat API.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// GeminiConfig configures a GeminiGenerator. APIKeyEnv names the environment
// variable holding the key.
type GeminiConfig struct {
	APIKeyEnv string
	Model     string
}

// NewGeminiGenerator creates a generator backed by the Gemini API.
func NewGeminiGenerator(ctx context.Context, cfg GeminiConfig) (*GeminiGenerator, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash-latest"
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(key))
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiGenerator{client: client, model: cfg.Model}, nil
}

// Generate replays the conversation history into a chat session and sends the
// query with the retrieved context attached as the final user turn.
func (g *GeminiGenerator) Generate(ctx context.Context, req *Request) (string, error) {
	model := g.client.GenerativeModel(g.model)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(req.SystemPrompt)},
	}

	session := model.StartChat()
	for _, msg := range req.History {
		session.History = append(session.History,
			&genai.Content{Role: "user", Parts: []genai.Part{genai.Text(msg.UserQuery)}},
			&genai.Content{Role: "model", Parts: []genai.Part{genai.Text(msg.Response)}},
		)
	}

	resp, err := session.SendMessage(ctx, genai.Text(buildUserTurn(req)))
	if err != nil {
		return "", fmt.Errorf("gemini chat request: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("empty response from gemini")
	}

	var out strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			out.WriteString(string(txt))
		}
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("no text in gemini response")
	}
	return strings.TrimSpace(out.String()), nil
}

// buildUserTurn concatenates the retrieved context and the question into a
// single user message.
func buildUserTurn(req *Request) string {
	if len(req.Context) == 0 {
		return req.Query
	}
	var b strings.Builder
	b.WriteString("Here are the relevant documents for the context:\n\n")
	for _, c := range req.Context {
		b.WriteString(c)
		b.WriteString("\n\n")
	}
	b.WriteString("Use the previous chat history, or the context above, to answer the question: ")
	b.WriteString(req.Query)
	return b.String()
}

// Close closes the underlying API client.
func (g *GeminiGenerator) Close() error {
	return g.client.Close()
}
