package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"tessera/backend/internal/enrich"
)

const generativeModel = "gemini-2.0-flash"

// LLM wraps a genai generative model for plain multi-modal invocation and
// schema-constrained list output.
type LLM struct {
	client *genai.Client
	model  string
}

func NewLLM(ctx context.Context, apiKey string) (*LLM, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &LLM{client: client, model: generativeModel}, nil
}

// Invoke sends prompt text plus any base64-encoded image attachments and
// returns the concatenated text response.
func (l *LLM) Invoke(ctx context.Context, msg enrich.Message) (string, error) {
	model := l.client.GenerativeModel(l.model)

	parts := []genai.Part{genai.Text(msg.Text)}
	for _, img := range msg.Images {
		data, err := base64.StdEncoding.DecodeString(stripDataURI(img))
		if err != nil {
			slog.WarnContext(ctx, "skipping undecodable image attachment", "error", err)
			continue
		}
		parts = append(parts, genai.ImageData("png", data))
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", err
	}
	return collectText(resp)
}

// ListStrings invokes the model constrained to a JSON array-of-strings
// response schema and decodes it.
func (l *LLM) ListStrings(ctx context.Context, system, user string) ([]string, error) {
	model := l.client.GenerativeModel(l.model)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = &genai.Schema{
		Type:  genai.TypeArray,
		Items: &genai.Schema{Type: genai.TypeString},
	}

	resp, err := model.GenerateContent(ctx, genai.Text(user))
	if err != nil {
		return nil, err
	}
	raw, err := collectText(resp)
	if err != nil {
		return nil, err
	}

	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode structured response: %w", err)
	}
	return out, nil
}

func collectText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("empty model response")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("model response contained no text")
	}
	return strings.TrimSpace(b.String()), nil
}

func stripDataURI(img string) string {
	if strings.HasPrefix(img, "data:image") {
		if _, rest, ok := strings.Cut(img, ","); ok {
			return rest
		}
	}
	return img
}
