package classifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// GeminiInference sends prompts to a Google Gemini model with a JSON
// response MIME type.
type GeminiInference struct {
	client *genai.Client
	model  *genai.GenerativeModel
	name   string
}

// NewGeminiInference creates a Gemini client. Call Close when done.
func NewGeminiInference(ctx context.Context, cfg *GeminiConfig) (*GeminiInference, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	model := client.GenerativeModel(cfg.Model)
	model.GenerationConfig = genai.GenerationConfig{
		Temperature:      genai.Ptr(cfg.Temperature),
		ResponseMIMEType: "application/json",
	}

	return &GeminiInference{
		client: client,
		model:  model,
		name:   "gemini/" + cfg.Model,
	}, nil
}

func (g *GeminiInference) Infer(ctx context.Context, p Prompt) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(p.System), genai.Text(p.User))
	if err != nil {
		return "", mapGeminiError(err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("%w: gemini returned no candidates", ErrMalformed)
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}

	if sb.Len() == 0 {
		return "", fmt.Errorf("%w: gemini returned no text", ErrMalformed)
	}

	return sb.String(), nil
}

func (g *GeminiInference) Name() string {
	return g.name
}

// Close releases the underlying client.
func (g *GeminiInference) Close() error {
	return g.client.Close()
}

func mapGeminiError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %w", ErrRateLimited, err)
		case apiErr.Code >= 500:
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		default:
			return fmt.Errorf("%w: %w", ErrRejected, err)
		}
	}

	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.ResourceExhausted:
			return fmt.Errorf("%w: %w", ErrRateLimited, err)
		case codes.Unavailable, codes.Internal, codes.Aborted:
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		case codes.DeadlineExceeded:
			return fmt.Errorf("%w: %w", ErrTimeout, err)
		case codes.InvalidArgument, codes.FailedPrecondition:
			return fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
	}

	return classifyError(err)
}
