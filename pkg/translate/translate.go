// Package translate provides one-shot text translation used by the
// refinement pipeline.
package translate

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/kitts-ai/hud-live/pkg/core"
)

// AutoDetect asks the model to infer the source language.
const AutoDetect = "Auto"

// Gemini translates via a one-shot text model. The zero value is unusable;
// use NewGemini.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a translator backed by the Gemini API.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, core.NewInvalidRequestError("translate: API key is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, core.NewInvalidRequestError("translate: model is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, core.NewTransportErrorf("translate: client: %v", err)
	}
	return &Gemini{client: client, model: model}, nil
}

// Translate renders text from sourceLang into targetLang. The prompt pins the
// model to translation output only; surrounding whitespace is stripped.
func (g *Gemini) Translate(ctx context.Context, sourceLang, targetLang, text string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(buildPrompt(sourceLang, targetLang, text)), nil)
	if err != nil {
		return "", core.NewTransportErrorf("translate: generate: %v", err)
	}
	out := strings.TrimSpace(resp.Text())
	if out == "" {
		return "", core.NewTransportError("translate: empty model response")
	}
	return out, nil
}

func buildPrompt(sourceLang, targetLang, text string) string {
	source := sourceLang
	if source == "" || source == AutoDetect {
		source = "text"
	}
	return fmt.Sprintf("Translate this %s to %s. Output ONLY the translation. Text: %q", source, targetLang, text)
}
