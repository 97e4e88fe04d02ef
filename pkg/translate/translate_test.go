package translate

import (
	"context"
	"testing"
)

func TestBuildPrompt(t *testing.T) {
	got := buildPrompt("Vietnamese", "English", "xin chào.")
	want := `Translate this Vietnamese to English. Output ONLY the translation. Text: "xin chào."`
	if got != want {
		t.Errorf("prompt = %q, want %q", got, want)
	}
}

func TestBuildPromptAutoDetect(t *testing.T) {
	for _, source := range []string{"", AutoDetect} {
		got := buildPrompt(source, "English", "hola")
		want := `Translate this text to English. Output ONLY the translation. Text: "hola"`
		if got != want {
			t.Errorf("source %q: prompt = %q", source, got)
		}
	}
}

func TestNewGeminiValidation(t *testing.T) {
	if _, err := NewGemini(context.Background(), "", "gemini-2.5-flash"); err == nil {
		t.Error("missing API key should fail")
	}
	if _, err := NewGemini(context.Background(), "key", ""); err == nil {
		t.Error("missing model should fail")
	}
}
