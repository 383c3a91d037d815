package providers

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestNewOpenAI(t *testing.T) {
	p, err := NewOpenAI("sk-test-key", "", "")
	if err != nil {
		t.Fatalf("NewOpenAI() returned error: %v", err)
	}
	if p.Name() != "openai" {
		t.Errorf("Name() = %q, want openai", p.Name())
	}
	if p.BaseURL() != "https://api.openai.com" {
		t.Errorf("BaseURL() = %q", p.BaseURL())
	}

	if _, err := NewOpenAI("", "", ""); err == nil {
		t.Error("NewOpenAI with empty key should fail")
	}
}

// TestOpenAI_Query_Integration exercises the live API and only runs when
// OPENAI_API_KEY is set.
func TestOpenAI_Query_Integration(t *testing.T) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("Skipping integration test: OPENAI_API_KEY not set")
	}

	p, err := NewOpenAI(apiKey, "", "")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	text, err := p.Query(ctx, `Reply with exactly this JSON and nothing else: {"ok": true}`)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if _, err := ExtractObject(text); err != nil {
		t.Errorf("response did not contain a JSON object: %v", err)
	}
}
