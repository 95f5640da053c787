package enrich

import (
	"context"
	"fmt"
	"testing"

	"github.com/repovis/repovis/internal/llm"
)

func TestParseAnalysis(t *testing.T) {
	body := `{"summary": "does things", "items": [{"name": "run", "kind": "function", "description": "runs"}]}`

	tests := []struct {
		name string
		raw  string
	}{
		{"bare json", body},
		{"fenced", "```\n" + body + "\n```"},
		{"fenced with language", "```json\n" + body + "\n```"},
		{"surrounding whitespace", "\n\n  " + body + "  \n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAnalysis(tt.raw)
			if err != nil {
				t.Fatalf("parseAnalysis() error: %v", err)
			}
			if got.Summary != "does things" || len(got.Items) != 1 || got.Items[0].Name != "run" {
				t.Errorf("parseAnalysis() = %+v", got)
			}
		})
	}
}

func TestParseAnalysis_Invalid(t *testing.T) {
	for _, raw := range []string{"", "not json", "```\nnot json\n```"} {
		if _, err := parseAnalysis(raw); err == nil {
			t.Errorf("parseAnalysis(%q) accepted invalid input", raw)
		}
	}
}

type scriptedProvider struct {
	calls int
	err   error
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return &llm.CompletionResponse{Content: `{"summary": "ok", "items": []}`}, nil
}

func TestLLMAnalyzer_Success(t *testing.T) {
	provider := &scriptedProvider{}
	a := NewLLMAnalyzer(provider, "gpt-4o-mini")

	got, err := a.Analyze(context.Background(), "main.ts", "export function run() {}")
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if got.Summary != "ok" {
		t.Errorf("Analyze() = %+v", got)
	}
	if provider.calls != 1 {
		t.Errorf("provider called %d times, want 1", provider.calls)
	}
}

func TestLLMAnalyzer_NonRetriableFailsFast(t *testing.T) {
	provider := &scriptedProvider{err: fmt.Errorf("invalid api key")}
	a := NewLLMAnalyzer(provider, "gpt-4o-mini")

	if _, err := a.Analyze(context.Background(), "main.ts", "x"); err == nil {
		t.Fatal("Analyze() succeeded with a failing provider")
	}
	if provider.calls != 1 {
		t.Errorf("non-retriable error retried: %d calls", provider.calls)
	}
}

func TestLLMAnalyzer_RetryStopsOnCancel(t *testing.T) {
	provider := &scriptedProvider{err: fmt.Errorf("429 rate_limit exceeded")}
	a := NewLLMAnalyzer(provider, "gpt-4o-mini")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Analyze(ctx, "main.ts", "x")
	if err == nil {
		t.Fatal("Analyze() succeeded after cancellation")
	}
	// The backoff wait must observe the cancelled context instead of
	// sleeping out the full schedule.
	if provider.calls != 1 {
		t.Errorf("provider called %d times after cancel, want 1", provider.calls)
	}
}
