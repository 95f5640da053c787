package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/repovis/repovis/internal/llm"
)

const systemPrompt = `You are a senior software engineer mapping a codebase for a visualization tool. Analyze the provided source file and return structured JSON. Be precise and factual. Do not invent symbols that are not present in the code.`

const promptTemplate = `Analyze this source file and return a JSON object with exactly these fields:

{
  "summary": "2-3 sentence summary of what this file does",
  "items": [
    {
      "name": "symbol name",
      "kind": "function|class|component",
      "description": "one sentence describing the symbol"
    }
  ]
}

Use kind "component" only for UI components. List the top-level symbols; skip local helpers inside other functions. Omit the items array if the file defines no symbols.

File: %s

` + "```\n%s\n```"

// LLMAnalyzer implements Analyzer against a completion provider.
type LLMAnalyzer struct {
	provider llm.Provider
	model    string
}

// NewLLMAnalyzer creates an analyzer over the given provider.
func NewLLMAnalyzer(provider llm.Provider, model string) *LLMAnalyzer {
	return &LLMAnalyzer{provider: provider, model: model}
}

// Analyze sends the file to the provider and parses the JSON response.
func (a *LLMAnalyzer) Analyze(ctx context.Context, name, content string) (*Analysis, error) {
	req := llm.CompletionRequest{
		Model: a.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleUser, Content: fmt.Sprintf(promptTemplate, name, content)},
		},
		MaxTokens:   2048,
		Temperature: 0.1,
		JSONMode:    true,
	}

	resp, err := a.completeWithRetry(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("llm completion: %w", err)
	}

	analysis, err := parseAnalysis(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("llm response: %w", err)
	}
	return analysis, nil
}

// completeWithRetry backs off exponentially on rate-limit style errors.
func (a *LLMAnalyzer) completeWithRetry(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	const maxRetries = 3
	backoff := 5 * time.Second

	for attempt := 0; ; attempt++ {
		resp, err := a.provider.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}

		errStr := err.Error()
		retriable := strings.Contains(errStr, "rate_limit") ||
			strings.Contains(errStr, "429") ||
			strings.Contains(errStr, "overloaded")
		if !retriable {
			return nil, err
		}
		if attempt == maxRetries {
			return nil, fmt.Errorf("rate limited after %d retries: %w", maxRetries, err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
		}
	}
}

// parseAnalysis parses a JSON response, tolerating markdown code fences.
func parseAnalysis(raw string) (*Analysis, error) {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "```") {
		lines := strings.Split(raw, "\n")
		if len(lines) >= 2 {
			start := 1
			end := len(lines)
			if strings.TrimSpace(lines[end-1]) == "```" {
				end--
			}
			raw = strings.Join(lines[start:end], "\n")
		}
	}

	var analysis Analysis
	if err := json.Unmarshal([]byte(raw), &analysis); err != nil {
		return nil, fmt.Errorf("json parse: %w", err)
	}
	return &analysis, nil
}
