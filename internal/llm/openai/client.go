package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cloneofkoha/form-filler/internal/llm"
)

// Synthesize implements llm.Synthesizer using text-only chat/completions with
// a JSON-object response format. The schema is sent alongside the messages and
// the response is validated against it before being trusted.
func (c *Client) Synthesize(ctx context.Context, req llm.SynthesisRequest) (llm.SynthesisResult, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("llm.synthesize.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"label", req.Label,
		"context_len", len(req.Context),
		"reference_len", len(req.Reference),
	)

	schema := llm.BuildSynthesisJSONSchema()
	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": llm.BuildSystemPrompt()},
			{"role": "user", "content": llm.BuildUserPrompt(req) + "\n\nReturn ONLY JSON that matches the provided schema."},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(schema)},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, err := c.post(ctx, endpoint, body)
	if err != nil {
		c.log.Error("llm.synthesize.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.SynthesisResult{}, err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return llm.SynthesisResult{}, &llm.CallError{Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(cc.Choices) == 0 {
		return llm.SynthesisResult{}, &llm.CallError{Err: errors.New("no choices in response")}
	}
	content := []byte(llm.StripCodeFences(cc.Choices[0].Message.Content))

	if err := llm.ValidateJSONAgainstSchema(schema, content); err != nil {
		c.log.Error("llm.synthesize.schema_validation_failed",
			"req_id", rid, "error", err, "content", string(content),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.SynthesisResult{}, &llm.CallError{Err: fmt.Errorf("schema validation: %w", err)}
	}

	var out llm.SynthesisResult
	if err := json.Unmarshal(content, &out); err != nil {
		return llm.SynthesisResult{}, &llm.CallError{Err: fmt.Errorf("unmarshal result: %w", err)}
	}

	c.log.Info("llm.synthesize.ok",
		"req_id", rid,
		"abstain", out.Abstain,
		"value_len", len(out.Value),
		"confidence", out.Confidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, &llm.CallError{Err: fmt.Errorf("marshal request: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, &llm.CallError{Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// network errors and client timeouts are worth one retry
		return nil, &llm.CallError{Err: err, Retryable: true}
	}
	defer func(body io.ReadCloser) {
		if cerr := body.Close(); cerr != nil {
			c.log.Warn("llm.synthesize.body_close_error", "error", cerr)
		}
	}(resp.Body)

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, &llm.CallError{
			Err:       fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))),
			Retryable: retryable,
		}
	}
	return raw, nil
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
