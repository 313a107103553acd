package connector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

const anthropicVersion = "2023-06-01"

// connectAI proves the key and model work with a minimal completion
// request. There is no resource listing for AI providers; a successful
// round trip is the whole connection test.
func (c *Connector) connectAI(ctx context.Context, p Provider, creds Credentials) (Result, error) {
	model := creds["model"]
	if _, err := c.complete(ctx, p, creds, "Test connection", 5); err != nil {
		return Result{}, decorateModelError(p, model, err)
	}

	info := catalog[p]
	return Result{
		HasData: true,
		Metrics: map[string]any{
			"Model":    model,
			"Provider": info.DisplayName,
		},
	}, nil
}

// Complete sends a prompt to an AI provider and returns the reply text.
// Used by the natural-language query path with stored credentials.
func (c *Connector) Complete(ctx context.Context, p Provider, creds Credentials, prompt string, maxTokens int) (string, error) {
	answer, err := c.complete(ctx, p, creds, prompt, maxTokens)
	if err != nil {
		info := catalog[p]
		return "", errors.New(reasonFor(info.DisplayName, decorateModelError(p, creds["model"], err)))
	}
	return answer, nil
}

// complete selects the request builder and response field path by provider
// tag; the two wire shapes are not compatible.
func (c *Connector) complete(ctx context.Context, p Provider, creds Credentials, prompt string, maxTokens int) (string, error) {
	base := c.baseURL(p)
	model := creds["model"]
	messages := []map[string]any{{"role": "user", "content": prompt}}

	switch p {
	case ProviderOpenAI:
		body := map[string]any{
			"model":      model,
			"messages":   messages,
			"max_tokens": maxTokens,
		}
		headers := map[string]string{
			"Authorization": "Bearer " + creds["api_key"],
		}
		var resp struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
		}
		if err := c.doJSON(ctx, "POST", base+"/chat/completions", headers, body, &resp); err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("empty completion response")
		}
		return resp.Choices[0].Message.Content, nil

	case ProviderClaude:
		body := map[string]any{
			"model":      model,
			"max_tokens": maxTokens,
			"messages":   messages,
		}
		headers := map[string]string{
			"x-api-key":         creds["api_key"],
			"anthropic-version": anthropicVersion,
		}
		var resp struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
		}
		if err := c.doJSON(ctx, "POST", base+"/messages", headers, body, &resp); err != nil {
			return "", err
		}
		if len(resp.Content) == 0 {
			return "", fmt.Errorf("empty completion response")
		}
		return resp.Content[0].Text, nil
	}
	return "", fmt.Errorf("provider %s is not an AI provider", p)
}

// decorateModelError turns the providers' 400-level "no such model"
// responses into a message naming the model, since a typo there is the most
// common connect failure after a bad key.
func decorateModelError(p Provider, model string, err error) error {
	if statusOf(err) != http.StatusBadRequest {
		return err
	}
	switch p {
	case ProviderOpenAI:
		if errorBodyField(err, "code") == "model_not_found" {
			return fmt.Errorf("Model %q not found. Please check the model name.", model)
		}
	case ProviderClaude:
		if errorBodyField(err, "type") == "invalid_request_error" {
			return fmt.Errorf("Model %q not found or invalid. Please check the model name.", model)
		}
	}
	return err
}
