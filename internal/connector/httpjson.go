package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// apiError is a non-2xx provider response. It keeps the status code and a
// bounded copy of the body so failures can be classified and surfaced.
type apiError struct {
	Status int
	Body   []byte
}

func (e *apiError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, strings.TrimSpace(string(e.Body)))
}

const maxErrorBody = 4 << 10

// doJSON issues a request and decodes a 2xx JSON response into out (out may
// be nil to discard the body). Non-2xx responses become *apiError; transport
// failures are returned as-is (they surface as *url.Error).
func (c *Connector) doJSON(ctx context.Context, method, rawurl string, headers map[string]string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawurl, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &apiError{Status: resp.StatusCode, Body: data}
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("invalid response body: %w", err)
	}
	return nil
}

// reasonFor maps a connect error onto a user-correctable message. Network
// failures are distinguished from HTTP errors: the former get a
// check-your-connection hint, the latter quote the provider.
func reasonFor(displayName string, err error) string {
	var ae *apiError
	if errors.As(err, &ae) {
		switch {
		case ae.Status == http.StatusUnauthorized:
			return fmt.Sprintf("Invalid API key or token. Please check your %s credentials.", displayName)
		case ae.Status == http.StatusTooManyRequests:
			return "Rate limit exceeded. Please try again later."
		case ae.Status >= 400 && ae.Status < 500:
			if msg := providerMessage(ae.Body); msg != "" {
				return msg
			}
			return fmt.Sprintf("HTTP %d: Failed to connect to %s", ae.Status, displayName)
		default:
			return fmt.Sprintf("HTTP %d: Failed to connect to %s", ae.Status, displayName)
		}
	}

	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Sprintf("Network error: cannot reach %s. Check your internet connection.", displayName)
	}
	return err.Error()
}

// providerMessage pulls a human-readable message out of a provider error
// body. Handles the two shapes seen in the wild: {"error":{"message":...}}
// (Google, OpenAI, Anthropic) and {"message":...} (Trello, Calendly).
func providerMessage(body []byte) string {
	var nested struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &nested); err == nil && nested.Error.Message != "" {
		return nested.Error.Message
	}

	var flat struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &flat); err == nil && flat.Message != "" {
		return flat.Message
	}
	return ""
}

// errorBodyField returns a string field from a provider error body, used
// for provider-specific error codes like OpenAI's "model_not_found".
func errorBodyField(err error, field string) string {
	var ae *apiError
	if !errors.As(err, &ae) {
		return ""
	}
	var parsed struct {
		Error map[string]any `json:"error"`
	}
	if jsonErr := json.Unmarshal(ae.Body, &parsed); jsonErr != nil {
		return ""
	}
	if v, ok := parsed.Error[field].(string); ok {
		return v
	}
	return ""
}

// statusOf returns the HTTP status of an apiError, or 0 for other errors.
func statusOf(err error) int {
	var ae *apiError
	if errors.As(err, &ae) {
		return ae.Status
	}
	return 0
}
