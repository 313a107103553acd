// Package connector talks to the external providers. One Connector drives
// every provider through a per-provider profile: an identity call that
// validates the supplied credentials, followed by secondary fetches of the
// provider's core collections. Failures are returned as values, never
// panics, so callers always have something to persist.
package connector

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// Provider identifies which connector profile handles an integration.
type Provider string

const (
	ProviderTrello         Provider = "trello"
	ProviderGoogleCalendar Provider = "google-calendar"
	ProviderGoogleDrive    Provider = "google-drive"
	ProviderCalendly       Provider = "calendly"
	ProviderOpenAI         Provider = "openai"
	ProviderClaude         Provider = "claude"
)

// Info is the static per-provider profile: display defaults plus the
// credential types the profile needs to run.
type Info struct {
	DisplayName    string
	Category       string
	Required       []string
	DefaultBaseURL string
}

var catalog = map[Provider]Info{
	ProviderTrello: {
		DisplayName:    "Trello",
		Category:       "productivity",
		Required:       []string{"api_key", "access_token"},
		DefaultBaseURL: "https://api.trello.com/1",
	},
	ProviderGoogleCalendar: {
		DisplayName:    "Google Calendar",
		Category:       "calendar",
		Required:       []string{"access_token"},
		DefaultBaseURL: "https://www.googleapis.com/calendar/v3",
	},
	ProviderGoogleDrive: {
		DisplayName:    "Google Drive",
		Category:       "storage",
		Required:       []string{"access_token"},
		DefaultBaseURL: "https://www.googleapis.com/drive/v3",
	},
	ProviderCalendly: {
		DisplayName:    "Calendly",
		Category:       "scheduling",
		Required:       []string{"access_token"},
		DefaultBaseURL: "https://api.calendly.com",
	},
	ProviderOpenAI: {
		DisplayName:    "OpenAI AI",
		Category:       "ai",
		Required:       []string{"api_key", "model"},
		DefaultBaseURL: "https://api.openai.com/v1",
	},
	ProviderClaude: {
		DisplayName:    "Claude AI",
		Category:       "ai",
		Required:       []string{"api_key", "model"},
		DefaultBaseURL: "https://api.anthropic.com/v1",
	},
}

// Lookup returns the profile for a provider id.
func Lookup(p Provider) (Info, bool) {
	info, ok := catalog[p]
	return info, ok
}

// Providers returns all known provider ids.
func Providers() []Provider {
	out := make([]Provider, 0, len(catalog))
	for p := range catalog {
		out = append(out, p)
	}
	return out
}

// Credentials is the decrypted credential map handed to a connect call,
// keyed by credential type.
type Credentials map[string]string

// Missing returns the required credential types absent from creds.
func (c Credentials) Missing(required []string) []string {
	var missing []string
	for _, key := range required {
		if c[key] == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

// Result is the outcome of a connect call. Both branches carry enough to
// persist: a failed attempt is recorded with a human-readable reason, not
// silently dropped.
type Result struct {
	Provider Provider
	OK       bool
	Reason   string // set when !OK
	HasData  bool
	Metrics  map[string]any
	DataType string // snapshot key for the payload, e.g. "boards"
	Payload  any    // provider-specific collections, nil for AI providers
}

// Connector executes provider profiles over HTTP. Base URLs can be
// overridden per provider for self-hosted gateways and tests.
type Connector struct {
	client   *http.Client
	baseURLs map[Provider]string
}

// New creates a connector. baseURLs may be nil to use the defaults.
func New(baseURLs map[Provider]string) *Connector {
	return &Connector{
		client:   &http.Client{Timeout: 30 * time.Second},
		baseURLs: baseURLs,
	}
}

func (c *Connector) baseURL(p Provider) string {
	if c.baseURLs != nil && c.baseURLs[p] != "" {
		return c.baseURLs[p]
	}
	return catalog[p].DefaultBaseURL
}

// Connect validates creds against the provider and fetches its core
// collections. The returned Result is a success or a classified failure;
// Connect itself never returns an error.
func (c *Connector) Connect(ctx context.Context, p Provider, creds Credentials) Result {
	info, ok := catalog[p]
	if !ok {
		return Result{Provider: p, Reason: "unknown provider: " + string(p)}
	}
	if missing := creds.Missing(info.Required); len(missing) > 0 {
		return Result{Provider: p, Reason: "missing credentials: " + strings.Join(missing, ", ")}
	}

	var res Result
	var err error
	switch p {
	case ProviderTrello:
		res, err = c.connectTrello(ctx, creds)
	case ProviderGoogleCalendar:
		res, err = c.connectGoogleCalendar(ctx, creds)
	case ProviderGoogleDrive:
		res, err = c.connectGoogleDrive(ctx, creds)
	case ProviderCalendly:
		res, err = c.connectCalendly(ctx, creds)
	case ProviderOpenAI, ProviderClaude:
		res, err = c.connectAI(ctx, p, creds)
	}
	if err != nil {
		return Result{Provider: p, Reason: reasonFor(info.DisplayName, err)}
	}
	res.Provider = p
	res.OK = true
	return res
}
