package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// connectGoogleCalendar lists the primary calendar's events. Identity and
// data come from the same call, so a single round trip both validates the
// token and fills the payload.
func (c *Connector) connectGoogleCalendar(ctx context.Context, creds Credentials) (Result, error) {
	base := c.baseURL(ProviderGoogleCalendar)
	eventsURL := fmt.Sprintf("%s/calendars/primary/events?access_token=%s",
		base, url.QueryEscape(creds["access_token"]))

	var data struct {
		Items []json.RawMessage `json:"items"`
	}
	if err := c.doJSON(ctx, "GET", eventsURL, nil, nil, &data); err != nil {
		return Result{}, err
	}

	events := data.Items
	if events == nil {
		events = []json.RawMessage{}
	}
	return Result{
		HasData:  len(events) > 0,
		DataType: "events",
		Payload:  map[string]any{"events": events},
		Metrics:  map[string]any{"Events": len(events)},
	}, nil
}
