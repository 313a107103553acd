package connector

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"time"
)

// calendlyLookback is how far back the scheduled-events fetch reaches.
const calendlyLookback = 30 * 24 * time.Hour

// connectCalendly validates the token against the current-user resource,
// then fetches the user's event types and the scheduled events of the last
// 30 days. Both secondary fetches are non-fatal: scheduled events in
// particular can be permission-gated on accounts that are otherwise valid.
func (c *Connector) connectCalendly(ctx context.Context, creds Credentials) (Result, error) {
	base := c.baseURL(ProviderCalendly)
	headers := map[string]string{
		"Authorization": "Bearer " + creds["access_token"],
	}

	var me struct {
		Resource map[string]any `json:"resource"`
	}
	if err := c.doJSON(ctx, "GET", base+"/users/me", headers, nil, &me); err != nil {
		return Result{}, err
	}
	userURI, _ := me.Resource["uri"].(string)

	eventTypes := []map[string]any{}
	var typesResp struct {
		Collection []map[string]any `json:"collection"`
	}
	typesURL := base + "/event_types?user=" + url.QueryEscape(userURI)
	if err := c.doJSON(ctx, "GET", typesURL, headers, nil, &typesResp); err != nil {
		log.Printf("⚠️ Calendly: could not fetch event types: %v", err)
	} else if typesResp.Collection != nil {
		eventTypes = typesResp.Collection
	}

	scheduledEvents := []map[string]any{}
	var eventsResp struct {
		Collection []map[string]any `json:"collection"`
	}
	minStart := time.Now().Add(-calendlyLookback).UTC().Format(time.RFC3339)
	eventsURL := fmt.Sprintf("%s/scheduled_events?user=%s&min_start_time=%s",
		base, url.QueryEscape(userURI), url.QueryEscape(minStart))
	if err := c.doJSON(ctx, "GET", eventsURL, headers, nil, &eventsResp); err != nil {
		log.Printf("⚠️ Calendly: could not fetch scheduled events, continuing with event types: %v", err)
	} else if eventsResp.Collection != nil {
		scheduledEvents = eventsResp.Collection
	}

	return Result{
		HasData:  len(eventTypes) > 0,
		DataType: "event_types",
		Payload: map[string]any{
			"user":            me.Resource,
			"eventTypes":      eventTypes,
			"scheduledEvents": scheduledEvents,
		},
		Metrics: map[string]any{
			"Event Types":   len(eventTypes),
			"Recent Events": len(scheduledEvents),
		},
	}, nil
}
