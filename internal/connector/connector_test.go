package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testConnector(t *testing.T, p Provider, baseURL string) *Connector {
	t.Helper()
	return New(map[Provider]string{p: baseURL})
}

func TestConnectUnknownProvider(t *testing.T) {
	c := New(nil)
	res := c.Connect(context.Background(), Provider("bogus"), Credentials{})
	if res.OK {
		t.Fatal("expected failure for unknown provider")
	}
	if !strings.Contains(res.Reason, "unknown provider") {
		t.Fatalf("unexpected reason: %q", res.Reason)
	}
}

func TestConnectMissingCredentials(t *testing.T) {
	c := New(nil)
	res := c.Connect(context.Background(), ProviderTrello, Credentials{"api_key": "k"})
	if res.OK {
		t.Fatal("expected failure for missing credentials")
	}
	if !strings.Contains(res.Reason, "access_token") {
		t.Fatalf("reason should name the missing credential, got %q", res.Reason)
	}
}

func TestTrelloPaginationExhaustive(t *testing.T) {
	const total = 2500
	cardRequests := 0

	mux := http.NewServeMux()
	mux.HandleFunc("/members/me/boards", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "k" || r.URL.Query().Get("token") != "t" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode([]map[string]any{{"id": "b1", "name": "Board One"}})
	})
	mux.HandleFunc("/boards/b1/cards", func(w http.ResponseWriter, r *http.Request) {
		cardRequests++
		if r.URL.Query().Get("filter") != "open" {
			t.Errorf("expected filter=open, got %q", r.URL.Query().Get("filter"))
		}
		start := 0
		if before := r.URL.Query().Get("before"); before != "" {
			fmt.Sscanf(before, "card-%d", &start)
		}
		page := []map[string]any{}
		for i := start; i < total && len(page) < trelloCardPageLimit; i++ {
			page = append(page, map[string]any{"id": fmt.Sprintf("card-%d", i+1)})
		}
		json.NewEncoder(w).Encode(page)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testConnector(t, ProviderTrello, srv.URL)
	res := c.Connect(context.Background(), ProviderTrello, Credentials{"api_key": "k", "access_token": "t"})
	if !res.OK {
		t.Fatalf("connect failed: %s", res.Reason)
	}
	if cardRequests != 3 {
		t.Fatalf("expected 3 paginated card requests, got %d", cardRequests)
	}

	payload := res.Payload.(map[string]any)
	cards := payload["cards"].([]map[string]any)
	if len(cards) != total {
		t.Fatalf("expected %d cards, got %d", total, len(cards))
	}
	seen := make(map[string]bool, total)
	for _, card := range cards {
		id := card["id"].(string)
		if seen[id] {
			t.Fatalf("duplicate card %s", id)
		}
		seen[id] = true
	}
	if res.Metrics["Cards"] != total {
		t.Fatalf("expected Cards metric %d, got %v", total, res.Metrics["Cards"])
	}
}

func TestTrelloCardFetchFailureIsNonFatal(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/members/me/boards", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{{"id": "b1"}})
	})
	mux.HandleFunc("/boards/b1/cards", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testConnector(t, ProviderTrello, srv.URL)
	res := c.Connect(context.Background(), ProviderTrello, Credentials{"api_key": "k", "access_token": "t"})
	if !res.OK {
		t.Fatalf("card failure should not fail the connection: %s", res.Reason)
	}
	if !res.HasData {
		t.Fatal("boards alone should still count as data")
	}
}

func TestCalendlySecondaryDegradation(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"resource": map[string]any{"uri": "https://api.calendly.test/users/u1"},
		})
	})
	mux.HandleFunc("/event_types", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"collection": []map[string]any{{"name": "Intro Call"}, {"name": "Demo"}},
		})
	})
	mux.HandleFunc("/scheduled_events", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testConnector(t, ProviderCalendly, srv.URL)
	res := c.Connect(context.Background(), ProviderCalendly, Credentials{"access_token": "tok"})
	if !res.OK {
		t.Fatalf("403 on scheduled events must not fail the connection: %s", res.Reason)
	}

	payload := res.Payload.(map[string]any)
	if got := len(payload["eventTypes"].([]map[string]any)); got != 2 {
		t.Fatalf("expected 2 event types, got %d", got)
	}
	if got := len(payload["scheduledEvents"].([]map[string]any)); got != 0 {
		t.Fatalf("expected empty scheduled events, got %d", got)
	}
	if !res.HasData {
		t.Fatal("event types present, expected hasData")
	}
}

func TestCalendlyIdentityFailureIsFatal(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/me", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testConnector(t, ProviderCalendly, srv.URL)
	res := c.Connect(context.Background(), ProviderCalendly, Credentials{"access_token": "bad"})
	if res.OK {
		t.Fatal("expected failure when identity call is rejected")
	}
	if !strings.Contains(res.Reason, "Calendly") {
		t.Fatalf("reason should name the provider, got %q", res.Reason)
	}
}

func TestGoogleDriveMimePartition(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/files", func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.RawQuery, "trashed=false") {
			t.Errorf("expected trashed=false query, got %q", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"files": []map[string]any{
				{"id": "1", "mimeType": "application/vnd.google-apps.spreadsheet"},
				{"id": "2", "mimeType": "application/vnd.google-apps.form"},
				{"id": "3", "mimeType": "application/vnd.google-apps.document"},
				{"id": "4", "mimeType": "application/pdf"},
			},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testConnector(t, ProviderGoogleDrive, srv.URL)
	res := c.Connect(context.Background(), ProviderGoogleDrive, Credentials{"access_token": "tok"})
	if !res.OK {
		t.Fatalf("connect failed: %s", res.Reason)
	}
	if res.Metrics["Total Files"] != 4 || res.Metrics["Sheets"] != 1 || res.Metrics["Forms"] != 1 || res.Metrics["Docs"] != 1 {
		t.Fatalf("unexpected metrics: %v", res.Metrics)
	}
}

func TestGoogleCalendarEvents(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/calendars/primary/events", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("access_token") != "tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{{"id": "e1"}, {"id": "e2"}},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testConnector(t, ProviderGoogleCalendar, srv.URL)
	res := c.Connect(context.Background(), ProviderGoogleCalendar, Credentials{"access_token": "tok"})
	if !res.OK {
		t.Fatalf("connect failed: %s", res.Reason)
	}
	if res.Metrics["Events"] != 2 || !res.HasData || res.DataType != "events" {
		t.Fatalf("unexpected result: %+v", res)
	}
}
