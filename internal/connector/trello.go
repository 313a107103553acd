package connector

import (
	"context"
	"fmt"
	"log"
	"net/url"
)

// trelloCardPageLimit is the Trello API maximum page size for board cards.
const trelloCardPageLimit = 1000

// connectTrello lists the boards owned by the caller (the identity call),
// then collects the open cards of every board. Card fetches are non-fatal:
// a board whose cards cannot be read still counts as connected.
func (c *Connector) connectTrello(ctx context.Context, creds Credentials) (Result, error) {
	base := c.baseURL(ProviderTrello)
	apiKey, token := creds["api_key"], creds["access_token"]

	var boards []map[string]any
	boardsURL := fmt.Sprintf("%s/members/me/boards?key=%s&token=%s",
		base, url.QueryEscape(apiKey), url.QueryEscape(token))
	if err := c.doJSON(ctx, "GET", boardsURL, nil, nil, &boards); err != nil {
		return Result{}, err
	}

	var cards []map[string]any
	for _, board := range boards {
		id, _ := board["id"].(string)
		if id == "" {
			continue
		}
		boardCards, err := c.fetchTrelloCards(ctx, base, id, apiKey, token)
		if err != nil {
			log.Printf("⚠️ Trello: could not fetch cards for board %s: %v", id, err)
			continue
		}
		cards = append(cards, boardCards...)
	}

	return Result{
		HasData:  len(boards) > 0 || len(cards) > 0,
		DataType: "boards",
		Payload:  map[string]any{"boards": boards, "cards": cards},
		Metrics: map[string]any{
			"Boards": len(boards),
			"Cards":  len(cards),
		},
	}, nil
}

// fetchTrelloCards exhaustively pages through a board's open cards using
// the before-cursor: keep requesting while a page comes back full-sized,
// anchoring the next page on the last card id seen.
func (c *Connector) fetchTrelloCards(ctx context.Context, base, boardID, apiKey, token string) ([]map[string]any, error) {
	var all []map[string]any
	before := ""
	for {
		cardsURL := fmt.Sprintf("%s/boards/%s/cards?filter=open&limit=%d&key=%s&token=%s",
			base, boardID, trelloCardPageLimit, url.QueryEscape(apiKey), url.QueryEscape(token))
		if before != "" {
			cardsURL += "&before=" + url.QueryEscape(before)
		}

		var page []map[string]any
		if err := c.doJSON(ctx, "GET", cardsURL, nil, nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < trelloCardPageLimit {
			break
		}
		last, _ := page[len(page)-1]["id"].(string)
		if last == "" {
			break
		}
		before = last
	}
	return all, nil
}
