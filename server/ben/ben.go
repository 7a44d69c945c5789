// Package ben adapts the BEN computational engine (bidding + double-dummy)
// to the engine contract over its REST interface.
package ben

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"bridgegate/server/deal"
	"bridgegate/server/engine"
)

const Name = "ben"

// Client talks to a BEN instance at BaseURL (e.g. an ngrok tunnel in the
// original deployment).
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		// Per-call deadlines come from the orchestrator's context; this is a
		// backstop for calls made outside it.
		http: &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) Name() string { return Name }

// request is BEN's analyze payload; it takes the same board record the
// gateway accepts.
type request struct {
	Dealer  string   `json:"dealer"`
	Vuln    []bool   `json:"vuln"`
	Hands   []string `json:"hands"`
	Auction []string `json:"auction"`
	Play    []string `json:"play,omitempty"`
}

type response struct {
	Bid         string                    `json:"bid,omitempty"`
	Card        string                    `json:"card,omitempty"`
	Confidence  *float64                  `json:"confidence,omitempty"`
	DoubleDummy map[string]map[string]int `json:"double_dummy,omitempty"`
	Par         string                    `json:"par,omitempty"`
	Error       string                    `json:"error,omitempty"`
}

func (c *Client) Analyze(ctx context.Context, d *deal.Deal) (*engine.Result, error) {
	rec := d.Record()
	body, err := json.Marshal(request{
		Dealer:  rec.Dealer,
		Vuln:    rec.Vuln,
		Hands:   rec.Hands,
		Auction: rec.Auction,
		Play:    rec.Play,
	})
	if err != nil {
		return nil, engine.Errorf(Name, engine.KindUnknown, "marshal: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, engine.Errorf(Name, engine.KindUnknown, "build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, engine.AsError(Name, ctx.Err())
		}
		return nil, engine.Errorf(Name, engine.KindUnreachable, "%v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, engine.Errorf(Name, engine.KindUnreachable, "read body: %v", err)
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, engine.Errorf(Name, engine.KindRateLimited, "http 429: %s", truncate(string(raw), 200))
	case resp.StatusCode >= 500:
		return nil, engine.Errorf(Name, engine.KindUnreachable, "http %d: %s", resp.StatusCode, truncate(string(raw), 200))
	case resp.StatusCode != http.StatusOK:
		return nil, engine.Errorf(Name, engine.KindInvalidResponse, "http %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var out response
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, engine.Errorf(Name, engine.KindInvalidResponse, "bad json: %v", err)
	}
	if out.Error != "" {
		return nil, engine.Errorf(Name, engine.KindInvalidResponse, "engine error: %s", out.Error)
	}
	return decode(out, d)
}

// decode maps BEN's wire answer onto the shared result shape. A response with
// neither a bid nor a card violates BEN's contract.
func decode(out response, d *deal.Deal) (*engine.Result, error) {
	res := &engine.Result{Engine: Name, Confidence: out.Confidence}

	switch {
	case out.Bid != "":
		a, ok := engine.BidAction(strings.ToUpper(out.Bid))
		if !ok {
			return nil, engine.Errorf(Name, engine.KindInvalidResponse, "unparseable bid %q", out.Bid)
		}
		res.Suggested = &a
	case out.Card != "":
		card, ok := deal.ParseCard(strings.ToUpper(out.Card))
		if !ok {
			return nil, engine.Errorf(Name, engine.KindInvalidResponse, "unparseable card %q", out.Card)
		}
		res.Suggested = &engine.Action{Kind: engine.ActionPlay, Seat: d.NextToAct(), Card: card}
	default:
		return nil, engine.Errorf(Name, engine.KindInvalidResponse, "no recommendation in response")
	}

	if len(out.DoubleDummy) > 0 {
		res.DoubleDummy = &engine.DDTable{Tricks: out.DoubleDummy, Par: out.Par}
	}
	return res, nil
}

// Ping checks reachability for the health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ben health: http %d", resp.StatusCode)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
