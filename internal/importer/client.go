// v2
// internal/importer/client.go

// Package importer pulls rosters and recorded times from the federation
// API and loads them into the store. Payloads are schema-validated before
// anything touches the database, and every upstream call runs under a
// circuit breaker.
package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/etkk55/enduro-backend/internal/circuitbreaker"
)

// RosterEntry is one competitor as the federation publishes it.
type RosterEntry struct {
	Number    int    `json:"number"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Class     string `json:"class"`
	Machine   string `json:"machine"`
	Team      string `json:"team"`
}

// TimeEntry is one recorded stage time as the federation publishes it.
// Times arrive as fractional seconds and are converted to centiseconds on
// ingestion.
type TimeEntry struct {
	Number         int     `json:"number"`
	StageOrdinal   int     `json:"stageOrdinal"`
	ElapsedSeconds float64 `json:"elapsedSeconds"`
	PenaltySeconds float64 `json:"penaltySeconds"`
}

// Client fetches federation documents for one configured base URL.
type Client struct {
	base    string
	h       *http.Client
	breaker *circuitbreaker.Breaker
	log     *slog.Logger
}

// NewClient wires a federation client guarded by the given breaker.
func NewClient(base string, breaker *circuitbreaker.Breaker, log *slog.Logger) *Client {
	return &Client{
		base:    base,
		h:       &http.Client{Timeout: 10 * time.Second},
		breaker: breaker,
		log:     log.With(slog.String("component", "federation_client")),
	}
}

// FetchRoster retrieves and validates the entry list for an event code.
func (c *Client) FetchRoster(ctx context.Context, eventCode string) ([]RosterEntry, error) {
	raw, err := c.fetch(ctx, "entrylist", eventCode)
	if err != nil {
		return nil, err
	}
	if err := ValidateRoster(raw); err != nil {
		return nil, fmt.Errorf("roster payload rejected: %w", err)
	}
	var out []RosterEntry
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode roster: %w", err)
	}
	return out, nil
}

// FetchTimes retrieves and validates the time list for an event code.
func (c *Client) FetchTimes(ctx context.Context, eventCode string) ([]TimeEntry, error) {
	raw, err := c.fetch(ctx, "timelist", eventCode)
	if err != nil {
		return nil, err
	}
	if err := ValidateTimes(raw); err != nil {
		return nil, fmt.Errorf("time payload rejected: %w", err)
	}
	var out []TimeEntry
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode times: %w", err)
	}
	return out, nil
}

func (c *Client) fetch(ctx context.Context, kind, eventCode string) ([]byte, error) {
	u, err := url.JoinPath(c.base, kind, eventCode)
	if err != nil {
		return nil, fmt.Errorf("build url: %w", err)
	}
	var body []byte
	err = c.breaker.Execute(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		resp, err := c.h.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("federation %s returned %d: %s", u, resp.StatusCode, snippet)
		}
		body, err = io.ReadAll(resp.Body)
		return err
	})
	if err != nil {
		return nil, err
	}
	c.log.Info("federation_fetch_ok", slog.String("kind", kind), slog.String("code", eventCode), slog.Int("bytes", len(body)))
	return body, nil
}
