// Package geo looks up the approximate location of the machine's public IP.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/kozaktomas/cybereye/internal/constants"
)

const (
	defaultIPInfoURL = "https://ipinfo.io/json"
	defaultTimeout   = 8 * time.Second
)

// Location is the subset of the ipinfo.io response used in alerts.
type Location struct {
	IP      string `json:"ip"`
	City    string `json:"city"`
	Region  string `json:"region"`
	Country string `json:"country"`
	Loc     string `json:"loc"` // "lat,long"
}

// String renders the location as "City, Region, Country (Lat/Long: lat,long)",
// substituting placeholders for missing fields.
func (l Location) String() string {
	return fmt.Sprintf("%s, %s, %s (Lat/Long: %s)",
		orDefault(l.City, "Unknown City"),
		orDefault(l.Region, "Unknown Region"),
		orDefault(l.Country, "Unknown Country"),
		orDefault(l.Loc, "0,0"),
	)
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// Client fetches IP geolocation from ipinfo.io or a compatible endpoint.
type Client struct {
	url    string
	token  string
	client *http.Client
}

// NewClient creates a client. Empty url and zero timeout select the defaults.
func NewClient(url, token string, timeout time.Duration) *Client {
	if url == "" {
		url = defaultIPInfoURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		url:    url,
		token:  token,
		client: &http.Client{Timeout: timeout},
	}
}

// Lookup performs a single GET and decodes the JSON response.
func (c *Client) Lookup(ctx context.Context) (*Location, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("location API error (status %d)", resp.StatusCode)
	}

	var loc Location
	if err := json.Unmarshal(body, &loc); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &loc, nil
}

// Describe returns a printable location, or "Location unavailable" when the
// lookup fails for any reason. It never returns an error.
func (c *Client) Describe(ctx context.Context) string {
	loc, err := c.Lookup(ctx)
	if err != nil {
		slog.Warn("Location fetch error", "error", err)
		return constants.LocationUnavailable
	}
	info := loc.String()
	slog.Info("Fetched location", "location", info)
	return info
}
