package places

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/ava/internal/upstream"
)

const defaultBaseURL = "https://maps.googleapis.com"

const textSearchPath = "/maps/api/place/textsearch/json"

// Place is one text-search result.
type Place struct {
	PlaceID          string   `json:"place_id"`
	Name             string   `json:"name"`
	FormattedAddress string   `json:"formatted_address"`
	Rating           *float64 `json:"rating,omitempty"`
}

type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewClient creates a Places client. An empty baseURL uses the Google Maps
// endpoint.
func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type response struct {
	Results      []Place `json:"results"`
	Status       string  `json:"status"`
	ErrorMessage string  `json:"error_message,omitempty"`
}

// TextSearch runs a free-text place search and returns results in the order
// the service ranked them.
func (c *Client) TextSearch(ctx context.Context, query string) ([]Place, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+textSearchPath+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, upstream.Unavailable("places text search", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, upstream.Unavailable("places text search", fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, upstream.Unavailable("places text search", fmt.Errorf("api error %d: %s", resp.StatusCode, string(body)))
	}

	var apiResp response
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, upstream.Unavailable("places text search", fmt.Errorf("unmarshal response: %w", err))
	}

	switch apiResp.Status {
	case "OK", "ZERO_RESULTS":
		return apiResp.Results, nil
	default:
		return nil, upstream.Unavailable("places text search", fmt.Errorf("status %s: %s", apiResp.Status, apiResp.ErrorMessage))
	}
}

// MapsURL returns a Google Maps link that opens the place.
func MapsURL(p Place) string {
	q := url.Values{}
	q.Set("api", "1")
	q.Set("query", p.Name)
	if p.PlaceID != "" {
		q.Set("query_place_id", p.PlaceID)
	}
	return "https://www.google.com/maps/search/?" + q.Encode()
}
