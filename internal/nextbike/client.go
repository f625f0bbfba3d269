// Package nextbike fetches the upstream live, zone and GBFS documents.
package nextbike

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// UserAgent is sent with every upstream request
const UserAgent = "bike-logger/0.1"

// Default upstream endpoints. Placeholders are substituted per request.
const (
	DefaultLiveURL     = "https://maps.nextbike.net/maps/nextbike-live.json"
	DefaultZoneURL     = "https://zone-service.nextbikecloud.net/v1/zones/city/{city_id}"
	DefaultFlexzoneURL = "https://api.nextbike.net/reservation/geojson/flexzone_{domain}.json"
	DefaultGBFSURL     = "https://gbfs.nextbike.net/maps/gbfs/v2/{system_id}/gbfs.json"
)

// Endpoints holds the upstream URL templates
type Endpoints struct {
	Live     string
	Zone     string
	Flexzone string
	GBFS     string
}

// DefaultEndpoints returns the public nextbike endpoints
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Live:     DefaultLiveURL,
		Zone:     DefaultZoneURL,
		Flexzone: DefaultFlexzoneURL,
		GBFS:     DefaultGBFSURL,
	}
}

// StatusError is returned for non-2xx responses
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
}

// Client performs the upstream fetches. It holds no state besides its configuration.
type Client struct {
	httpClient *http.Client
	endpoints  Endpoints
	userAgent  string
}

// NewClient creates a client with a fixed request timeout
func NewClient(endpoints Endpoints, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		endpoints:  endpoints,
		userAgent:  UserAgent,
	}
}

// FetchLive fetches the live fleet document of domain
func (c *Client) FetchLive(ctx context.Context, domain string) (json.RawMessage, error) {
	u, err := url.Parse(c.endpoints.Live)
	if err != nil {
		return nil, fmt.Errorf("parse live url: %w", err)
	}
	q := u.Query()
	q.Set("domains", domain)
	u.RawQuery = q.Encode()
	return c.getJSON(ctx, u.String())
}

// FetchCityZones fetches the zone-service feature collection of a city
func (c *Client) FetchCityZones(ctx context.Context, cityID int64) (json.RawMessage, error) {
	return c.getJSON(ctx, expand(c.endpoints.Zone, "{city_id}", strconv.FormatInt(cityID, 10)))
}

// FetchFlexZones fetches the flex-zone feature collection of domain
func (c *Client) FetchFlexZones(ctx context.Context, domain string) (json.RawMessage, error) {
	return c.getJSON(ctx, expand(c.endpoints.Flexzone, "{domain}", domain))
}

type gbfsRoot struct {
	Data map[string]struct {
		Feeds []struct {
			Name string `json:"name"`
			URL  string `json:"url"`
		} `json:"feeds"`
	} `json:"data"`
}

// FetchVehicleTypes discovers the vehicle_types feed through the GBFS root
// document of systemID and fetches it. It returns nil when the system does
// not advertise one.
func (c *Client) FetchVehicleTypes(ctx context.Context, systemID string) (json.RawMessage, error) {
	raw, err := c.getJSON(ctx, expand(c.endpoints.GBFS, "{system_id}", systemID))
	if err != nil {
		return nil, err
	}

	var root gbfsRoot
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("decode gbfs root: %w", err)
	}

	for _, feed := range root.Data["en"].Feeds {
		if feed.Name == "vehicle_types" && feed.URL != "" {
			return c.getJSON(ctx, feed.URL)
		}
	}
	return nil, nil
}

func (c *Client) getJSON(ctx context.Context, target string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", target, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: target, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", target, err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("malformed JSON from %s", target)
	}
	return json.RawMessage(body), nil
}

func expand(template, placeholder, value string) string {
	return strings.ReplaceAll(template, placeholder, url.PathEscape(value))
}
