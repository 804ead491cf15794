// Package swisstopo talks to the swisstopo open geodata asset search API
// and downloads data tiles into a local cache.
package swisstopo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/paulmach/orb"

	"github.com/dachtraufe/traufe/pkg/logger"
)

// Collections served by the asset search API.
const (
	CollectionBuildings = "ch.swisstopo.swissbuildings3d_2"
	CollectionDEM       = "ch.swisstopo.swissalti3d"
)

// Asset formats requested per collection.
const (
	formatBuildingsDXF = "application/x.dxf+zip"
	formatDEMGeoTIFF   = "image/tiff; application=geotiff; profile=cloud-optimized"
	demResolution      = "0.5"
	srid               = "2056"
)

const defaultBaseURL = "https://ogd.swisstopo.admin.ch/services/swiseld/services/assets"

// Asset is a downloadable data tile returned by the search API.
type Asset struct {
	Href string `json:"ass_asset_href"`
}

// searchResponse mirrors the relevant part of the API response.
type searchResponse struct {
	Items []Asset `json:"items"`
}

// Client queries the swisstopo asset search API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
	logger     logger.Logger
}

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL (used by tests).
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout on the default client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithLogger sets a custom logger for the client.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a swisstopo API client. Requests are retried with
// backoff on transient failures.
func NewClient(opts ...Option) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.Logger = nil // retry logging goes through our logger instead

	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: rc.StandardClient(),
		userAgent:  "traufe/1.0",
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Get().Named("swisstopo")
	}
	return c
}

// SearchBuildings returns the swissBUILDINGS3D DXF tiles intersecting
// the LV95 bounding box.
func (c *Client) SearchBuildings(ctx context.Context, bound orb.Bound) ([]Asset, error) {
	params := url.Values{}
	params.Set("format", formatBuildingsDXF)
	return c.search(ctx, CollectionBuildings, bound, params)
}

// SearchDEM returns the swissALTI3D GeoTIFF tiles intersecting the
// LV95 bounding box.
func (c *Client) SearchDEM(ctx context.Context, bound orb.Bound) ([]Asset, error) {
	params := url.Values{}
	params.Set("format", formatDEMGeoTIFF)
	params.Set("resolution", demResolution)
	return c.search(ctx, CollectionDEM, bound, params)
}

func (c *Client) search(ctx context.Context, collection string, bound orb.Bound, params url.Values) ([]Asset, error) {
	params.Set("srid", srid)
	params.Set("state", "current")
	params.Set("xMin", fmt.Sprintf("%.2f", bound.Min[0]))
	params.Set("xMax", fmt.Sprintf("%.2f", bound.Max[0]))
	params.Set("yMin", fmt.Sprintf("%.2f", bound.Min[1]))
	params.Set("yMax", fmt.Sprintf("%.2f", bound.Max[1]))

	u := fmt.Sprintf("%s/%s/search?%s", c.baseURL, collection, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "*/*")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearch, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrSearch, resp.StatusCode)
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrSearch, err)
	}

	c.logger.Debug(ctx, "asset search completed",
		logger.String("collection", collection),
		logger.Int("assets", len(sr.Items)),
		logger.Duration("elapsed", time.Since(start)),
	)

	if len(sr.Items) == 0 {
		return nil, ErrNoAssets
	}
	return sr.Items, nil
}
