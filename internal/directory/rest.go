package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/marqueehq/marquee/internal/httpclient"
	"github.com/marqueehq/marquee/internal/models"
)

// RestClient implements Client against the directory's REST API.
type RestClient struct {
	baseURL string
	apiKey  string
	http    *httpclient.Client
	logger  *slog.Logger

	// subscribeRetry is the delay before reconnecting a dropped event stream.
	subscribeRetry time.Duration
}

var _ Client = (*RestClient)(nil)

// Options configures a RestClient.
type Options struct {
	BaseURL        string
	APIKey         string
	HTTPClient     *httpclient.Client
	Logger         *slog.Logger
	SubscribeRetry time.Duration
}

// NewRestClient creates a directory client for the given base URL.
func NewRestClient(opts Options) *RestClient {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = httpclient.NewWithDefaults()
	}
	if opts.SubscribeRetry <= 0 {
		opts.SubscribeRetry = defaultSubscribeRetry
	}

	return &RestClient{
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		apiKey:         opts.APIKey,
		http:           opts.HTTPClient,
		logger:         opts.Logger,
		subscribeRetry: opts.SubscribeRetry,
	}
}

// endpoint joins the base URL with an API path.
func (c *RestClient) endpoint(format string, args ...any) string {
	return c.baseURL + fmt.Sprintf(format, args...)
}

// newRequest builds a request with auth and JSON headers applied.
func (c *RestClient) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// getJSON performs a GET and decodes the response into out.
// A 404 maps to models.ErrNotFound.
func (c *RestClient) getJSON(ctx context.Context, url string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("directory request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return models.ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("directory returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding directory response: %w", err)
	}
	return nil
}

// GetScreen fetches the screen document, including its schedule block.
func (c *RestClient) GetScreen(ctx context.Context, screenID string) (*models.Screen, error) {
	var screen models.Screen
	if err := c.getJSON(ctx, c.endpoint("/api/v1/screens/%s", screenID), &screen); err != nil {
		return nil, fmt.Errorf("getting screen %s: %w", screenID, err)
	}
	return &screen, nil
}

// GetPlaylist fetches a playlist document by id.
func (c *RestClient) GetPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	var playlist models.Playlist
	if err := c.getJSON(ctx, c.endpoint("/api/v1/playlists/%s", playlistID), &playlist); err != nil {
		return nil, fmt.Errorf("getting playlist %s: %w", playlistID, err)
	}
	return &playlist, nil
}

// GetArea fetches the area document for the screen's area.
func (c *RestClient) GetArea(ctx context.Context, screenID string) (*models.Area, error) {
	var area models.Area
	if err := c.getJSON(ctx, c.endpoint("/api/v1/screens/%s/area", screenID), &area); err != nil {
		return nil, fmt.Errorf("getting area for screen %s: %w", screenID, err)
	}
	return &area, nil
}

// UpdateScreenStatus reports the player's current status to the directory.
func (c *RestClient) UpdateScreenStatus(ctx context.Context, screenID string, update *StatusUpdate) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("encoding status update: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPut,
		c.endpoint("/api/v1/screens/%s/status", screenID), bytes.NewReader(payload))
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("updating screen status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("directory returned status %d", resp.StatusCode)
	}
	return nil
}
