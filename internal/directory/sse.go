package directory

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// defaultSubscribeRetry is the delay before reconnecting a dropped stream.
const defaultSubscribeRetry = 5 * time.Second

// Subscribe opens the server-sent-events stream for a screen and delivers
// change events until ctx is cancelled. Connection failures and stream drops
// are absorbed by reconnecting after the configured retry delay; the channel
// is only closed when ctx ends.
func (c *RestClient) Subscribe(ctx context.Context, screenID string) (<-chan ChangeEvent, error) {
	events := make(chan ChangeEvent)

	go func() {
		defer close(events)

		for {
			if err := c.streamEvents(ctx, screenID, events); err != nil {
				if ctx.Err() != nil {
					return
				}
				c.logger.Warn("event stream disconnected",
					slog.String("screen_id", screenID),
					slog.String("error", err.Error()),
					slog.Duration("retry_in", c.subscribeRetry),
				)
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(c.subscribeRetry):
			}
		}
	}()

	return events, nil
}

// streamEvents connects once and pumps events until the stream ends.
func (c *RestClient) streamEvents(ctx context.Context, screenID string, events chan<- ChangeEvent) error {
	req, err := c.newRequest(ctx, http.MethodGet, c.endpoint("/api/v1/screens/%s/events", screenID), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	// Streams are long-lived, so bypass the retrying client whose overall
	// request timeout would cut the body mid-stream.
	resp, err := http.DefaultTransport.RoundTrip(req)
	if err != nil {
		return fmt.Errorf("connecting event stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("event stream returned status %d", resp.StatusCode)
	}

	c.logger.Debug("event stream connected", slog.String("screen_id", screenID))

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "" {
			continue
		}

		var event ChangeEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			c.logger.Warn("skipping malformed event",
				slog.String("screen_id", screenID),
				slog.String("error", err.Error()),
			)
			continue
		}

		select {
		case events <- event:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading event stream: %w", err)
	}
	return fmt.Errorf("event stream closed by server")
}
