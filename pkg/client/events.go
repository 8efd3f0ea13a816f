package client

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/battos/battdiag/pkg/events"
)

const reconnectDelay = 3 * time.Second

// SubscribeEvents streams daemon events until ctx is done. It reconnects
// after errors; the channel is closed when ctx ends or the key is rejected.
func (c *Client) SubscribeEvents(ctx context.Context) <-chan events.Event {
	out := make(chan events.Event, 16)

	go func() {
		defer close(out)
		for {
			err := c.streamOnce(ctx, out)
			if ctx.Err() != nil {
				return
			}
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				logrus.WithError(err).Error("event stream rejected")
				return
			}
			logrus.WithError(err).Debug("event stream interrupted, reconnecting")

			select {
			case <-ctx.Done():
				return
			case <-time.After(reconnectDelay):
			}
		}
	}()

	return out
}

func (c *Client) streamOnce(ctx context.Context, out chan<- events.Event) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/battery/events", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return connError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return newAPIError(resp.StatusCode, b)
	}

	return readEvents(ctx, bufio.NewScanner(resp.Body), out)
}

// readEvents parses a text/event-stream body. Heartbeats are dropped.
func readEvents(ctx context.Context, sc *bufio.Scanner, out chan<- events.Event) error {
	var (
		name string
		data []string
	)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if len(data) > 0 && name != "heartbeat" {
				ev := events.Event{Name: name, Data: []byte(strings.Join(data, "\n"))}
				select {
				case out <- ev:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			name, data = "", nil
		case strings.HasPrefix(line, ":"):
			// comment
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return errors.New("event stream closed")
}
