package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskboard/internal/board"
	"github.com/BuzzLyutic/taskboard/internal/model"
)

const maxEventSize = 1 << 20

// Stream is a live subscription to task changes.
type Stream struct {
	events chan model.ChangeEvent
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *Stream) Events() <-chan model.ChangeEvent { return s.events }

// Close ends the subscription and waits for the reader to stop.
func (s *Stream) Close() error {
	s.cancel()
	<-s.done
	return nil
}

// Subscribe opens the change stream. It returns once the server has accepted
// the subscription, so every write made after it returns is delivered.
func (c *Client) Subscribe(ctx context.Context) (board.Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	req, err := c.newRequest(ctx, http.MethodGet, "/api/tasks/stream", nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("subscribe: %w", readStatusError(resp))
	}

	s := &Stream{
		events: make(chan model.ChangeEvent, 16),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		defer close(s.events)
		defer resp.Body.Close()
		c.readEvents(ctx, resp, s.events)
	}()
	return s, nil
}

func (c *Client) readEvents(ctx context.Context, resp *http.Response, out chan<- model.ChangeEvent) {
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 4096), maxEventSize)

	var data strings.Builder
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if data.Len() == 0 {
				continue
			}
			var ev model.ChangeEvent
			if err := json.Unmarshal([]byte(data.String()), &ev); err != nil {
				c.logger.Warn("skipping malformed change event", zap.Error(err))
			} else {
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
			data.Reset()
		case strings.HasPrefix(line, ":"):
			// comment or heartbeat
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := sc.Err(); err != nil && ctx.Err() == nil {
		c.logger.Warn("change stream ended", zap.Error(err))
	}
}
