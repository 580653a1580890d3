package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/joestump/joe-marks/internal/bookmarks"
	"github.com/joestump/joe-marks/internal/logger"
)

// Subscribe opens the change stream over a websocket. onEvent runs on the
// stream's reader goroutine, one event at a time.
func (c *Client) Subscribe(ctx context.Context, req bookmarks.SubscribeRequest, onEvent func(bookmarks.ChangeEvent)) (bookmarks.Subscription, error) {
	u, err := c.changesURL(req.Channel)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	if token := c.currentToken(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, resp, err := websocket.Dial(ctx, u, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		if resp != nil && resp.StatusCode >= 400 {
			return nil, &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return nil, fmt.Errorf("dialing change stream: %w", err)
	}

	readCtx, cancel := context.WithCancel(context.Background())
	s := &subscription{
		conn:   conn,
		cancel: cancel,
		done:   make(chan struct{}),
		log:    c.log.With(logger.String("channel", req.Channel)),
	}
	go s.read(readCtx, onEvent)
	return s, nil
}

func (c *Client) changesURL(channel string) (string, error) {
	u, err := url.Parse(c.baseURL + apiPrefix + "/bookmarks/changes")
	if err != nil {
		return "", err
	}
	switch strings.ToLower(u.Scheme) {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	u.RawQuery = url.Values{"channel": {channel}}.Encode()
	return u.String(), nil
}

type subscription struct {
	conn   *websocket.Conn
	cancel context.CancelFunc
	done   chan struct{}
	log    logger.Logger

	mu       sync.Mutex
	released bool
	err      error
}

func (s *subscription) read(ctx context.Context, onEvent func(bookmarks.ChangeEvent)) {
	defer close(s.done)
	for {
		var ev bookmarks.ChangeEvent
		err := wsjson.Read(ctx, s.conn, &ev)

		s.mu.Lock()
		released := s.released
		if err != nil && !released {
			s.err = err
		}
		s.mu.Unlock()

		if err != nil || released {
			if err != nil && !released {
				s.log.Debug("change stream ended", logger.Error(err))
			}
			return
		}
		if ev.Type != bookmarks.EventCreate && ev.Type != bookmarks.EventDelete {
			s.log.Warn("ignoring change event", logger.String("type", string(ev.Type)))
			continue
		}
		onEvent(ev)
	}
}

// Release stops the reader and waits for it to exit. It must not be called
// from onEvent.
func (s *subscription) Release() error {
	s.mu.Lock()
	already := s.released
	s.released = true
	s.mu.Unlock()
	if already {
		<-s.done
		return nil
	}

	s.cancel()
	<-s.done
	// The canceled read usually closed the conn already.
	_ = s.conn.CloseNow()
	return nil
}

func (s *subscription) Done() <-chan struct{} { return s.done }

func (s *subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
