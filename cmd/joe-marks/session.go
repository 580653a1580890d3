package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/joestump/joe-marks/internal/bookmarks"
	"github.com/joestump/joe-marks/internal/client"
	"github.com/joestump/joe-marks/internal/config"
	"github.com/joestump/joe-marks/internal/logger"
)

// session is a signed-in sync store for the client commands.
type session struct {
	store *bookmarks.SyncStore
	ids   *client.TokenIdentity
	log   logger.Logger
	stop  func()
}

// openSession signs in with the configured token and waits for the first
// snapshot. When live is set, a failed change subscription is fatal too.
func openSession(ctx context.Context, live bool) (*session, error) {
	cfg, err := config.LoadClient()
	if err != nil {
		return nil, err
	}
	log, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	c := client.New(cfg.ServerURL, "", client.Options{Timeout: cfg.Timeout, Log: log})
	ids := client.NewTokenIdentity(c)

	opts := bookmarks.DefaultOptions()
	opts.ReconnectAttempts = cfg.ReconnectAttempts
	opts.ReconnectBackoff = cfg.ReconnectBackoff
	s := bookmarks.NewSyncStore(c, log, opts)
	stop := bookmarks.Bind(ctx, ids, s, log)

	sess := &session{store: s, ids: ids, log: log, stop: stop}
	if _, err := ids.SignIn(ctx, cfg.Token); err != nil {
		sess.Close()
		return nil, fmt.Errorf("signing in (mint a token at %s): %w", ids.LoginURL(), err)
	}

	if err := s.Err(); err != nil {
		var reqErr *bookmarks.RequestError
		if live || errors.As(err, &reqErr) {
			sess.Close()
			return nil, err
		}
		log.Debug("continuing without change stream", logger.Error(err))
	}
	return sess, nil
}

func (s *session) Close() {
	s.stop()
	_ = s.log.Sync()
}
