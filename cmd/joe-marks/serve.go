package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/joestump/joe-marks/internal/api"
	"github.com/joestump/joe-marks/internal/auth"
	"github.com/joestump/joe-marks/internal/config"
	"github.com/joestump/joe-marks/internal/db"
	"github.com/joestump/joe-marks/internal/handler"
	"github.com/joestump/joe-marks/internal/logger"
	"github.com/joestump/joe-marks/internal/metrics"
	"github.com/joestump/joe-marks/internal/realtime"
	"github.com/joestump/joe-marks/internal/store"
)

const (
	shutdownTimeout      = 15 * time.Second
	metricsRefreshPeriod = time.Minute
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log, err := newLogger(cfg.Log)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			database, err := db.New(cfg.DB.Driver, cfg.DB.DSN)
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			if err := db.Migrate(database, cfg.DB.Driver); err != nil {
				return err
			}

			sessionManager := auth.NewSessionManager(database, cfg.DB.Driver, cfg.SessionLifetime, !cfg.InsecureCookies)

			oidcProvider, err := auth.NewProvider(ctx, cfg.OIDC)
			if err != nil {
				return err
			}

			userStore := store.NewUserStore(database)
			bookmarkStore := store.NewBookmarkStore(database)
			tokenStore := auth.NewSQLTokenStore(database)

			hub := realtime.NewHub(realtime.DefaultQueueSize, log)
			var publisher realtime.Publisher = hub
			if cfg.Redis.Addr != "" {
				opts := realtime.DefaultConnectOptions(cfg.Redis.Addr)
				opts.Username = cfg.Redis.Username
				opts.Password = cfg.Redis.Password
				opts.DB = cfg.Redis.DB
				rdb, err := realtime.Connect(ctx, opts, log)
				if err != nil {
					return err
				}
				defer func() { _ = rdb.Close() }()

				broker := realtime.NewRedisBroker(rdb, cfg.Redis.Channel, hub, log)
				publisher = broker
				go func() {
					if err := broker.Run(ctx); err != nil && ctx.Err() == nil {
						log.Error("redis change fan-out stopped", logger.Error(err))
					}
				}()
			}

			go metrics.RefreshTotals(ctx, bookmarkStore, userStore, metricsRefreshPeriod, log)

			bearer := auth.NewBearerTokenMiddleware(tokenStore, userStore, log)
			streamsDone := make(chan struct{})

			router := handler.NewRouter(handler.Deps{
				SessionManager: sessionManager,
				AuthHandlers: auth.NewHandlers(auth.HandlersConfig{
					Authenticator: oidcProvider,
					Sessions:      sessionManager,
					Users:         userStore,
					Tokens:        tokenStore,
					AdminEmail:    cfg.AdminEmail,
					SecureCookies: !cfg.InsecureCookies,
					Log:           log,
				}),
				SessionAuth: auth.NewSessionMiddleware(sessionManager, userStore),
				API: api.NewAPIRouter(api.Deps{
					BearerAuth: bearer,
					Bookmarks:  bookmarkStore,
					Tokens:     tokenStore,
					Hub:        hub,
					Publisher:  publisher,
					Log:        log,
					Done:       streamsDone,
				}),
				Log: log,
			})

			srv := &http.Server{
				Addr:              cfg.HTTP.Addr,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}
			serveErr := make(chan error, 1)
			go func() {
				log.Info("listening", logger.String("addr", cfg.HTTP.Addr))
				serveErr <- srv.ListenAndServe()
			}()

			select {
			case err := <-serveErr:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			log.Info("shutting down")
			// Shutdown does not wait for hijacked websocket connections;
			// closing streamsDone ends them with StatusGoingAway.
			close(streamsDone)
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			err = srv.Shutdown(shutdownCtx)
			bearer.Wait()
			return err
		},
	}
}

func newLogger(l config.Log) (logger.Logger, error) {
	return logger.New(logger.Options{Level: l.Level, Pretty: l.Pretty, File: l.File})
}
