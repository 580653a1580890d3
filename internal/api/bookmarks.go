package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"

	"github.com/joestump/joe-marks/internal/auth"
	"github.com/joestump/joe-marks/internal/logger"
	"github.com/joestump/joe-marks/internal/metrics"
	"github.com/joestump/joe-marks/internal/realtime"
	"github.com/joestump/joe-marks/internal/store"
)

const writeTimeout = 10 * time.Second

type bookmarksHandler struct {
	store     store.BookmarkStoreIface
	hub       *realtime.Hub
	publisher realtime.Publisher
	log       logger.Logger
	done      <-chan struct{}
	ping      time.Duration
}

// List returns the caller's bookmarks, newest first.
// GET /api/v1/bookmarks
//
// @Summary      List bookmarks
// @Description  Returns the caller's bookmarks, newest first.
// @Tags         Bookmarks
// @Produce      json
// @Success      200  {object}  BookmarkListResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Security     BearerToken
// @Router       /bookmarks [get]
func (h *bookmarksHandler) List(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	items, err := h.store.ListByOwner(r.Context(), user.ID)
	if err != nil {
		h.log.Error("listing bookmarks", logger.String("owner_id", user.ID), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error", CodeInternal)
		return
	}
	writeJSON(w, http.StatusOK, BookmarkListResponse{Bookmarks: items})
}

// Create stores a bookmark for the caller and publishes a CREATE event.
// POST /api/v1/bookmarks
//
// @Summary      Create a bookmark
// @Description  Stores a bookmark owned by the caller and notifies the caller's change streams.
// @Tags         Bookmarks
// @Accept       json
// @Produce      json
// @Param        body  body      CreateBookmarkRequest  true  "Bookmark to create"
// @Success      201   {object}  store.Bookmark
// @Failure      400   {object}  ErrorResponse
// @Failure      401   {object}  ErrorResponse
// @Failure      500   {object}  ErrorResponse
// @Security     BearerToken
// @Router       /bookmarks [post]
func (h *bookmarksHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())

	var req CreateBookmarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", CodeBadRequest)
		return
	}

	b, err := h.store.Create(r.Context(), user.ID, req.Title, req.URL)
	switch {
	case errors.Is(err, store.ErrInvalidTitle):
		writeError(w, http.StatusBadRequest, err.Error(), CodeInvalidTitle)
		return
	case errors.Is(err, store.ErrInvalidURL):
		writeError(w, http.StatusBadRequest, err.Error(), CodeInvalidURL)
		return
	case err != nil:
		h.log.Error("creating bookmark", logger.String("owner_id", user.ID), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error", CodeInternal)
		return
	}
	metrics.BookmarksCreatedTotal.Inc()

	h.publish(r.Context(), realtime.Event{Type: realtime.EventCreate, Bookmark: *b})
	writeJSON(w, http.StatusCreated, b)
}

// Delete removes one of the caller's bookmarks and publishes a DELETE event
// carrying the removed row. Missing and foreign ids are both 404.
// DELETE /api/v1/bookmarks/{id}
//
// @Summary      Delete a bookmark
// @Tags         Bookmarks
// @Param        id  path  string  true  "Bookmark ID"
// @Success      204
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Security     BearerToken
// @Router       /bookmarks/{id} [delete]
func (h *bookmarksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())

	old, err := h.store.Delete(r.Context(), chi.URLParam(r, "id"), user.ID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "bookmark not found", CodeNotFound)
		return
	}
	if err != nil {
		h.log.Error("deleting bookmark", logger.String("owner_id", user.ID), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error", CodeInternal)
		return
	}
	metrics.BookmarksDeletedTotal.Inc()

	h.publish(r.Context(), realtime.Event{Type: realtime.EventDelete, Bookmark: *old})
	w.WriteHeader(http.StatusNoContent)
}

// publish fans ev out. The write already committed, so a failure is logged
// rather than reported; subscribers that miss it resync on reconnect.
func (h *bookmarksHandler) publish(ctx context.Context, ev realtime.Event) {
	if err := h.publisher.Publish(context.WithoutCancel(ctx), ev); err != nil {
		h.log.Error("publishing change event",
			logger.String("type", string(ev.Type)),
			logger.String("id", ev.Bookmark.ID),
			logger.Error(err))
	}
}

// Changes upgrades to a websocket and streams the caller's change events as
// {"type","record"} JSON text frames until either side goes away. The
// channel query parameter names the subscription; reusing a name replaces
// the older stream.
// GET /api/v1/bookmarks/changes?channel=<name>
//
// @Summary      Stream bookmark changes
// @Description  Websocket upgrade. Each text frame is a realtime.Event. A stream replaced by a newer one on the same channel closes with status 1013.
// @Tags         Bookmarks
// @Param        channel  query  string  true  "Subscription channel name"
// @Success      101
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Security     BearerToken
// @Router       /bookmarks/changes [get]
func (h *bookmarksHandler) Changes(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	channel := strings.TrimSpace(r.URL.Query().Get("channel"))
	if channel == "" {
		writeError(w, http.StatusBadRequest, "channel is required", CodeMissingChannel)
		return
	}

	// Register before the handshake completes so a client that queries its
	// snapshot as soon as Dial returns cannot miss a change.
	sub := h.hub.Subscribe(channel, user.ID)
	defer sub.Close()

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", logger.Error(err))
		return
	}
	defer conn.CloseNow()

	log := h.log.With(logger.String("channel", channel), logger.String("owner_id", user.ID))
	log.Debug("change stream opened")

	// Clients never send data; CloseRead handles control frames and cancels
	// ctx once the peer disconnects.
	ctx := conn.CloseRead(r.Context())
	ticker := time.NewTicker(h.ping)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("change stream closed by client")
			return
		case <-h.done:
			_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				log.Debug("change stream ping failed", logger.Error(err))
				return
			}
		case ev, ok := <-sub.Events():
			if !ok {
				// Evicted or overflowed: tell the client to resync.
				_ = conn.Close(websocket.StatusTryAgainLater, "subscription closed")
				return
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, conn, ev)
			cancel()
			if err != nil {
				log.Debug("change stream write failed", logger.Error(err))
				return
			}
		}
	}
}
