// Package realtime fans bookmark changes out to live subscribers.
//
// Writes are published to a Broker; every subscriber whose owner matches the
// changed bookmark receives the event on its own queue. The in-process Hub is
// enough for a single server; RedisBroker relays events through a redis
// channel so that every instance behind a load balancer sees every write.
package realtime

import (
	"context"

	"github.com/joestump/joe-marks/internal/store"
)

// EventType identifies the kind of row change.
type EventType string

const (
	EventCreate EventType = "CREATE"
	EventDelete EventType = "DELETE"
)

// Event is a single bookmark change. For deletes, Bookmark holds the row as it
// was before removal.
type Event struct {
	Type     EventType      `json:"type"`
	Bookmark store.Bookmark `json:"record"`
}

// Publisher accepts change events for fan-out.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}
