package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookmarksCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marks_bookmarks_created_total",
		Help: "Bookmarks successfully inserted.",
	})

	BookmarksDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marks_bookmarks_deleted_total",
		Help: "Bookmarks successfully deleted.",
	})

	ChangeEventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marks_change_events_published_total",
		Help: "Change events handed to the fan-out broker, by event type.",
	}, []string{"type"})

	ChangeEventsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marks_change_events_dropped_total",
		Help: "Subscribers closed because their event queue overflowed.",
	})

	ChangeSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "marks_change_subscribers",
		Help: "Live change-notification subscribers on this instance.",
	})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marks_http_requests_total",
		Help: "HTTP requests served, by status code.",
	}, []string{"status"})

	BookmarksTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "marks_bookmarks_total",
		Help: "Total number of bookmarks in the database.",
	})

	UsersTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "marks_users_total",
		Help: "Total number of registered users in the database.",
	})
)
