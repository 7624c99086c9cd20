package metrics

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"studiobook/internal/apperr"
)

const namespace = "studiobook"

var (
	once sync.Once

	searchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "availability_search_total",
			Help:      "Count of availability searches by outcome.",
		},
		[]string{"outcome"},
	)

	searchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "availability_search_duration_seconds",
			Help:      "Latency of availability searches.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	slotsReturned = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "availability_slots_returned",
			Help:      "Number of slots returned per search page.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50},
		},
	)

	commitTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservation_commit_total",
			Help:      "Count of reservation commits by outcome.",
		},
		[]string{"outcome"},
	)

	commitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reservation_commit_duration_seconds",
			Help:      "Latency of reservation commits.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	statusTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservation_status_transitions_total",
			Help:      "Count of reservation status changes.",
		},
		[]string{"from", "to"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Count of API requests by endpoint and status.",
		},
		[]string{"endpoint", "status"},
	)

	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_cache_lookups_total",
			Help:      "Count of catalog cache lookups by kind and result.",
		},
		[]string{"kind", "result"},
	)

	eventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Count of domain events published by type.",
		},
		[]string{"type"},
	)

	backups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "database_backups_total",
			Help:      "Count of database backups by result.",
		},
		[]string{"result"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			searchTotal, searchDuration, slotsReturned,
			commitTotal, commitDuration, statusTransitions,
			httpRequests, cacheLookups, eventsPublished, backups,
		)
	})
}

// Outcome maps an error onto a low-cardinality label.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return string(appErr.Kind)
	}
	return string(apperr.KindInternal)
}

func ObserveSearch(started time.Time, slots int, err error) {
	searchTotal.WithLabelValues(Outcome(err)).Inc()
	searchDuration.Observe(time.Since(started).Seconds())
	if err == nil {
		slotsReturned.Observe(float64(slots))
	}
}

func ObserveCommit(started time.Time, err error) {
	commitTotal.WithLabelValues(Outcome(err)).Inc()
	commitDuration.Observe(time.Since(started).Seconds())
}

func IncStatusTransition(from, to string) {
	statusTransitions.WithLabelValues(from, to).Inc()
}

func IncHTTP(endpoint string, status int) {
	httpRequests.WithLabelValues(endpoint, statusClass(status)).Inc()
}

func IncCache(kind, result string) {
	cacheLookups.WithLabelValues(kind, result).Inc()
}

func IncEvent(eventType string) {
	eventsPublished.WithLabelValues(eventType).Inc()
}

func IncBackup(result string) {
	backups.WithLabelValues(result).Inc()
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
