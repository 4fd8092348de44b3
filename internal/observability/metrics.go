package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	commandsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ev3ctl",
			Subsystem: "engine",
			Name:      "commands_total",
			Help:      "Commands written to the brick.",
		},
		[]string{"link", "kind", "reply"},
	)
	replies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ev3ctl",
			Subsystem: "engine",
			Name:      "replies_total",
			Help:      "Replies matched to a waiting command.",
		},
		[]string{"link", "kind", "success"},
	)
	waitDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ev3ctl",
			Subsystem: "engine",
			Name:      "wait_duration_seconds",
			Help:      "Time spent waiting for a matching reply.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"link", "kind"},
	)
	stashed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ev3ctl",
			Subsystem: "engine",
			Name:      "stashed_replies_total",
			Help:      "Replies read for a different counter and stashed.",
		},
		[]string{"link"},
	)
	shortReads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ev3ctl",
			Subsystem: "engine",
			Name:      "short_reads_total",
			Help:      "Reads too short to hold a reply header.",
		},
		[]string{"link"},
	)
	linkErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ev3ctl",
			Subsystem: "transport",
			Name:      "errors_total",
			Help:      "Transport operation failures.",
		},
		[]string{"link", "op"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ev3ctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Requests served by the metrics endpoint.",
		},
		[]string{"method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(commandsSent, replies, waitDuration, stashed, shortReads, linkErrors, httpRequests)
	})
}

func RecordCommand(link, kind string, wantReply bool) {
	RegisterMetrics()
	commandsSent.WithLabelValues(link, kind, strconv.FormatBool(wantReply)).Inc()
}

func RecordReply(link, kind string, success bool, waited time.Duration) {
	RegisterMetrics()
	replies.WithLabelValues(link, kind, strconv.FormatBool(success)).Inc()
	waitDuration.WithLabelValues(link, kind).Observe(waited.Seconds())
}

func RecordStashed(link string) {
	RegisterMetrics()
	stashed.WithLabelValues(link).Inc()
}

func RecordShortRead(link string) {
	RegisterMetrics()
	shortReads.WithLabelValues(link).Inc()
}

func RecordLinkError(link, op string) {
	RegisterMetrics()
	linkErrors.WithLabelValues(link, op).Inc()
}

func RecordHTTPRequest(method, path string, status int) {
	RegisterMetrics()
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
}
