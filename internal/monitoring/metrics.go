package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ticketTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_transitions_total",
			Help: "Ticket lifecycle transitions by resulting status",
		},
		[]string{"status"},
	)

	bookingTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_transitions_total",
			Help: "Booking lifecycle transitions by resulting status",
		},
		[]string{"status"},
	)

	advertisedSlots = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "advertised_tickets_current",
			Help: "Current number of advertised tickets (capped system-wide)",
		},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "status"},
	)
)

func RecordTicketTransition(status string)  { ticketTransitions.WithLabelValues(status).Inc() }
func RecordBookingTransition(status string) { bookingTransitions.WithLabelValues(status).Inc() }
func SetAdvertisedSlots(n int)              { advertisedSlots.Set(float64(n)) }
func AdvertisedSlotAcquired()               { advertisedSlots.Inc() }
func AdvertisedSlotReleased()               { advertisedSlots.Dec() }

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware observes request latency per method and response status.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		httpDuration.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Observe(time.Since(start).Seconds())
	})
}
