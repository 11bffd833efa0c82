package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API and the
// scheduling engine. A nil receiver is safe everywhere so call sites never
// need to guard.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	bookingsCreated   prometheus.Counter
	bookingsConfirmed prometheus.Counter
	bookingsCompleted prometheus.Counter
	capacityConflicts prometheus.Counter
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	bookingsCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bookings_created_total",
		Help: "Total number of booking requests accepted",
	})

	bookingsConfirmed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bookings_confirmed_total",
		Help: "Total number of bookings confirmed with a concrete time",
	})

	bookingsCompleted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bookings_completed_total",
		Help: "Total number of bookings swept to completed",
	})

	capacityConflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "booking_capacity_conflicts_total",
		Help: "Booking attempts rejected because the slot was already full",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "availability_cache_hits_total",
		Help: "Availability range lookups served from cache",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "availability_cache_misses_total",
		Help: "Availability range lookups resolved from the ledger",
	})

	registry.MustRegister(
		requestDuration,
		requestTotal,
		bookingsCreated,
		bookingsConfirmed,
		bookingsCompleted,
		capacityConflicts,
		cacheHits,
		cacheMisses,
	)

	return &MetricsService{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		bookingsCreated:   bookingsCreated,
		bookingsConfirmed: bookingsConfirmed,
		bookingsCompleted: bookingsCompleted,
		capacityConflicts: capacityConflicts,
		cacheHits:         cacheHits,
		cacheMisses:       cacheMisses,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (s *MetricsService) Handler() http.Handler {
	if s == nil {
		return promhttp.Handler()
	}
	return s.handler
}

// ObserveHTTPRequest records one served request.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if s == nil {
		return
	}
	labels := []string{method, path, strconv.Itoa(status)}
	s.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	s.requestTotal.WithLabelValues(labels...).Inc()
}

// IncBookingCreated counts an accepted booking request.
func (s *MetricsService) IncBookingCreated() {
	if s == nil {
		return
	}
	s.bookingsCreated.Inc()
}

// IncBookingConfirmed counts a confirmed booking.
func (s *MetricsService) IncBookingConfirmed() {
	if s == nil {
		return
	}
	s.bookingsConfirmed.Inc()
}

// AddBookingsCompleted counts bookings swept to completed.
func (s *MetricsService) AddBookingsCompleted(n int64) {
	if s == nil {
		return
	}
	s.bookingsCompleted.Add(float64(n))
}

// IncCapacityConflict counts a booking attempt against a full slot.
func (s *MetricsService) IncCapacityConflict() {
	if s == nil {
		return
	}
	s.capacityConflicts.Inc()
}

// IncCacheHit counts an availability cache hit.
func (s *MetricsService) IncCacheHit() {
	if s == nil {
		return
	}
	s.cacheHits.Inc()
}

// IncCacheMiss counts an availability cache miss.
func (s *MetricsService) IncCacheMiss() {
	if s == nil {
		return
	}
	s.cacheMisses.Inc()
}
