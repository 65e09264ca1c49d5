// Package metrics prometheus-метрики сервиса: HTTP, база данных и доменные счетчики
package metrics

import (
	"database/sql"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics коллектор метрик сервиса
type Metrics struct {
	serviceName string

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	dbQueryDuration   *prometheus.HistogramVec
	dbPoolConnections *prometheus.GaugeVec

	refundsTotal           *prometheus.CounterVec
	refundAmountMinorTotal prometheus.Counter
	waitlistMatchesTotal   *prometheus.CounterVec
}

// New создает и регистрирует коллектор метрик
func New(serviceName string) *Metrics {
	constLabels := prometheus.Labels{"service": serviceName}

	return &Metrics{
		serviceName: serviceName,
		httpRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name:        "http_requests_total",
			Help:        "Total number of HTTP requests",
			ConstLabels: constLabels,
		}, []string{"method", "path", "status"}),
		httpRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request duration in seconds",
			ConstLabels: constLabels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"method", "path"}),
		dbQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "db_query_duration_seconds",
			Help:        "Database query duration in seconds",
			ConstLabels: constLabels,
			Buckets:     []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation"}),
		dbPoolConnections: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "db_pool_connections",
			Help:        "Database connection pool state",
			ConstLabels: constLabels,
		}, []string{"state"}),
		refundsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name:        "refunds_total",
			Help:        "Total number of committed cancellation outcomes",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		refundAmountMinorTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name:        "refund_amount_minor_units_total",
			Help:        "Total refunded amount in minor currency units",
			ConstLabels: constLabels,
		}),
		waitlistMatchesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name:        "waitlist_matches_total",
			Help:        "Total number of waitlist match attempts by result",
			ConstLabels: constLabels,
		}, []string{"result"}),
	}
}

// ObserveHTTPRequest фиксирует завершенный HTTP-запрос
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// ObserveDBQuery фиксирует длительность запроса к базе данных
func (m *Metrics) ObserveDBQuery(operation string, duration time.Duration) {
	m.dbQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetDBPoolStats обновляет gauges состояния connection pool
func (m *Metrics) SetDBPoolStats(stats sql.DBStats) {
	m.dbPoolConnections.WithLabelValues("open").Set(float64(stats.OpenConnections))
	m.dbPoolConnections.WithLabelValues("in_use").Set(float64(stats.InUse))
	m.dbPoolConnections.WithLabelValues("idle").Set(float64(stats.Idle))
}

// IncRefundOutcome фиксирует закоммиченный исход отмены и сумму возврата
func (m *Metrics) IncRefundOutcome(outcome string, refundMinor int64) {
	m.refundsTotal.WithLabelValues(outcome).Inc()
	if refundMinor > 0 {
		m.refundAmountMinorTotal.Add(float64(refundMinor))
	}
}

// IncWaitlistMatch фиксирует результат попытки заполнения слота
func (m *Metrics) IncWaitlistMatch(result string) {
	m.waitlistMatchesTotal.WithLabelValues(result).Inc()
}

// Disabled коллектор-заглушка, используется при выключенных метриках
type Disabled struct{}

func (Disabled) IncRefundOutcome(outcome string, refundMinor int64) {}

func (Disabled) IncWaitlistMatch(result string) {}
