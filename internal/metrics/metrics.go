// Package metrics регистрирует Prometheus-метрики маркетплейса.
// Все методы безопасны для нулевого *Metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

const namespace = "gophermarket"

// Metrics объединяет доменные и HTTP-метрики.
type Metrics struct {
	checkouts         *prometheus.CounterVec
	statusTransitions *prometheus.CounterVec
	settledLines      prometheus.Counter
	settledAmount     *prometheus.CounterVec
	withdrawals       *prometheus.CounterVec
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

// New регистрирует метрики на reg. При reg == nil возвращает заглушку.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}
	m := &Metrics{
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkouts_total",
			Help:      "Checkout attempts by result.",
		}, []string{"result"}),
		statusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_status_transitions_total",
			Help:      "Order status transitions by target status.",
		}, []string{"to"}),
		settledLines: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlement_lines_total",
			Help:      "Order lines settled.",
		}),
		settledAmount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlement_amount_total",
			Help:      "Settled amount by recipient.",
		}, []string{"recipient"}),
		withdrawals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "withdrawals_total",
			Help:      "Withdrawal transactions by status.",
		}, []string{"status"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
	reg.MustRegister(
		m.checkouts,
		m.statusTransitions,
		m.settledLines,
		m.settledAmount,
		m.withdrawals,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// IncCheckout учитывает попытку оформления заказа.
func (m *Metrics) IncCheckout(result string) {
	if m == nil || m.checkouts == nil {
		return
	}
	m.checkouts.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncStatusTransition учитывает смену статуса заказа.
func (m *Metrics) IncStatusTransition(to string) {
	if m == nil || m.statusTransitions == nil {
		return
	}
	m.statusTransitions.WithLabelValues(normalizeLabel(to)).Inc()
}

// ObserveSettlement учитывает расчёт по строкам заказа.
func (m *Metrics) ObserveSettlement(lines int, sellerTotal, platformTotal decimal.Decimal) {
	if m == nil || m.settledLines == nil {
		return
	}
	m.settledLines.Add(float64(lines))
	m.settledAmount.WithLabelValues("seller").Add(sellerTotal.InexactFloat64())
	m.settledAmount.WithLabelValues("platform").Add(platformTotal.InexactFloat64())
}

// IncWithdrawal учитывает заявку на вывод в указанном статусе.
func (m *Metrics) IncWithdrawal(status string) {
	if m == nil || m.withdrawals == nil {
		return
	}
	m.withdrawals.WithLabelValues(normalizeLabel(status)).Inc()
}

// Middleware собирает метрики HTTP-запросов по шаблону маршрута chi.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil || m.httpRequests == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.httpRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
