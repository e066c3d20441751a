// Package metrics регистрирует prometheus-метрики сервиса и HTTP middleware для них.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fitcoach_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
	registrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitcoach_registrations_total",
			Help: "Registration attempts by result",
		},
		[]string{"result"},
	)
	verifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitcoach_verifications_total",
			Help: "Email verification attempts by result",
		},
		[]string{"result"},
	)
	quotaDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitcoach_quota_decisions_total",
			Help: "Usage quota decisions by feature",
		},
		[]string{"feature", "allowed"},
	)
	purchases = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitcoach_purchases_total",
			Help: "Purchase and restore outcomes",
		},
		[]string{"result"},
	)
)

// Middleware записывает длительность запроса. Метка route берётся из шаблона chi,
// чтобы идентификаторы в пути не раздували число серий.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
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
		httpRequestDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	})
}

// RecordRegistration учитывает попытку регистрации.
func RecordRegistration(result string) {
	registrations.WithLabelValues(result).Inc()
}

// RecordVerification учитывает попытку подтверждения email.
func RecordVerification(result string) {
	verifications.WithLabelValues(result).Inc()
}

// RecordQuotaDecision учитывает решение по квоте.
func RecordQuotaDecision(feature string, allowed bool) {
	quotaDecisions.WithLabelValues(feature, strconv.FormatBool(allowed)).Inc()
}

// RecordPurchase учитывает результат покупки или восстановления.
func RecordPurchase(result string) {
	purchases.WithLabelValues(result).Inc()
}
