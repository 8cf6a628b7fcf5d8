// metrics.go — Prometheus HTTP метрики для Attribute Admin.
// Регистрирует метрики: aa_http_requests_total, aa_http_request_duration_seconds.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aa_http_requests_total",
			Help: "Общее количество HTTP-запросов к Attribute Admin",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aa_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к Attribute Admin в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Записывает количество запросов и длительность для каждого endpoint.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Нормализуем путь для лейблов метрик
			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(duration)
		})
	}
}

// normalizePath заменяет идентификаторы пользователей в пути на {user_id}
// и сводит неизвестные пути к одному лейблу.
// /api/v1/role-overrides/a1b2c3d4-... → /api/v1/role-overrides/{user_id}
func normalizePath(path string) string {
	// Статические пути — возвращаем как есть
	switch path {
	case "/health/live", "/health/ready", "/metrics",
		"/api/v1/me",
		"/api/v1/schema",
		"/api/v1/roster",
		"/api/v1/roster/refresh",
		"/api/v1/status",
		"/api/v1/edit-session",
		"/api/v1/edit-session/toggle",
		"/api/v1/edit-session/commit",
		"/api/v1/role-overrides":
		return path
	}

	const overridesPrefix = "/api/v1/role-overrides/"
	if strings.HasPrefix(path, overridesPrefix) && len(path) > len(overridesPrefix) {
		return overridesPrefix + "{user_id}"
	}

	return "other"
}
