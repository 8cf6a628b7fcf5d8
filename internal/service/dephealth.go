// dephealth.go — интеграция с topologymetrics SDK для мониторинга зависимостей.
//
// Attribute Admin мониторит:
//   - Keycloak — HTTP checker к JWKS endpoint (critical)
//   - attribute API — HTTP checker к health endpoint (critical, только бэкенд http)
//   - PostgreSQL — SQL checker через pgxpool (connection pool mode, не critical, если БД настроена)
//
// Метрики доступны на /metrics вместе с остальными Prometheus-метриками:
//   - app_dependency_health — состояние зависимости (1 = ok, 0 = fail)
//   - app_dependency_latency_seconds — задержка проверки
//   - app_dependency_status — категория статуса
//   - app_dependency_status_detail — детальный статус
package service

import (
	"context"
	"database/sql"
	"log/slog"
	"net/url"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // регистрация HTTP checker factory
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"
	"github.com/prometheus/client_golang/prometheus"
)

// DephealthConfig — параметры мониторинга зависимостей.
type DephealthConfig struct {
	// ServiceID — имя вершины графа текущего приложения
	ServiceID string
	// Group — имя группы в метриках (AA_DEPHEALTH_GROUP)
	Group string
	// CheckInterval — интервал проверки (AA_DEPHEALTH_CHECK_INTERVAL)
	CheckInterval time.Duration

	// KeycloakJWKSURL — URL JWKS endpoint Keycloak
	KeycloakJWKSURL string

	// DirectoryURL — базовый URL attribute API; пустой — не мониторится
	DirectoryURL string
	// DirectoryHealthPath — health endpoint attribute API
	DirectoryHealthPath string

	// DB — *sql.DB из stdlib.OpenDBFromPool(); nil — PostgreSQL не мониторится
	DB *sql.DB
	// PGConnURL — URL подключения к PostgreSQL (для лейблов, не для подключения)
	PGConnURL string
}

// DephealthService — сервис мониторинга зависимостей через topologymetrics.
type DephealthService struct {
	dh     *dephealth.DepHealth
	logger *slog.Logger
}

// NewDephealthService создаёт сервис мониторинга зависимостей.
// Метрики регистрируются в глобальном Prometheus registry.
func NewDephealthService(cfg DephealthConfig, logger *slog.Logger) (*DephealthService, error) {
	return newDephealthService(cfg, logger)
}

// NewDephealthServiceWithRegisterer создаёт сервис с указанным Prometheus registerer.
// Используется в тестах для изоляции метрик.
func NewDephealthServiceWithRegisterer(
	cfg DephealthConfig,
	logger *slog.Logger,
	registerer prometheus.Registerer,
) (*DephealthService, error) {
	return newDephealthService(cfg, logger, dephealth.WithRegisterer(registerer))
}

func newDephealthService(cfg DephealthConfig, logger *slog.Logger, extraOpts ...dephealth.Option) (*DephealthService, error) {
	opts := make([]dephealth.Option, 0, 4+len(extraOpts))
	opts = append(opts, dephealth.WithLogger(logger))

	// Keycloak: /health доступен только на management порту,
	// поэтому проверяем path самого JWKS URL
	kcOpts := []dephealth.DependencyOption{
		dephealth.FromURL(cfg.KeycloakJWKSURL),
		dephealth.WithHTTPHealthPath(healthPathFromURL(cfg.KeycloakJWKSURL, "/health")),
		dephealth.CheckInterval(cfg.CheckInterval),
		dephealth.Critical(true),
	}
	if isHTTPS(cfg.KeycloakJWKSURL) {
		kcOpts = append(kcOpts, dephealth.WithHTTPTLSSkipVerify(false))
	}
	opts = append(opts, dephealth.HTTP("keycloak-jwks", kcOpts...))

	if cfg.DirectoryURL != "" {
		dirOpts := []dephealth.DependencyOption{
			dephealth.FromURL(cfg.DirectoryURL),
			dephealth.WithHTTPHealthPath(directoryHealthPath(cfg.DirectoryURL, cfg.DirectoryHealthPath)),
			dephealth.CheckInterval(cfg.CheckInterval),
			dephealth.Critical(true),
		}
		if isHTTPS(cfg.DirectoryURL) {
			dirOpts = append(dirOpts, dephealth.WithHTTPTLSSkipVerify(false))
		}
		opts = append(opts, dephealth.HTTP("attribute-api", dirOpts...))
	}

	if cfg.DB != nil {
		// Без БД сервис работает, отключаются только переопределения ролей
		opts = append(opts, dephealth.AddDependency("postgresql", dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(cfg.DB)),
			dephealth.FromURL(cfg.PGConnURL),
			dephealth.CheckInterval(cfg.CheckInterval),
			dephealth.Critical(false),
		))
	}

	opts = append(opts, extraOpts...)

	dh, err := dephealth.New(cfg.ServiceID, cfg.Group, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// healthPathFromURL возвращает path из rawURL или fallback.
func healthPathFromURL(rawURL, fallback string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Path == "" || parsed.Path == "/" {
		return fallback
	}
	return parsed.Path
}

// directoryHealthPath склеивает base path attribute API и health endpoint.
func directoryHealthPath(directoryURL, healthPath string) string {
	if healthPath == "" {
		healthPath = "/health"
	}
	if healthPath[0] != '/' {
		healthPath = "/" + healthPath
	}
	base := healthPathFromURL(directoryURL, "")
	if base == "" {
		return healthPath
	}
	return base + healthPath
}

func isHTTPS(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	return err == nil && parsed.Scheme == "https"
}

// Start запускает периодическую проверку зависимостей.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг зависимостей запущен")
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг зависимостей.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}

// Health возвращает текущее состояние зависимостей.
// Ключ — имя зависимости, значение — true если ok.
func (ds *DephealthService) Health() map[string]bool {
	return ds.dh.Health()
}
