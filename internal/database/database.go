// Пакет database — PostgreSQL для переопределений ролей администраторов.
// БД опциональна: открывается только при заданном AA_DB_HOST.
// Схема (таблица role_overrides) поставляется встроенными миграциями golang-migrate.
package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/goartstore/attribute-admin/internal/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	// maxConns — переопределения читаются один раз на запрос, большой пул не нужен.
	maxConns        = 4
	applicationName = "attribute-admin"
	pingTimeout     = 5 * time.Second
	readyTimeout    = 3 * time.Second
)

// DB — пул pgx для репозитория и *sql.DB поверх того же пула для pgcheck topologymetrics.
type DB struct {
	Pool *pgxpool.Pool
	SQL  *sql.DB
}

// Open приводит схему к последней версии и открывает пул подключений.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*DB, error) {
	if err := migrateUp(cfg.DatabaseURL(), logger); err != nil {
		return nil, err
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга DSN: %w", err)
	}
	poolCfg.MaxConns = maxConns
	poolCfg.ConnConfig.RuntimeParams["application_name"] = applicationName

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания пула подключений: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка подключения к PostgreSQL: %w", err)
	}

	logger.Info("Подключение к PostgreSQL установлено",
		slog.String("host", cfg.DBHost),
		slog.Int("port", cfg.DBPort),
		slog.String("database", cfg.DBName),
		slog.Int("max_conns", maxConns),
	)

	return &DB{Pool: pool, SQL: stdlib.OpenDBFromPool(pool)}, nil
}

// Close закрывает адаптер database/sql и пул.
func (d *DB) Close() {
	_ = d.SQL.Close()
	d.Pool.Close()
}

// CheckReady проверяет PostgreSQL для /health/ready. Реализует handlers.ReadinessChecker.
func (d *DB) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), readyTimeout)
	defer cancel()

	if err := d.Pool.Ping(ctx); err != nil {
		return "fail", fmt.Sprintf("PostgreSQL недоступен: %v", err)
	}
	st := d.Pool.Stat()
	return "ok", fmt.Sprintf("подключение активно (соединений: %d из %d)", st.TotalConns(), st.MaxConns())
}

// migrateUp применяет встроенные миграции. Схема в состоянии dirty не исправляется
// автоматически: нужен ручной migrate force.
func migrateUp(databaseURL string, logger *slog.Logger) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("ошибка создания источника миграций: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return fmt.Errorf("ошибка инициализации миграций: %w", err)
	}
	defer m.Close()
	m.Log = migrateLogger{logger: logger}

	from := schemaVersion(m)
	err = m.Up()
	var dirty migrate.ErrDirty
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		logger.Debug("Схема БД актуальна", slog.Uint64("version", uint64(from)))
		return nil
	case errors.As(err, &dirty):
		return fmt.Errorf("схема БД в состоянии dirty (версия %d): %w", dirty.Version, err)
	case err != nil:
		return fmt.Errorf("ошибка применения миграций: %w", err)
	}

	logger.Info("Миграции применены",
		slog.Uint64("from_version", uint64(from)),
		slog.Uint64("to_version", uint64(schemaVersion(m))),
	)
	return nil
}

// schemaVersion возвращает текущую версию схемы; 0 — миграции ещё не применялись.
func schemaVersion(m *migrate.Migrate) uint {
	version, _, err := m.Version()
	if err != nil {
		return 0
	}
	return version
}

// migrateLogger направляет журнал golang-migrate в slog.
type migrateLogger struct {
	logger *slog.Logger
}

func (l migrateLogger) Printf(format string, v ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)), slog.String("component", "migrate"))
}

func (l migrateLogger) Verbose() bool {
	return l.logger.Enabled(context.Background(), slog.LevelDebug)
}
