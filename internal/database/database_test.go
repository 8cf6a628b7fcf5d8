package database

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/bigkaa/goartstore/attribute-admin/internal/config"
)

// startPostgres запускает PostgreSQL в контейнере и возвращает конфигурацию подключения.
// Требует TEST_INTEGRATION.
func startPostgres(t *testing.T) *config.Config {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx, "docker.io/postgres:17-alpine",
		postgres.WithDatabase("attribute_admin"),
		postgres.WithUsername("aa"),
		postgres.WithPassword("aa-test"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port контейнера: %v", err)
	}

	return &config.Config{
		DBHost:     host,
		DBPort:     port.Int(),
		DBName:     "attribute_admin",
		DBUser:     "aa",
		DBPassword: "aa-test",
		DBSSLMode:  "disable",
	}
}

func testLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestOpen(t *testing.T) {
	cfg := startPostgres(t)
	ctx := context.Background()
	var logs bytes.Buffer

	db, err := Open(ctx, cfg, testLogger(&logs))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if !strings.Contains(logs.String(), "Миграции применены") {
		t.Errorf("первый Open должен применить миграции, журнал:\n%s", logs.String())
	}

	// Таблица создана, CHECK отклоняет чужие роли
	if _, err := db.Pool.Exec(ctx,
		`INSERT INTO role_overrides (subject, username, role) VALUES ('s-1', 'alice', 'admin')`); err != nil {
		t.Fatalf("вставка допустимой роли: %v", err)
	}
	if _, err := db.Pool.Exec(ctx,
		`INSERT INTO role_overrides (subject, username, role) VALUES ('s-2', 'bob', 'superadmin')`); err == nil {
		t.Error("ожидалась ошибка CHECK для недопустимой роли")
	}

	// Адаптер database/sql работает поверх того же пула
	var n int
	if err := db.SQL.QueryRowContext(ctx, `SELECT COUNT(*) FROM role_overrides`).Scan(&n); err != nil {
		t.Fatalf("запрос через *sql.DB: %v", err)
	}
	if n != 1 {
		t.Errorf("строк = %d, ожидается 1", n)
	}

	status, msg := db.CheckReady()
	if status != "ok" || !strings.Contains(msg, "соединений") {
		t.Errorf("CheckReady = %q, %q", status, msg)
	}

	// Повторный Open не меняет схему и сохраняет данные
	logs.Reset()
	again, err := Open(ctx, cfg, testLogger(&logs))
	if err != nil {
		t.Fatalf("повторный Open: %v", err)
	}
	defer again.Close()
	if !strings.Contains(logs.String(), "Схема БД актуальна") {
		t.Errorf("повторный Open не должен применять миграции, журнал:\n%s", logs.String())
	}
}

func TestCheckReadyAfterClose(t *testing.T) {
	cfg := startPostgres(t)
	var logs bytes.Buffer

	db, err := Open(context.Background(), cfg, testLogger(&logs))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	db.Close()

	if status, _ := db.CheckReady(); status != "fail" {
		t.Errorf("status = %q, ожидается fail после Close", status)
	}
}

func TestOpenUnreachable(t *testing.T) {
	cfg := &config.Config{
		DBHost: "127.0.0.1", DBPort: 1, DBName: "x", DBUser: "x", DBPassword: "x", DBSSLMode: "disable",
	}
	var logs bytes.Buffer

	if _, err := Open(context.Background(), cfg, testLogger(&logs)); err == nil {
		t.Fatal("ожидалась ошибка для недоступного PostgreSQL")
	}
}

func TestMigrateLogger(t *testing.T) {
	tests := []struct {
		name        string
		level       slog.Level
		wantVerbose bool
		wantLogged  bool
	}{
		{name: "debug", level: slog.LevelDebug, wantVerbose: true, wantLogged: true},
		{name: "info", level: slog.LevelInfo, wantVerbose: false, wantLogged: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := migrateLogger{logger: slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: tt.level}))}

			if l.Verbose() != tt.wantVerbose {
				t.Errorf("Verbose = %v, ожидается %v", l.Verbose(), tt.wantVerbose)
			}
			l.Printf("Finished 1/u role_overrides (read 2ms, ran 5ms)\n")

			out := buf.String()
			if got := strings.Contains(out, "Finished 1/u role_overrides"); got != tt.wantLogged {
				t.Errorf("записано = %v, ожидается %v: %q", got, tt.wantLogged, out)
			}
			if tt.wantLogged && !strings.Contains(out, "component=migrate") {
				t.Errorf("нет component=migrate: %q", out)
			}
		})
	}
}
