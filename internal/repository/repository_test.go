package repository

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/bigkaa/goartstore/attribute-admin/internal/config"
	"github.com/bigkaa/goartstore/attribute-admin/internal/database"
	"github.com/bigkaa/goartstore/attribute-admin/internal/domain/model"
)

// newStore поднимает PostgreSQL со схемой role_overrides. Требует TEST_INTEGRATION.
func newStore(t *testing.T) RoleOverrides {
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
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port контейнера: %v", err)
	}

	cfg := &config.Config{
		DBHost: host, DBPort: port.Int(), DBName: "attribute_admin",
		DBUser: "aa", DBPassword: "aa-test", DBSSLMode: "disable",
	}
	db, err := database.Open(ctx, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("database.Open: %v", err)
	}
	t.Cleanup(db.Close)

	return NewRoleOverrides(db.Pool)
}

func TestRoleOverrides_GrantAndRole(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	role, err := store.Role(ctx, "sub-alice")
	if err != nil || role != nil {
		t.Fatalf("Role без записи = %v, %v; ожидается nil, nil", role, err)
	}

	first, err := store.Grant(ctx, model.RoleOverride{
		Subject: "sub-alice", Username: "alice", Role: "readonly", GrantedBy: "root",
	})
	if err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if first.GrantedAt.IsZero() || first.GrantedBy != "root" {
		t.Errorf("сохранённая запись = %+v", first)
	}

	// Повторная выдача заменяет роль, granted_at сохраняется
	time.Sleep(10 * time.Millisecond)
	second, err := store.Grant(ctx, model.RoleOverride{
		Subject: "sub-alice", Username: "alice.v2", Role: "admin", GrantedBy: "ops",
	})
	if err != nil {
		t.Fatalf("повторный Grant: %v", err)
	}
	if !second.GrantedAt.Equal(first.GrantedAt) {
		t.Errorf("granted_at изменился: %v → %v", first.GrantedAt, second.GrantedAt)
	}
	if !second.UpdatedAt.After(first.UpdatedAt) {
		t.Errorf("updated_at не обновлён: %v → %v", first.UpdatedAt, second.UpdatedAt)
	}
	if second.Username != "alice.v2" || second.GrantedBy != "ops" {
		t.Errorf("запись не заменена: %+v", second)
	}

	role, err = store.Role(ctx, "sub-alice")
	if err != nil || role == nil || *role != "admin" {
		t.Errorf("Role = %v, %v; ожидается admin", role, err)
	}
}

func TestRoleOverrides_GrantRejectsUnknownRole(t *testing.T) {
	store := newStore(t)

	_, err := store.Grant(context.Background(), model.RoleOverride{
		Subject: "sub-bob", Username: "bob", Role: "owner",
	})
	if !errors.Is(err, ErrInvalidRole) {
		t.Errorf("ожидается ErrInvalidRole, получено: %v", err)
	}
}

func TestRoleOverrides_Revoke(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	if err := store.Revoke(ctx, "sub-missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Revoke без записи: ожидается ErrNotFound, получено: %v", err)
	}

	if _, err := store.Grant(ctx, model.RoleOverride{Subject: "sub-1", Username: "u1", Role: "admin"}); err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if err := store.Revoke(ctx, "sub-1"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if role, err := store.Role(ctx, "sub-1"); err != nil || role != nil {
		t.Errorf("Role после Revoke = %v, %v", role, err)
	}
}

func TestRoleOverrides_Page(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	for _, sub := range []string{"sub-1", "sub-2", "sub-3"} {
		if _, err := store.Grant(ctx, model.RoleOverride{Subject: sub, Username: sub, Role: "readonly"}); err != nil {
			t.Fatalf("Grant %s: %v", sub, err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	tests := []struct {
		name      string
		limit     int
		offset    int
		wantFirst string
		wantLen   int
	}{
		{name: "первая страница", limit: 2, offset: 0, wantFirst: "sub-3", wantLen: 2},
		{name: "последняя страница", limit: 2, offset: 2, wantFirst: "sub-1", wantLen: 1},
		{name: "за концом списка", limit: 2, offset: 10, wantLen: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, total, err := store.Page(ctx, tt.limit, tt.offset)
			if err != nil {
				t.Fatalf("Page: %v", err)
			}
			if total != 3 {
				t.Errorf("total = %d, ожидается 3", total)
			}
			if len(items) != tt.wantLen {
				t.Fatalf("записей = %d, ожидается %d", len(items), tt.wantLen)
			}
			if tt.wantLen > 0 && items[0].Subject != tt.wantFirst {
				t.Errorf("первая запись = %q, ожидается %q", items[0].Subject, tt.wantFirst)
			}
		})
	}
}
