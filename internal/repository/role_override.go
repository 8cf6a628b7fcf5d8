package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bigkaa/goartstore/attribute-admin/internal/domain/model"
)

// RoleOverrides — переопределения ролей администраторов по subject JWT.
type RoleOverrides interface {
	// Role возвращает выданную роль или nil, если переопределения нет.
	// Вызывается JWT middleware на каждый запрос.
	Role(ctx context.Context, subject string) (*string, error)
	// Grant выдаёт или заменяет роль; возвращает сохранённую запись.
	Grant(ctx context.Context, ro model.RoleOverride) (model.RoleOverride, error)
	// Revoke удаляет переопределение; ErrNotFound, если его нет.
	Revoke(ctx context.Context, subject string) error
	// Page возвращает страницу переопределений (новые первыми) и их общее число.
	Page(ctx context.Context, limit, offset int) ([]model.RoleOverride, int, error)
}

type roleOverrides struct {
	db DBTX
}

// NewRoleOverrides создаёт хранилище поверх пула или транзакции.
func NewRoleOverrides(db DBTX) RoleOverrides {
	return &roleOverrides{db: db}
}

func (r *roleOverrides) Role(ctx context.Context, subject string) (*string, error) {
	var role string
	err := r.db.QueryRow(ctx, `SELECT role FROM role_overrides WHERE subject = $1`, subject).Scan(&role)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("чтение роли %q: %w", subject, err)
	}
	return &role, nil
}

func (r *roleOverrides) Grant(ctx context.Context, ro model.RoleOverride) (model.RoleOverride, error) {
	rows, err := r.db.Query(ctx, `
		INSERT INTO role_overrides (subject, username, role, granted_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (subject) DO UPDATE SET
			username   = EXCLUDED.username,
			role       = EXCLUDED.role,
			granted_by = EXCLUDED.granted_by,
			updated_at = NOW()
		RETURNING subject, username, role, granted_by, granted_at, updated_at`,
		ro.Subject, ro.Username, ro.Role, ro.GrantedBy,
	)
	if err != nil {
		return model.RoleOverride{}, grantError(ro, err)
	}

	saved, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[model.RoleOverride])
	if err != nil {
		return model.RoleOverride{}, grantError(ro, err)
	}
	return saved, nil
}

// grantError переводит нарушение CHECK по роли в ErrInvalidRole.
func grantError(ro model.RoleOverride, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.CheckViolation {
		return fmt.Errorf("%w: %q", ErrInvalidRole, ro.Role)
	}
	return fmt.Errorf("выдача роли %q: %w", ro.Subject, err)
}

func (r *roleOverrides) Revoke(ctx context.Context, subject string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM role_overrides WHERE subject = $1`, subject)
	if err != nil {
		return fmt.Errorf("отзыв роли %q: %w", subject, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// pageRow — строка страницы с общим числом записей из оконной функции.
type pageRow struct {
	model.RoleOverride
	Total int `db:"total"`
}

func (r *roleOverrides) Page(ctx context.Context, limit, offset int) ([]model.RoleOverride, int, error) {
	rows, err := r.db.Query(ctx, `
		SELECT subject, username, role, granted_by, granted_at, updated_at,
		       COUNT(*) OVER () AS total
		FROM role_overrides
		ORDER BY granted_at DESC, subject
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("список переопределений: %w", err)
	}

	page, err := pgx.CollectRows(rows, pgx.RowToStructByName[pageRow])
	if err != nil {
		return nil, 0, fmt.Errorf("список переопределений: %w", err)
	}

	items := make([]model.RoleOverride, len(page))
	for i, row := range page {
		items[i] = row.RoleOverride
	}
	if len(page) > 0 {
		return items, page[0].Total, nil
	}

	// Страница за концом списка: окно пустое, общее число считаем отдельно
	var total int
	if offset > 0 {
		if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM role_overrides`).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("подсчёт переопределений: %w", err)
		}
	}
	return items, total, nil
}
