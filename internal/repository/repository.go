// Пакет repository — хранение переопределений ролей в PostgreSQL.
// Запросы — SQL через pgx, строки собираются pgx.CollectRows по тегам db.
package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound — переопределения для subject нет.
	ErrNotFound = errors.New("переопределение роли не найдено")
	// ErrInvalidRole — роль отклонена ограничением таблицы.
	ErrInvalidRole = errors.New("недопустимая роль")
)

// DBTX — общее подмножество *pgxpool.Pool и pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
