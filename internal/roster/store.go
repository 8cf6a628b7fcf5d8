// Пакет roster — хранилище списка пользователей одного представления:
// загрузка из каталога и применение commit из сессии редактирования.
//
// Roster заменяется целиком (fetch) или по одной записи (saveEdit) только после
// успешного ответа каталога; при ошибке состояние не меняется.
// Не потокобезопасен: доступ сериализует владелец (service.Workspace).
package roster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/bigkaa/goartstore/attribute-admin/internal/domain/attrcodec"
	"github.com/bigkaa/goartstore/attribute-admin/internal/domain/membership"
	"github.com/bigkaa/goartstore/attribute-admin/internal/domain/model"
	"github.com/bigkaa/goartstore/attribute-admin/internal/editsession"
)

// Префиксы сообщений баннера.
const (
	fetchErrorPrefix  = "Ошибка загрузки пользователей"
	commitErrorPrefix = "Ошибка обновления атрибутов"
)

var (
	// ErrIndexOutOfRange — индекс вне roster.
	ErrIndexOutOfRange = errors.New("индекс вне списка пользователей")
	// ErrTargetMismatch — строка по индексу не совпадает с целью сессии.
	ErrTargetMismatch = errors.New("строка списка не совпадает с редактируемой записью")
)

// Directory — внешний каталог пользователей.
type Directory interface {
	// FetchRoster возвращает всех пользователей в формате каталога.
	FetchRoster(ctx context.Context) ([]model.DirectoryRecord, error)
	// CommitAttributes отправляет отфильтрованную запись и возвращает подтверждение.
	CommitAttributes(ctx context.Context, record model.DirectoryRecord) (string, error)
}

// CommitError — ошибка удалённого commit.
type CommitError struct {
	Username string
	Err      error
}

func (e *CommitError) Error() string {
	return commitErrorPrefix + ": " + e.Err.Error()
}

func (e *CommitError) Unwrap() error {
	return e.Err
}

// Store — roster одного представления.
type Store struct {
	dir     Directory
	schema  membership.Schema
	banner  *model.StatusBanner
	timeout time.Duration
	logger  *slog.Logger

	records []model.RosterRecord
}

// NewStore создаёт пустой roster.
// timeout ограничивает каждый вызов каталога (0 — без ограничения).
func NewStore(
	dir Directory,
	schema membership.Schema,
	banner *model.StatusBanner,
	timeout time.Duration,
	logger *slog.Logger,
) *Store {
	return &Store{
		dir:     dir,
		schema:  schema,
		banner:  banner,
		timeout: timeout,
		logger:  logger.With(slog.String("component", "roster_store")),
		records: []model.RosterRecord{},
	}
}

// Fetch загружает roster из каталога и заменяет текущий целиком.
// При ошибке текущий roster остаётся без изменений.
func (s *Store) Fetch(ctx context.Context) ([]model.RosterRecord, error) {
	s.banner.Loading()

	callCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	raw, err := s.dir.FetchRoster(callCtx)
	if err != nil {
		return nil, s.fetchFailed(err)
	}

	decoded, err := attrcodec.DecodeAll(raw)
	if err != nil {
		return nil, s.fetchFailed(err)
	}

	s.records = decoded
	s.banner.Idle()

	s.logger.Debug("Roster загружен", slog.Int("count", len(decoded)))
	return s.Records(), nil
}

func (s *Store) fetchFailed(err error) error {
	s.banner.Error(fetchErrorPrefix + ": " + err.Error())
	s.logger.Warn("Ошибка загрузки roster", slog.String("error", err.Error()))
	return fmt.Errorf("загрузка roster: %w", err)
}

// SaveEdit отправляет рабочую копию session в каталог и при успехе заменяет
// запись roster[index] рабочей копией целиком и закрывает сессию.
// При ошибке roster не меняется, сессия остаётся открытой.
func (s *Store) SaveEdit(ctx context.Context, index int, session *editsession.Session) error {
	working, err := session.Commit()
	if err != nil {
		s.banner.Error(commitErrorPrefix + ": " + err.Error())
		return err
	}

	if index < 0 || index >= len(s.records) {
		s.banner.Error(commitErrorPrefix + ": " + ErrIndexOutOfRange.Error())
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	if session.IdentityOf(s.records[index]) != session.TargetIdentity() {
		s.banner.Error(commitErrorPrefix + ": " + ErrTargetMismatch.Error())
		return ErrTargetMismatch
	}

	delta := attrcodec.Encode(working, s.schema.IsDomainKey)

	s.banner.Loading()

	callCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	ack, err := s.dir.CommitAttributes(callCtx, delta)
	if err != nil {
		commitErr := &CommitError{Username: working.Username, Err: err}
		s.banner.Error(commitErr.Error())
		s.logger.Warn("Ошибка сохранения атрибутов",
			slog.String("username", working.Username),
			slog.String("error", err.Error()),
		)
		return commitErr
	}

	// Copy-on-write: ранее выданные снимки roster не меняются
	next := slices.Clone(s.records)
	next[index] = working
	s.records = next

	session.Close()
	s.banner.Successful(ack)

	s.logger.Info("Атрибуты пользователя сохранены",
		slog.String("username", working.Username),
		slog.Int("attributes", len(delta.Attributes)),
	)
	return nil
}

// Records возвращает копию roster.
func (s *Store) Records() []model.RosterRecord {
	out := make([]model.RosterRecord, len(s.records))
	for i, r := range s.records {
		out[i] = r.Clone()
	}
	return out
}

// Len возвращает количество записей.
func (s *Store) Len() int {
	return len(s.records)
}

// Record возвращает копию записи по индексу.
func (s *Store) Record(index int) (model.RosterRecord, bool) {
	if index < 0 || index >= len(s.records) {
		return model.RosterRecord{}, false
	}
	return s.records[index].Clone(), true
}

// IndexOf возвращает индекс записи по username или -1.
func (s *Store) IndexOf(username string) int {
	return slices.IndexFunc(s.records, func(r model.RosterRecord) bool {
		return r.Username == username
	})
}

// Status возвращает текущее значение баннера.
func (s *Store) Status() model.RequestStatus {
	return s.banner.Get()
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}
