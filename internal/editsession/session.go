// Пакет editsession — сессия редактирования одной строки roster.
//
// Два состояния: closed → open(target, workingCopy) → closed.
// Одновременно открыта не более одной сессии: Open на другой записи
// молча отбрасывает текущую рабочую копию (last-open-wins).
// Рабочая копия — значение, не ссылка на запись в roster.
//
// Не потокобезопасна: доступ сериализует владелец (service.Workspace).
package editsession

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/bigkaa/goartstore/attribute-admin/internal/domain/membership"
	"github.com/bigkaa/goartstore/attribute-admin/internal/domain/model"
)

// ErrNotOpen — операция требует открытой сессии.
var ErrNotOpen = errors.New("сессия редактирования не открыта")

// State — состояние сессии.
type State string

const (
	StateClosed State = "closed"
	StateOpen   State = "open"
)

// Session — сессия редактирования атрибутов одного пользователя.
type Session struct {
	schema membership.Schema
	banner *model.StatusBanner

	state   State
	id      string
	target  string
	working model.RosterRecord
}

// New создаёт закрытую сессию. banner — общий баннер статуса представления.
func New(schema membership.Schema, banner *model.StatusBanner) *Session {
	return &Session{
		schema: schema,
		banner: banner,
		state:  StateClosed,
	}
}

// Open открывает сессию на копии record.
// Открытая сессия на другой записи отбрасывается без предупреждения.
// Повторное открытие той же записи сохраняет текущую рабочую копию.
// Возвращает true, если была отброшена сессия на другой записи.
func (s *Session) Open(record model.RosterRecord) bool {
	target := s.IdentityOf(record)

	if s.state == StateOpen && s.target == target {
		return false
	}

	discarded := s.state == StateOpen
	s.state = StateOpen
	s.id = uuid.NewString()
	s.target = target
	s.working = record.Clone()
	return discarded
}

// IdentityOf возвращает значение ключа идентичности записи.
// Если атрибут отсутствует — используется username.
func (s *Session) IdentityOf(record model.RosterRecord) string {
	if id := record.Attribute(s.schema.IdentityKey); id != "" {
		return id
	}
	return record.Username
}

// ToggleOrganizationalUnit переключает членство в организационном подразделении.
func (s *Session) ToggleOrganizationalUnit(member string) error {
	return s.toggle(s.schema.OrganizationalUnit, member)
}

// ToggleAccessLevel переключает членство в уровне доступа.
func (s *Session) ToggleAccessLevel(member string) error {
	return s.toggle(s.schema.AccessLevel, member)
}

// toggle применяет membership.Toggle к рабочей копии.
// При нарушении инварианта рабочая копия не меняется, ошибка уходит в баннер,
// сессия остаётся открытой.
func (s *Session) toggle(category membership.Category, member string) error {
	if s.state != StateOpen {
		return ErrNotOpen
	}

	updated, err := membership.Toggle(s.working.Attribute(category.Key), member, category)
	if err != nil {
		var violation *membership.InvariantViolation
		if errors.As(err, &violation) {
			s.banner.Error(violation.Error())
		}
		return err
	}

	s.working = s.working.WithAttribute(category.Key, updated)
	return nil
}

// Cancel закрывает сессию и отбрасывает рабочую копию. Сетевых вызовов нет.
func (s *Session) Cancel() error {
	if s.state != StateOpen {
		return ErrNotOpen
	}
	s.reset()
	return nil
}

// Commit возвращает копию рабочей копии для отправки в каталог.
// Сессия остаётся открытой: закрывает её RosterStore после успешного commit.
func (s *Session) Commit() (model.RosterRecord, error) {
	if s.state != StateOpen {
		return model.RosterRecord{}, fmt.Errorf("commit: %w", ErrNotOpen)
	}
	return s.working.Clone(), nil
}

// Close закрывает сессию после успешного commit.
func (s *Session) Close() {
	s.reset()
}

func (s *Session) reset() {
	s.state = StateClosed
	s.id = ""
	s.target = ""
	s.working = model.RosterRecord{}
}

// State возвращает текущее состояние.
func (s *Session) State() State { return s.state }

// IsOpen сообщает, открыта ли сессия.
func (s *Session) IsOpen() bool { return s.state == StateOpen }

// ID возвращает идентификатор открытой сессии (пустой для закрытой).
func (s *Session) ID() string { return s.id }

// TargetIdentity возвращает идентичность редактируемой записи.
func (s *Session) TargetIdentity() string { return s.target }

// WorkingCopy возвращает копию рабочей копии.
func (s *Session) WorkingCopy() model.RosterRecord { return s.working.Clone() }

// Schema возвращает схему атрибутов сессии.
func (s *Session) Schema() membership.Schema { return s.schema }
