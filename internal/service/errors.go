// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import (
	"errors"

	"github.com/bigkaa/goartstore/attribute-admin/internal/editsession"
)

var (
	// ErrNotFound — ресурс не найден.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrInvalidRole — некорректная роль.
	ErrInvalidRole = errors.New("некорректная роль: допустимые значения — admin, readonly")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrNoEditSession — операция требует открытой сессии редактирования.
	ErrNoEditSession = editsession.ErrNotOpen
	// ErrSessionConflict — session_id запроса не совпадает с открытой сессией.
	ErrSessionConflict = errors.New("сессия редактирования сменилась")
	// ErrRoleOverridesDisabled — БД не настроена, переопределения ролей недоступны.
	ErrRoleOverridesDisabled = errors.New("переопределения ролей отключены: PostgreSQL не настроен")
)
