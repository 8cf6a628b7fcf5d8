// role_overrides.go — локальные переопределения ролей администраторов (PostgreSQL).
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bigkaa/goartstore/attribute-admin/internal/api/middleware"
	"github.com/bigkaa/goartstore/attribute-admin/internal/domain/model"
	"github.com/bigkaa/goartstore/attribute-admin/internal/domain/rbac"
	"github.com/bigkaa/goartstore/attribute-admin/internal/repository"
)

// RoleOverrideService — управление локально выданными ролями.
// Без БД (store == nil) операции над переопределениями возвращают
// ErrRoleOverridesDisabled, CurrentAdmin работает.
type RoleOverrideService struct {
	store  repository.RoleOverrides
	logger *slog.Logger
}

// NewRoleOverrideService создаёт сервис. store может быть nil.
func NewRoleOverrideService(store repository.RoleOverrides, logger *slog.Logger) *RoleOverrideService {
	return &RoleOverrideService{
		store:  store,
		logger: logger.With(slog.String("component", "role_override_service")),
	}
}

// Enabled сообщает, настроено ли хранилище переопределений.
func (s *RoleOverrideService) Enabled() bool {
	return s.store != nil
}

// CurrentAdmin возвращает данные текущего пользователя из JWT claims.
func (s *RoleOverrideService) CurrentAdmin(claims *middleware.AuthClaims) *model.CurrentAdmin {
	return &model.CurrentAdmin{
		ID:            claims.Subject,
		Username:      claims.PreferredUsername,
		Email:         claims.Email,
		Groups:        claims.Groups,
		IdpRole:       claims.IdpRole,
		RoleOverride:  claims.RoleOverride,
		EffectiveRole: claims.EffectiveRole,
	}
}

// List возвращает страницу переопределений и их общее количество.
func (s *RoleOverrideService) List(ctx context.Context, limit, offset int) ([]model.RoleOverride, int, error) {
	if !s.Enabled() {
		return nil, 0, ErrRoleOverridesDisabled
	}

	items, total, err := s.store.Page(ctx, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("получение переопределений ролей: %w", err)
	}
	return items, total, nil
}

// Set выдаёт роль администратору subject.
// Роль только повышает права: итоговая роль = max(IdP, override).
func (s *RoleOverrideService) Set(ctx context.Context, subject, username, role, grantedBy string) (*model.RoleOverride, error) {
	if !s.Enabled() {
		return nil, ErrRoleOverridesDisabled
	}
	if !rbac.IsValidRole(role) {
		return nil, ErrInvalidRole
	}
	if subject == "" || username == "" {
		return nil, fmt.Errorf("%w: user_id и username обязательны", ErrValidation)
	}

	saved, err := s.store.Grant(ctx, model.RoleOverride{
		Subject:   subject,
		Username:  username,
		Role:      role,
		GrantedBy: grantedBy,
	})
	if err != nil {
		if errors.Is(err, repository.ErrInvalidRole) {
			return nil, ErrInvalidRole
		}
		return nil, fmt.Errorf("выдача роли: %w", err)
	}

	s.logger.Info("Роль выдана",
		slog.String("subject", subject),
		slog.String("role", role),
		slog.String("granted_by", grantedBy),
	)
	return &saved, nil
}

// Delete отзывает роль, выданную администратору subject.
func (s *RoleOverrideService) Delete(ctx context.Context, subject string) error {
	if !s.Enabled() {
		return ErrRoleOverridesDisabled
	}

	if err := s.store.Revoke(ctx, subject); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("отзыв роли: %w", err)
	}

	s.logger.Info("Роль отозвана", slog.String("subject", subject))
	return nil
}
