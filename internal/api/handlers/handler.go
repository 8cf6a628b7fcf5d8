// handler.go — основной обработчик API Attribute Admin.
// Объединяет доменные обработчики и делегирует запросы в сервисный слой.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	apierrors "github.com/bigkaa/goartstore/attribute-admin/internal/api/errors"
	"github.com/bigkaa/goartstore/attribute-admin/internal/api/middleware"
	"github.com/bigkaa/goartstore/attribute-admin/internal/domain/membership"
	"github.com/bigkaa/goartstore/attribute-admin/internal/roster"
	"github.com/bigkaa/goartstore/attribute-admin/internal/service"
)

// APIHandler — основной обработчик API Attribute Admin.
type APIHandler struct {
	health     *HealthHandler
	attributes *service.AttributeService
	roles      *service.RoleOverrideService
	logger     *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	attributes *service.AttributeService,
	roles *service.RoleOverrideService,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:     health,
		attributes: attributes,
		roles:      roles,
		logger:     logger.With(slog.String("component", "api_handler")),
	}
}

// HealthLive — liveness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики (делегируется в HealthHandler).
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON разбирает тело запроса; при ошибке пишет 400 и возвращает false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return false
	}
	return true
}

// decodeOptionalJSON декодирует необязательное тело запроса.
// Пустое тело (в том числе chunked без данных) оставляет dst без изменений.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
	return false
}

// subject возвращает sub администратора; при отсутствии claims пишет 401.
func subject(w http.ResponseWriter, r *http.Request) (string, bool) {
	sub := middleware.SubjectFromContext(r.Context())
	if sub == "" {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return "", false
	}
	return sub, true
}

// queryInt читает целочисленный query-параметр; отсутствующий — nil.
func queryInt(r *http.Request, name string) (*int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// paginationDefaults нормализует параметры пагинации.
// Возвращает корректные limit и offset.
func paginationDefaults(limit *int, offset *int) (int, int) {
	l := 100
	o := 0

	if limit != nil {
		l = *limit
		if l < 1 {
			l = 1
		}
		if l > 1000 {
			l = 1000
		}
	}

	if offset != nil {
		o = *offset
		if o < 0 {
			o = 0
		}
	}

	return l, o
}

// writeServiceError переводит ошибку сервисного слоя в ответ API.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, op string, err error) {
	var violation *membership.InvariantViolation
	var commitErr *roster.CommitError

	switch {
	case errors.As(err, &violation):
		apierrors.InvariantViolation(w, violation.Error())
	case errors.Is(err, service.ErrNoEditSession):
		apierrors.NoEditSession(w, "Сессия редактирования не открыта")
	case errors.Is(err, service.ErrSessionConflict):
		apierrors.SessionConflict(w, "Сессия редактирования сменилась, откройте запись заново")
	case errors.Is(err, roster.ErrTargetMismatch), errors.Is(err, roster.ErrIndexOutOfRange):
		apierrors.Conflict(w, "Запись roster изменилась: "+err.Error())
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, err.Error())
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrInvalidRole):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrRoleOverridesDisabled):
		apierrors.NotConfigured(w, err.Error())
	case errors.As(err, &commitErr):
		h.logger.Warn("Каталог отклонил сохранение", slog.String("op", op), slog.String("error", err.Error()))
		apierrors.DirectoryUnavailable(w, commitErr.Error())
	default:
		h.logger.Error("Ошибка обработки запроса", slog.String("op", op), slog.String("error", err.Error()))
		apierrors.InternalError(w, "Внутренняя ошибка: "+op)
	}
}
