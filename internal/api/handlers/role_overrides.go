// role_overrides.go — обработчики /api/v1/role-overrides.
// Локальные дополнения ролей администраторов (только при настроенной БД).
package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/goartstore/attribute-admin/internal/api/errors"
	"github.com/bigkaa/goartstore/attribute-admin/internal/api/middleware"
	"github.com/bigkaa/goartstore/attribute-admin/internal/domain/model"
)

type roleOverrideRequest struct {
	Role     string `json:"role"`
	Username string `json:"username"`
}

type roleOverrideResponse struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	GrantedBy string    `json:"granted_by"`
	GrantedAt time.Time `json:"granted_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type roleOverrideListResponse struct {
	Items   []roleOverrideResponse `json:"items"`
	Total   int                    `json:"total"`
	Limit   int                    `json:"limit"`
	Offset  int                    `json:"offset"`
	HasMore bool                   `json:"has_more"`
}

// ListRoleOverrides — GET /api/v1/role-overrides.
// Доступ: admin или readonly.
func (h *APIHandler) ListRoleOverrides(w http.ResponseWriter, r *http.Request) {
	limitParam, err := queryInt(r, "limit")
	if err != nil {
		apierrors.ValidationError(w, "Некорректный limit")
		return
	}
	offsetParam, err := queryInt(r, "offset")
	if err != nil {
		apierrors.ValidationError(w, "Некорректный offset")
		return
	}
	limit, offset := paginationDefaults(limitParam, offsetParam)

	items, total, err := h.roles.List(r.Context(), limit, offset)
	if err != nil {
		h.writeServiceError(w, "получение role overrides", err)
		return
	}

	resp := roleOverrideListResponse{
		Items:   make([]roleOverrideResponse, len(items)),
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+limit < total,
	}
	for i := range items {
		resp.Items[i] = mapRoleOverride(&items[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

// SetRoleOverride — PUT /api/v1/role-overrides/{user_id}.
// Доступ: admin.
func (h *APIHandler) SetRoleOverride(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")

	var req roleOverrideRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	grantedBy := ""
	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil {
		grantedBy = claims.PreferredUsername
	}

	ro, err := h.roles.Set(r.Context(), userID, req.Username, req.Role, grantedBy)
	if err != nil {
		h.writeServiceError(w, "установка role override", err)
		return
	}
	writeJSON(w, http.StatusOK, mapRoleOverride(ro))
}

// DeleteRoleOverride — DELETE /api/v1/role-overrides/{user_id}.
// Доступ: admin.
func (h *APIHandler) DeleteRoleOverride(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")

	if err := h.roles.Delete(r.Context(), userID); err != nil {
		h.writeServiceError(w, "удаление role override", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func mapRoleOverride(ro *model.RoleOverride) roleOverrideResponse {
	return roleOverrideResponse{
		UserID:    ro.Subject,
		Username:  ro.Username,
		Role:      ro.Role,
		GrantedBy: ro.GrantedBy,
		GrantedAt: ro.GrantedAt,
		UpdatedAt: ro.UpdatedAt,
	}
}
