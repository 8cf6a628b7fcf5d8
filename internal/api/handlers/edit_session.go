// edit_session.go — обработчики /api/v1/edit-session.
// Сессия редактирования одной строки roster: открыть, переключить член
// категории, сохранить в каталог, отменить.
package handlers

import (
	"net/http"
	"strings"

	apierrors "github.com/bigkaa/goartstore/attribute-admin/internal/api/errors"
	"github.com/bigkaa/goartstore/attribute-admin/internal/domain/model"
	"github.com/bigkaa/goartstore/attribute-admin/internal/service"
)

type openEditRequest struct {
	Username string `json:"username"`
}

type toggleRequest struct {
	Attribute string `json:"attribute"`
	Member    string `json:"member"`
}

type commitRequest struct {
	SessionID string `json:"session_id"`
}

// editSessionResponse — состояние сессии редактирования.
type editSessionResponse struct {
	Open           bool                  `json:"open"`
	SessionID      string                `json:"session_id,omitempty"`
	TargetIdentity string                `json:"target_identity,omitempty"`
	Discarded      bool                  `json:"discarded"`
	Record         *rosterRecordResponse `json:"record,omitempty"`
	Status         model.RequestStatus   `json:"status"`
}

// GetEditSession — GET /api/v1/edit-session.
// Доступ: admin или readonly.
func (h *APIHandler) GetEditSession(w http.ResponseWriter, r *http.Request) {
	sub, ok := subject(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.mapSession(h.attributes.EditSession(sub)))
}

// OpenEditSession — PUT /api/v1/edit-session.
// Открытая сессия на другой записи отбрасывается (discarded = true).
// Доступ: admin.
func (h *APIHandler) OpenEditSession(w http.ResponseWriter, r *http.Request) {
	sub, ok := subject(w, r)
	if !ok {
		return
	}

	var req openEditRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Username) == "" {
		apierrors.ValidationError(w, "username обязателен")
		return
	}

	// Открыть можно только запись загруженного roster
	if _, err := h.attributes.Roster(r.Context(), sub); err != nil {
		h.writeFetchError(w, sub)
		return
	}

	view, err := h.attributes.OpenEdit(sub, req.Username)
	if err != nil {
		h.writeServiceError(w, "открытие сессии", err)
		return
	}
	writeJSON(w, http.StatusOK, h.mapSession(view))
}

// ToggleEditSession — POST /api/v1/edit-session/toggle.
// Доступ: admin.
func (h *APIHandler) ToggleEditSession(w http.ResponseWriter, r *http.Request) {
	sub, ok := subject(w, r)
	if !ok {
		return
	}

	var req toggleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Member == "" {
		apierrors.ValidationError(w, "member обязателен")
		return
	}

	view, err := h.attributes.Toggle(sub, req.Attribute, req.Member)
	if err != nil {
		h.writeServiceError(w, "переключение атрибута", err)
		return
	}
	writeJSON(w, http.StatusOK, h.mapSession(view))
}

// CommitEditSession — POST /api/v1/edit-session/commit.
// Тело необязательно; session_id, если задан, должен совпадать с открытой сессией.
// Доступ: admin.
func (h *APIHandler) CommitEditSession(w http.ResponseWriter, r *http.Request) {
	sub, ok := subject(w, r)
	if !ok {
		return
	}

	var req commitRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}

	view, err := h.attributes.CommitEdit(r.Context(), sub, req.SessionID)
	if err != nil {
		h.writeServiceError(w, "сохранение атрибутов", err)
		return
	}
	writeJSON(w, http.StatusOK, h.mapSession(view))
}

// CancelEditSession — DELETE /api/v1/edit-session.
// Доступ: admin.
func (h *APIHandler) CancelEditSession(w http.ResponseWriter, r *http.Request) {
	sub, ok := subject(w, r)
	if !ok {
		return
	}

	if err := h.attributes.CancelEdit(sub); err != nil {
		h.writeServiceError(w, "отмена сессии", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) mapSession(view *service.SessionView) editSessionResponse {
	resp := editSessionResponse{
		Open:      view.Open,
		Discarded: view.Discarded,
		Status:    view.Status,
	}
	if view.Open {
		rec := mapRosterRecord(h.attributes.Schema(), view.WorkingCopy)
		resp.SessionID = view.ID
		resp.TargetIdentity = view.TargetIdentity
		resp.Record = &rec
	}
	return resp
}
