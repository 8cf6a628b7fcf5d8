// roster.go — обработчики /api/v1/roster и /api/v1/status.
package handlers

import (
	"net/http"

	openapi_types "github.com/oapi-codegen/runtime/types"

	apierrors "github.com/bigkaa/goartstore/attribute-admin/internal/api/errors"
	"github.com/bigkaa/goartstore/attribute-admin/internal/domain/attrcodec"
	"github.com/bigkaa/goartstore/attribute-admin/internal/domain/membership"
	"github.com/bigkaa/goartstore/attribute-admin/internal/domain/model"
	"github.com/bigkaa/goartstore/attribute-admin/internal/service"
)

// emailAttribute — серверный атрибут с адресом почты.
const emailAttribute = "email"

// rosterRecordResponse — строка roster.
type rosterRecordResponse struct {
	Username            string                     `json:"username"`
	Identity            string                     `json:"identity"`
	Email               *openapi_types.Email       `json:"email,omitempty"`
	OrganizationalUnits []string                   `json:"organizational_units"`
	AccessLevels        []string                   `json:"access_levels"`
	Attributes          []model.DirectoryAttribute `json:"attributes"`
}

type rosterResponse struct {
	Items  []rosterRecordResponse `json:"items"`
	Total  int                    `json:"total"`
	Status model.RequestStatus    `json:"status"`
}

// GetRoster — GET /api/v1/roster.
// Первое обращение загружает roster из каталога.
// Доступ: admin или readonly.
func (h *APIHandler) GetRoster(w http.ResponseWriter, r *http.Request) {
	sub, ok := subject(w, r)
	if !ok {
		return
	}

	view, err := h.attributes.Roster(r.Context(), sub)
	if err != nil {
		h.writeFetchError(w, sub)
		return
	}
	writeJSON(w, http.StatusOK, h.mapRoster(view))
}

// RefreshRoster — POST /api/v1/roster/refresh.
// Доступ: admin или readonly.
func (h *APIHandler) RefreshRoster(w http.ResponseWriter, r *http.Request) {
	sub, ok := subject(w, r)
	if !ok {
		return
	}

	view, err := h.attributes.Refresh(r.Context(), sub)
	if err != nil {
		h.writeFetchError(w, sub)
		return
	}
	writeJSON(w, http.StatusOK, h.mapRoster(view))
}

// GetStatus — GET /api/v1/status.
// Доступ: admin или readonly.
func (h *APIHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	sub, ok := subject(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.attributes.Status(sub))
}

// writeFetchError отдаёт 502 с текстом баннера.
func (h *APIHandler) writeFetchError(w http.ResponseWriter, sub string) {
	apierrors.DirectoryUnavailable(w, h.attributes.Status(sub).Message)
}

func (h *APIHandler) mapRoster(view *service.RosterView) rosterResponse {
	schema := h.attributes.Schema()
	items := make([]rosterRecordResponse, len(view.Records))
	for i, rec := range view.Records {
		items[i] = mapRosterRecord(schema, rec)
	}
	return rosterResponse{Items: items, Total: len(items), Status: view.Status}
}

// mapRosterRecord конвертирует запись roster в ответ API.
func mapRosterRecord(schema membership.Schema, rec model.RosterRecord) rosterRecordResponse {
	identity := rec.Attribute(schema.IdentityKey)
	if identity == "" {
		identity = rec.Username
	}

	return rosterRecordResponse{
		Username:            rec.Username,
		Identity:            identity,
		Email:               emailPtr(rec.Attribute(emailAttribute)),
		OrganizationalUnits: membership.Parse(rec.Attribute(schema.OrganizationalUnit.Key)),
		AccessLevels:        membership.Parse(rec.Attribute(schema.AccessLevel.Key)),
		Attributes:          attrcodec.Encode(rec, nil).Attributes,
	}
}
