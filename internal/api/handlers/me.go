// me.go — GET /api/v1/me и GET /api/v1/schema.
package handlers

import (
	"net/http"

	openapi_types "github.com/oapi-codegen/runtime/types"

	apierrors "github.com/bigkaa/goartstore/attribute-admin/internal/api/errors"
	"github.com/bigkaa/goartstore/attribute-admin/internal/api/middleware"
	"github.com/bigkaa/goartstore/attribute-admin/internal/domain/membership"
	"github.com/bigkaa/goartstore/attribute-admin/internal/domain/rbac"
	"github.com/bigkaa/goartstore/attribute-admin/internal/service"
)

// currentAdminResponse — текущий администратор.
type currentAdminResponse struct {
	ID            string               `json:"id"`
	Username      string               `json:"username"`
	Email         *openapi_types.Email `json:"email,omitempty"`
	Groups        []string             `json:"groups"`
	IdpRole       string               `json:"idp_role"`
	RoleOverride  *string              `json:"role_override,omitempty"`
	EffectiveRole string               `json:"effective_role"`
	CanEdit       bool                 `json:"can_edit"`
}

// categoryResponse — категория атрибутов; Attribute — имя для toggle.
type categoryResponse struct {
	Attribute string   `json:"attribute"`
	Key       string   `json:"key"`
	Label     string   `json:"label"`
	Members   []string `json:"members"`
}

type schemaResponse struct {
	IdentityKey string             `json:"identity_key"`
	Categories  []categoryResponse `json:"categories"`
}

// categoryAttributes — имена атрибутов API в порядке membership.Schema.Categories.
var categoryAttributes = []string{
	service.AttributeOrganizationalUnit,
	service.AttributeAccessLevel,
}

// GetMe — GET /api/v1/me.
// Доступ: любой аутентифицированный пользователь.
func (h *APIHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	admin := h.roles.CurrentAdmin(claims)
	resp := currentAdminResponse{
		ID:            admin.ID,
		Username:      admin.Username,
		Email:         emailPtr(admin.Email),
		Groups:        admin.Groups,
		IdpRole:       admin.IdpRole,
		RoleOverride:  admin.RoleOverride,
		EffectiveRole: admin.EffectiveRole,
		CanEdit:       rbac.CanEditAttributes(admin.EffectiveRole),
	}
	if resp.Groups == nil {
		resp.Groups = []string{}
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetSchema — GET /api/v1/schema.
// Доступ: admin или readonly.
func (h *APIHandler) GetSchema(w http.ResponseWriter, r *http.Request) {
	schema := h.attributes.Schema()
	resp := schemaResponse{IdentityKey: schema.IdentityKey}
	for i, c := range schema.Categories() {
		resp.Categories = append(resp.Categories, mapCategory(categoryAttributes[i], c))
	}
	writeJSON(w, http.StatusOK, resp)
}

func mapCategory(attribute string, c membership.Category) categoryResponse {
	return categoryResponse{Attribute: attribute, Key: c.Key, Label: c.Label, Members: c.Members}
}

// emailPtr возвращает nil для пустого email.
func emailPtr(email string) *openapi_types.Email {
	if email == "" {
		return nil
	}
	e := openapi_types.Email(email)
	return &e
}
