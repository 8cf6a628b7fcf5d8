// Пакет rbac — роли администраторов атрибутов.
// Роль IdP вычисляется из групп (или realm-ролей) токена; локально выданная
// роль может её только повысить: итоговая роль = max(IdP, override).
package rbac

import "slices"

// Роли в порядке возрастания привилегий.
const (
	RoleReadonly = "readonly"
	RoleAdmin    = "admin"
)

// rank — позиция роли по привилегиям; 0 — не роль.
func rank(role string) int {
	switch role {
	case RoleReadonly:
		return 1
	case RoleAdmin:
		return 2
	default:
		return 0
	}
}

// higher возвращает более привилегированную из двух ролей; при равенстве — a.
func higher(a, b string) string {
	if rank(b) > rank(a) {
		return b
	}
	return a
}

// GroupMapping — группы IdP, дающие роли (AA_ROLE_ADMIN_GROUPS, AA_ROLE_READONLY_GROUPS).
type GroupMapping struct {
	Admin    []string
	Readonly []string
}

// Resolve вычисляет роль IdP. Группы имеют приоритет; если ни одна группа не
// совпала, используются realm-роли токена с именами admin и readonly.
// Пустая строка — роли нет.
func (m GroupMapping) Resolve(groups, realmRoles []string) string {
	role := ""
	for _, g := range groups {
		switch {
		case slices.Contains(m.Admin, g):
			role = higher(role, RoleAdmin)
		case slices.Contains(m.Readonly, g):
			role = higher(role, RoleReadonly)
		}
	}
	if role != "" {
		return role
	}

	for _, r := range realmRoles {
		role = higher(role, r)
	}
	return role
}

// EffectiveRole — max(idpRole, override); nil override не меняет роль IdP.
func EffectiveRole(idpRole string, override *string) string {
	if override == nil {
		return idpRole
	}
	return higher(idpRole, *override)
}

// Allows сообщает, что роль role не ниже required. Пустая или неизвестная роль не допускает ничего.
func Allows(role, required string) bool {
	r := rank(role)
	return r > 0 && r >= rank(required)
}

// CanEditAttributes сообщает, может ли роль изменять атрибуты пользователей.
func CanEditAttributes(role string) bool {
	return Allows(role, RoleAdmin)
}

// IsValidRole проверяет, что строка — известная роль.
func IsValidRole(role string) bool {
	return rank(role) > 0
}
