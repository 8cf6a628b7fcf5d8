package model

import "time"

// RoleOverride — роль, выданная администратору локально поверх групп IdP.
// Ключ — subject JWT; итоговая роль = max(роль IdP, Role).
type RoleOverride struct {
	Subject   string    `db:"subject"`
	Username  string    `db:"username"`
	Role      string    `db:"role"`
	GrantedBy string    `db:"granted_by"`
	GrantedAt time.Time `db:"granted_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// CurrentAdmin — текущий пользователь API, вычисленный из JWT claims.
type CurrentAdmin struct {
	ID            string
	Username      string
	Email         string
	Groups        []string
	IdpRole       string
	RoleOverride  *string
	EffectiveRole string
}
