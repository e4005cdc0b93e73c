package model

import (
	"time"

	"github.com/google/uuid"
)

// App is the tenant principal: every memory and grant is owned, transitively,
// by the App that wrote it. Created once at onboarding; never mutated beyond
// secret rotation (ApiKeyHash replacement).
type App struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	APIKeyHash string    `json:"-"` // Argon2id encoded hash; never serialized.
	UserID     string    `json:"user_id"`
	Role       AppRole   `json:"role"`
	CreatedAt  time.Time `json:"created_at"`
}

// AppRole is the RBAC role carried in an App's issued JWT.
type AppRole string

const (
	AppRoleAdmin AppRole = "admin"
	AppRoleApp   AppRole = "app"
	AppRoleAudit AppRole = "audit" // read-only, for /explain and /replay.
)

// roleRank gives a total order for RoleAtLeast comparisons.
var roleRank = map[AppRole]int{
	AppRoleAudit: 0,
	AppRoleApp:   1,
	AppRoleAdmin: 2,
}

// RoleAtLeast reports whether have meets or exceeds want in privilege.
func RoleAtLeast(have, want AppRole) bool {
	return roleRank[have] >= roleRank[want]
}
