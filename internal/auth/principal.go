package auth

import (
	"drims-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

// Principal is the authenticated actor every governance-sensitive operation
// receives. The core trusts it; guards fail with ForbiddenError when the
// role/depot does not satisfy an operation's requirements.
type Principal struct {
	UserID  uint
	Role    models.UserRole
	DepotID *uint // home depot; nil for unassigned admins
}

// HasRole reports whether the principal holds one of the roles. ADMIN passes
// every role guard.
func (p Principal) HasRole(roles ...models.UserRole) bool {
	if p.Role == models.RoleAdmin {
		return true
	}
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

// PrincipalFromCtx rebuilds the principal from the JWT claims stored by the
// middleware.
func PrincipalFromCtx(c *fiber.Ctx) (Principal, error) {
	role, ok := c.Locals(CtxUserRoleKey).(models.UserRole)
	if !ok {
		return Principal{}, fiber.NewError(fiber.StatusForbidden, "role claim missing")
	}
	userID, ok := c.Locals(CtxUserIDKey).(uint)
	if !ok {
		return Principal{}, fiber.NewError(fiber.StatusForbidden, "user claim missing")
	}
	p := Principal{UserID: userID, Role: role}
	if depotPtr, ok := c.Locals(CtxDepotIDKey).(*uint); ok {
		p.DepotID = depotPtr
	}
	return p, nil
}
