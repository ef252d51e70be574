package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/user-access-service/internal/domain"
	apperrors "github.com/spec-kit/user-access-service/pkg/util/errorutil"
)

// Decision is the outcome of a policy evaluation.
type Decision int

const (
	Allow Decision = iota
	DenyUnauthenticated
	DenyForbidden
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case DenyUnauthenticated:
		return "deny_unauthenticated"
	default:
		return "deny_forbidden"
	}
}

// Policy is the access rule attached to one protected route. The zero value
// denies everyone.
type Policy struct {
	requires map[domain.UserRole]struct{}
	selfOnly map[domain.UserRole]struct{}
}

// NewPolicy builds an immutable policy. requires is the general role
// whitelist; selfOnly roles pass only on resources they own.
func NewPolicy(requires, selfOnly []domain.UserRole) Policy {
	return Policy{requires: roleSet(requires), selfOnly: roleSet(selfOnly)}
}

// Evaluate decides access for principal on a resource owned by ownerID.
// Ownership is checked first, then the whitelist.
func (p Policy) Evaluate(principal *domain.Principal, ownerID string) Decision {
	if principal == nil || principal.SubjectID == "" {
		return DenyUnauthenticated
	}
	if _, ok := p.selfOnly[principal.Role]; ok && ownerID != "" && principal.SubjectID == ownerID {
		return Allow
	}
	if _, ok := p.requires[principal.Role]; ok {
		return Allow
	}
	return DenyForbidden
}

// RequirePolicy evaluates policy against the principal set by the
// Authenticator. ownerParam names the route parameter holding the owning
// subject id; pass "" for routes without an owner.
func RequirePolicy(policy Policy, ownerParam string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, _ := PrincipalFromContext(c)
		var ownerID string
		if ownerParam != "" {
			ownerID = c.Params(ownerParam)
		}

		switch policy.Evaluate(principal, ownerID) {
		case Allow:
			return c.Next()
		case DenyUnauthenticated:
			return apperrors.NewUnauthorized("")
		default:
			return apperrors.NewForbidden()
		}
	}
}

func roleSet(roles []domain.UserRole) map[domain.UserRole]struct{} {
	set := make(map[domain.UserRole]struct{}, len(roles))
	for _, role := range roles {
		set[role] = struct{}{}
	}
	return set
}
