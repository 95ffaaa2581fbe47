package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/bloodconnect/bloodconnect/internal/platform/apperr"
)

// Role is a staff role within an organization.
type Role string

const (
	RoleAdmin            Role = "Admin"
	RoleInventoryManager Role = "Inventory Manager"
	RoleRequestHandler   Role = "Request Handler"
	RoleViewer           Role = "Viewer"
)

var Roles = []Role{RoleAdmin, RoleInventoryManager, RoleRequestHandler, RoleViewer}

func (r Role) Valid() bool {
	for _, v := range Roles {
		if r == v {
			return true
		}
	}
	return false
}

// Capability names one mutating operation an actor may be allowed to perform.
type Capability string

const (
	CapRequestSubmit   Capability = "request:submit"
	CapRequestDecide   Capability = "request:decide"
	CapRequestCancel   Capability = "request:cancel"
	CapRequestEscalate Capability = "request:escalate"
	CapInventoryWrite  Capability = "inventory:write"
	CapDonorWrite      Capability = "donor:write"
	CapStaffWrite      Capability = "staff:write"
)

// Actor is a resolved staff member acting on behalf of an organization.
type Actor struct {
	ID    uuid.UUID
	OrgID uuid.UUID
	Role  Role
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// Authorizer decides whether an actor holds a capability.
type Authorizer interface {
	Authorize(ctx context.Context, actor Actor, capability Capability) error
}

// ActorResolver looks an actor up by identifier. Unknown actors resolve to
// an *apperr.NotFoundError.
type ActorResolver interface {
	ResolveActor(ctx context.Context, id uuid.UUID) (Actor, error)
}

// DefaultGrants is the capability table used by NewRoleAuthorizer. Admin is
// granted everything and is not listed.
var DefaultGrants = map[Role][]Capability{
	RoleInventoryManager: {CapInventoryWrite, CapDonorWrite, CapRequestDecide},
	RoleRequestHandler:   {CapRequestSubmit, CapRequestDecide, CapRequestCancel, CapRequestEscalate},
	RoleViewer:           {},
}

// RoleAuthorizer grants capabilities by role.
type RoleAuthorizer struct {
	grants map[Role]map[Capability]bool
}

// NewRoleAuthorizer builds an authorizer from a grant table; nil selects
// DefaultGrants.
func NewRoleAuthorizer(grants map[Role][]Capability) *RoleAuthorizer {
	if grants == nil {
		grants = DefaultGrants
	}
	a := &RoleAuthorizer{grants: make(map[Role]map[Capability]bool, len(grants))}
	for role, caps := range grants {
		set := make(map[Capability]bool, len(caps))
		for _, c := range caps {
			set[c] = true
		}
		a.grants[role] = set
	}
	return a
}

func (a *RoleAuthorizer) Authorize(_ context.Context, actor Actor, capability Capability) error {
	if actor.IsAdmin() || a.grants[actor.Role][capability] {
		return nil
	}
	return &apperr.ForbiddenError{
		Actor:      actor.ID.String(),
		Capability: string(capability),
		Reason:     "role " + string(actor.Role) + " is not granted this capability",
	}
}
