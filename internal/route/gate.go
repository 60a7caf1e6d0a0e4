package route

import (
	"vendora.app/internal/backend"
	"vendora.app/internal/session"
)

// State is the routing decision derived from the session.
type State int

const (
	// StateLoading: persisted-session resolution has not completed; no
	// redirect decision may be made yet.
	StateLoading State = iota
	// StateAnonymous: resolution finished with no user.
	StateAnonymous
	// StateUnverifiedOwner: an owner who must complete verification before
	// any other dashboard route.
	StateUnverifiedOwner
	// StateActive: authenticated with full access.
	StateActive
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateAnonymous:
		return "anonymous"
	case StateUnverifiedOwner:
		return "unverified_owner"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

// Evaluate maps a session snapshot to a routing state. Admin roles are never
// subject to the owner verification gate.
func Evaluate(sess session.Session) State {
	if !sess.Initialized {
		return StateLoading
	}
	if sess.User == nil {
		return StateAnonymous
	}
	if sess.User.Role == backend.RoleOwner && ownerNeedsVerification(sess.User) {
		return StateUnverifiedOwner
	}
	return StateActive
}

// ownerNeedsVerification implements the product policy for owner gating: an
// owner with no onboarding progress at all, or with exactly one track started
// and that track unverified, goes to the verification page. An owner with one
// track verified while the other is simply absent is active, as is an owner
// with both tracks started. The asymmetry is deliberate; do not generalize it
// to "any unverified flag blocks access".
func ownerNeedsVerification(u *backend.UserProfile) bool {
	hasSeller := u.HasProductSellerSetup()
	hasService := u.HasServiceProviderSetup()
	switch {
	case !hasSeller && !hasService:
		return true
	case hasSeller && !hasService:
		return !u.ProductSellerVerified()
	case hasService && !hasSeller:
		return !u.ServiceProviderVerified()
	default:
		return false
	}
}

// Destination returns the route a state forces the client to.
func Destination(s State) string {
	switch s {
	case StateAnonymous:
		return "/login"
	case StateUnverifiedOwner:
		return "/onboarding/verification"
	case StateActive:
		return "/dashboard"
	default:
		return ""
	}
}

// PublicSiteURL is where rejected admin-entry logins are sent.
const PublicSiteURL = "/"

// AdminEntryAllowed is the allow-list for the admin entry point. It runs
// after authentication succeeded; any other role gets its fresh session
// destroyed.
func AdminEntryAllowed(role backend.Role) bool {
	switch role {
	case backend.RoleSuperAdmin, backend.RoleAssistantAdmin:
		return true
	default:
		return false
	}
}
