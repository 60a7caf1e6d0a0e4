package route

import (
	"testing"

	"vendora.app/internal/backend"
	"vendora.app/internal/session"
)

func owner(mutate func(*backend.UserProfile)) *backend.UserProfile {
	u := &backend.UserProfile{
		ID:    "u-owner",
		Email: "owner@x.com",
		Role:  backend.RoleOwner,
	}
	if mutate != nil {
		mutate(u)
	}
	return u
}

func TestEvaluate(t *testing.T) {
	cases := []struct {
		name string
		sess session.Session
		want State
	}{
		{
			name: "uninitialized is loading",
			sess: session.Session{},
			want: StateLoading,
		},
		{
			name: "initialized without user is anonymous",
			sess: session.Session{Initialized: true},
			want: StateAnonymous,
		},
		{
			name: "owner with no onboarding progress is gated",
			sess: session.Session{Initialized: true, User: owner(nil)},
			want: StateUnverifiedOwner,
		},
		{
			name: "owner applying for a seller tier, unverified, is gated",
			sess: session.Session{Initialized: true, User: owner(func(u *backend.UserProfile) {
				u.ApplyingForTier = "standard"
				u.VerificationStatus = backend.VerificationPending
			})},
			want: StateUnverifiedOwner,
		},
		{
			name: "owner with a verified seller track is active",
			sess: session.Session{Initialized: true, User: owner(func(u *backend.UserProfile) {
				u.SellerTier = "standard"
				u.VerificationStatus = backend.VerificationVerified
			})},
			want: StateActive,
		},
		{
			name: "owner with a pending service track is gated",
			sess: session.Session{Initialized: true, User: owner(func(u *backend.UserProfile) {
				u.ServiceProviderStatus = backend.ServiceProviderPending
			})},
			want: StateUnverifiedOwner,
		},
		{
			name: "owner with an approved service track is active",
			sess: session.Session{Initialized: true, User: owner(func(u *backend.UserProfile) {
				u.ServiceProviderStatus = backend.ServiceProviderApproved
			})},
			want: StateActive,
		},
		{
			// Both tracks started is never gated, even unverified. The
			// asymmetry is product policy.
			name: "owner with both tracks started is active",
			sess: session.Session{Initialized: true, User: owner(func(u *backend.UserProfile) {
				u.ApplyingForTier = "standard"
				u.ServiceProviderStatus = backend.ServiceProviderPending
			})},
			want: StateActive,
		},
		{
			name: "owner verified on one track with the other absent is active",
			sess: session.Session{Initialized: true, User: owner(func(u *backend.UserProfile) {
				u.SellerTier = "premium"
				u.VerificationStatus = backend.VerificationVerified
				u.ServiceProviderStatus = ""
			})},
			want: StateActive,
		},
		{
			name: "staff is active",
			sess: session.Session{Initialized: true, User: &backend.UserProfile{ID: "u-2", Role: backend.RoleStaff}},
			want: StateActive,
		},
		{
			name: "customer is active",
			sess: session.Session{Initialized: true, User: &backend.UserProfile{ID: "u-3", Role: backend.RoleCustomer}},
			want: StateActive,
		},
		{
			name: "admins are never gated",
			sess: session.Session{Initialized: true, User: &backend.UserProfile{ID: "u-4", Role: backend.RoleSuperAdmin}},
			want: StateActive,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Evaluate(tc.sess); got != tc.want {
				t.Fatalf("Evaluate = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestDestination(t *testing.T) {
	cases := map[State]string{
		StateLoading:         "",
		StateAnonymous:       "/login",
		StateUnverifiedOwner: "/onboarding/verification",
		StateActive:          "/dashboard",
	}
	for state, want := range cases {
		if got := Destination(state); got != want {
			t.Fatalf("Destination(%s) = %q, want %q", state, got, want)
		}
	}
}

func TestAdminEntryAllowed(t *testing.T) {
	allowed := map[backend.Role]bool{
		backend.RoleSuperAdmin:     true,
		backend.RoleAssistantAdmin: true,
		backend.RoleOwner:          false,
		backend.RoleStaff:          false,
		backend.RoleCustomer:       false,
		backend.Role("intruder"):   false,
	}
	for role, want := range allowed {
		if got := AdminEntryAllowed(role); got != want {
			t.Fatalf("AdminEntryAllowed(%s) = %v, want %v", role, got, want)
		}
	}
}
