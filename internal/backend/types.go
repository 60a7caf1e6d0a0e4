package backend

import "time"

// Role identifies the account type returned by the commerce backend.
type Role string

const (
	RoleOwner          Role = "owner"
	RoleStaff          Role = "staff"
	RoleCustomer       Role = "customer"
	RoleSuperAdmin     Role = "super_admin"
	RoleAssistantAdmin Role = "assistant_admin"
)

// Verification states tracked by the backend for the product-seller track.
const (
	VerificationVerified = "verified"
	VerificationPending  = "pending"
)

// States tracked for the service-provider track. An empty status means the
// owner never started that track.
const (
	ServiceProviderApproved = "approved"
	ServiceProviderPending  = "pending"
)

// UserProfile is the backend's view of an account. Role is immutable for the
// lifetime of a session; verification fields may only change by re-fetching
// the profile, never by client-side mutation.
type UserProfile struct {
	ID                    string `json:"id"`
	Name                  string `json:"name"`
	Email                 string `json:"email"`
	Role                  Role   `json:"role"`
	BusinessName          string `json:"business_name,omitempty"`
	SellerTier            string `json:"seller_tier,omitempty"`
	ApplyingForTier       string `json:"applying_for_tier,omitempty"`
	VerificationStatus    string `json:"verification_status,omitempty"`
	ServiceProviderStatus string `json:"service_provider_status,omitempty"`
}

// HasProductSellerSetup reports whether the owner started the product-seller
// onboarding track.
func (p *UserProfile) HasProductSellerSetup() bool {
	return p.SellerTier != "" || p.ApplyingForTier != ""
}

// ProductSellerVerified reports whether the product-seller track is approved.
func (p *UserProfile) ProductSellerVerified() bool {
	return p.VerificationStatus == VerificationVerified
}

// HasServiceProviderSetup reports whether the owner started the
// service-provider onboarding track.
func (p *UserProfile) HasServiceProviderSetup() bool {
	return p.ServiceProviderStatus != ""
}

// ServiceProviderVerified reports whether the service-provider track is approved.
func (p *UserProfile) ServiceProviderVerified() bool {
	return p.ServiceProviderStatus == ServiceProviderApproved
}

// Notification is a single backend-issued notification record. Ordering is
// server-defined; the gateway preserves insertion order.
type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
	ActionURL string    `json:"action_url,omitempty"`
}

// LoginResult is the outcome of a credential check. When RequiresTwoFactor is
// set, Token is empty and User carries the partial profile the backend chose
// to disclose alongside the challenge.
type LoginResult struct {
	RequiresTwoFactor bool         `json:"requires_two_factor"`
	Token             string       `json:"token,omitempty"`
	User              *UserProfile `json:"user,omitempty"`
}

// VerifyResult is a successful two-factor code exchange.
type VerifyResult struct {
	Token string      `json:"token"`
	User  UserProfile `json:"user"`
}
