// Package payment defines the capability interface the booking core consumes
// to hold and verify funds, plus the Stripe-backed implementation. The
// orchestrator only ever talks to the Gateway interface, so tests substitute
// a double.
package payment

import "context"

type AuthorizationStatus string

const (
	AuthSucceeded AuthorizationStatus = "succeeded"
	AuthPending   AuthorizationStatus = "pending"
	AuthFailed    AuthorizationStatus = "failed"
)

// Authorization is a gateway-held intent to charge a specific amount.
// ClientSecret is handed to the customer so they can complete payment
// out-of-band; it is only populated on creation.
type Authorization struct {
	ID           string
	ClientSecret string
	Status       AuthorizationStatus
}

type CreateParams struct {
	AmountCents int64
	Currency    string
	Metadata    map[string]string
}

type Gateway interface {
	CreateAuthorization(ctx context.Context, p CreateParams) (*Authorization, error)
	RetrieveAuthorization(ctx context.Context, id string) (*Authorization, error)
	// VoidAuthorization cancels an unused authorization. Callers treat
	// failures as best-effort: log and move on.
	VoidAuthorization(ctx context.Context, id string) error
}
