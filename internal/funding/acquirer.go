package funding

import (
	"context"

	"github.com/google/uuid"

	"github.com/smartwallet/smartwallet/internal/ledger"
)

const (
	DecisionApproved = "approved"
	DecisionDeclined = "declined"
)

// Acquirer represents the connector that settles a top-up with the bank or
// e-wallet provider.
type Acquirer interface {
	AuthorizeTopUp(ctx context.Context, input TopUpAuthorization) (AuthorizationDecision, error)
}

// AuthorizationDecision captures the simulated response from the provider.
type AuthorizationDecision struct {
	Reference string
	Status    string
}

// Approved reports whether the provider accepted the movement.
func (d AuthorizationDecision) Approved() bool {
	return d.Status == DecisionApproved
}

// TopUpAuthorization describes the pending movement being settled.
type TopUpAuthorization struct {
	TransactionID string
	Method        ledger.Source
	Provider      string
	Amount        int64
}

// StaticAcquirer simulates a provider that approves every settlement.
type StaticAcquirer struct{}

// AuthorizeTopUp approves the request with a synthetic reference.
func (StaticAcquirer) AuthorizeTopUp(_ context.Context, _ TopUpAuthorization) (AuthorizationDecision, error) {
	return AuthorizationDecision{Reference: uuid.NewString(), Status: DecisionApproved}, nil
}

// AcquirerFunc adapts a function to the Acquirer interface.
type AcquirerFunc func(ctx context.Context, input TopUpAuthorization) (AuthorizationDecision, error)

// AuthorizeTopUp calls f.
func (f AcquirerFunc) AuthorizeTopUp(ctx context.Context, input TopUpAuthorization) (AuthorizationDecision, error) {
	return f(ctx, input)
}
