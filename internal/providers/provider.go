// Package providers verifies identity assertions from external login
// providers. Implementations return identity facts only; user lookup,
// linking and session issuance happen elsewhere.
package providers

import "context"

// Identity is the normalized result of a verified id token.
type Identity struct {
	// Subject is the provider-scoped stable identifier of the account.
	Subject string
	Email   string
	Name    string
}

// Provider validates a raw id token and extracts the identity claims.
type Provider interface {
	Name() string
	VerifyIDToken(ctx context.Context, rawToken string) (*Identity, error)
}
