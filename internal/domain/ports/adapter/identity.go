package adapter

// Identity is the authenticated caller extracted from a bearer credential.
type Identity struct {
	UserID string
	Email  string
}

// IdentityVerifier is the hex port for the external identity provider.
// Tokens are verified locally against the provider's signing secret.
type IdentityVerifier interface {
	// Verify authenticates a bearer token.
	// Errors wrap ErrUnauthenticated.
	Verify(token string) (*Identity, error)
}
