package interfaces

import "context"

// IAuthenticator resolves a bearer credential to a user identity.
type IAuthenticator interface {
	ValidateCredential(ctx context.Context, token string) (string, error)
}
