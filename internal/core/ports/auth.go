package ports

// TokenVerifier checks a bearer credential and returns the actor id it was issued for.
type TokenVerifier interface {
	Verify(token string) (string, error)
}
