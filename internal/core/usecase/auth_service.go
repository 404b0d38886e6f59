package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/core/domain"
	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/core/ports"
)

var ErrUnauthorized = errors.New("unauthorized")

// AuthService resolves a bearer credential to a known actor. It backs both the HTTP
// middleware and the websocket handshake.
type AuthService struct {
	verifier ports.TokenVerifier
	actors   ports.ActorRepository
}

func NewAuthService(verifier ports.TokenVerifier, actors ports.ActorRepository) *AuthService {
	return &AuthService{verifier: verifier, actors: actors}
}

func (s *AuthService) Authenticate(ctx context.Context, token string) (domain.Actor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Actor{}, ErrUnauthorized
	}

	actorID, err := s.verifier.Verify(token)
	if err != nil {
		return domain.Actor{}, ErrUnauthorized
	}
	actor, err := s.actors.Get(ctx, actorID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Actor{}, ErrUnauthorized
		}
		return domain.Actor{}, err
	}
	return actor, nil
}
