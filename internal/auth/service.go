package auth

import (
	"fmt"

	"github.com/google/uuid"
)

// Identity is the participant bound to a connection at handshake time.
type Identity struct {
	ParticipantID string
	Token         string
	// Minted is true when the presented token was absent or invalid.
	Minted bool
}

// Service issues and resolves participant identity tokens.
type Service struct {
	jwtConfig *JWTConfig
	newID     func() string
}

// NewService creates a new identity service.
func NewService(jwtConfig *JWTConfig) *Service {
	return &Service{
		jwtConfig: jwtConfig,
		newID:     uuid.NewString,
	}
}

// Resolve returns the identity carried by token, or mints a fresh participant
// id with a new token when token is empty or does not validate.
func (s *Service) Resolve(token string) (Identity, error) {
	if token != "" {
		if claims, err := ValidateToken(s.jwtConfig, token); err == nil {
			return Identity{ParticipantID: claims.Subject, Token: token}, nil
		}
	}

	id := s.newID()
	signed, err := GenerateToken(s.jwtConfig, id)
	if err != nil {
		return Identity{}, fmt.Errorf("generate token: %w", err)
	}
	return Identity{ParticipantID: id, Token: signed, Minted: true}, nil
}

// ValidateToken validates an identity token and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return ValidateToken(s.jwtConfig, tokenString)
}
