package services

import (
	"concierge-backend/internal/auth"
	"concierge-backend/internal/config"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Custom errors for auth service
var (
	ErrInvalidCredentials = errors.New("invalid password")
	ErrAdminDisabled      = errors.New("admin access is not configured")
	ErrCreatingToken      = errors.New("failed to create access token")
)

type AuthService struct {
	cfg *config.Config
}

func NewAuthService(cfg *config.Config) *AuthService {
	return &AuthService{cfg: cfg}
}

// IssueChatToken returns a token that grants access to one conversation.
func (s *AuthService) IssueChatToken(chatID uuid.UUID) (string, error) {
	tok, err := auth.NewChatToken(chatID, s.cfg.JWTSecret, s.cfg.TokenExpiration)
	if err != nil {
		log.Error().Err(err).Str("chat_id", chatID.String()).Msg("failed to sign chat token")
		return "", ErrCreatingToken
	}
	return tok, nil
}

// AdminLogin checks password against the configured bcrypt hash and returns
// an admin token.
func (s *AuthService) AdminLogin(password string) (string, error) {
	if s.cfg.AdminPasswordHash == "" {
		return "", ErrAdminDisabled
	}
	if password == "" || !auth.CheckPasswordHash(password, s.cfg.AdminPasswordHash) {
		log.Warn().Msg("failed admin login attempt")
		return "", ErrInvalidCredentials
	}
	tok, err := auth.NewAdminToken(s.cfg.JWTSecret, s.cfg.TokenExpiration)
	if err != nil {
		log.Error().Err(err).Msg("failed to sign admin token")
		return "", ErrCreatingToken
	}
	log.Info().Msg("admin logged in")
	return tok, nil
}

// Verify parses a bearer token issued by this service.
func (s *AuthService) Verify(token string) (*auth.CustomClaims, error) {
	return auth.ParseToken(token, s.cfg.JWTSecret)
}
