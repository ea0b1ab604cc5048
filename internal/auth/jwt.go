package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// --- Context Keys ---

// contextKey is a custom type used for context keys to avoid collisions.
type contextKey string

const (
	ClaimsKey contextKey = "claims"
)

// Scope says what a token may be used for.
type Scope string

const (
	ScopeChat  Scope = "chat"  // one visitor conversation
	ScopeAdmin Scope = "admin" // operator endpoints
)

const issuer = "concierge-backend"

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token has expired")
)

// --- JWT Claims ---

// CustomClaims includes standard JWT claims plus our custom ones.
type CustomClaims struct {
	Scope  Scope     `json:"scope"`
	ChatID uuid.UUID `json:"chat_id,omitempty"`
	jwt.RegisteredClaims
}

// NewChatToken issues a token that authorizes access to chatID only.
func NewChatToken(chatID uuid.UUID, secret string, expiration time.Duration) (string, error) {
	return sign(CustomClaims{Scope: ScopeChat, ChatID: chatID}, chatID.String(), secret, expiration)
}

// NewAdminToken issues a token for the admin endpoints.
func NewAdminToken(secret string, expiration time.Duration) (string, error) {
	return sign(CustomClaims{Scope: ScopeAdmin}, "admin", secret, expiration)
}

func sign(claims CustomClaims, subject, secret string, expiration time.Duration) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(expiration)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		Issuer:    issuer,
		Subject:   subject,
		ID:        uuid.NewString(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", errors.Wrap(err, "error signing JWT token")
	}
	return signed, nil
}

// ParseToken validates tokenString and returns its claims.
func ParseToken(tokenString, secret string) (*CustomClaims, error) {
	claims := &CustomClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, errors.Wrap(ErrInvalidToken, err.Error())
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	switch claims.Scope {
	case ScopeAdmin:
	case ScopeChat:
		if claims.ChatID == uuid.Nil {
			return nil, errors.Wrap(ErrInvalidToken, "chat token without chat_id")
		}
	default:
		return nil, errors.Wrapf(ErrInvalidToken, "unknown scope %q", claims.Scope)
	}
	return claims, nil
}
