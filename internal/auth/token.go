package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionTTL is the lifetime of a session token and its cookie.
const SessionTTL = 7 * 24 * time.Hour

// TokenTypeUser marks a token issued for an interactive user session.
const TokenTypeUser = "user"

// ErrInvalidToken is returned when a token fails signature or expiry checks.
var ErrInvalidToken = errors.New("invalid or expired token")

// TokenPayload is the verified content of a session token.
type TokenPayload struct {
	UserID string
	Email  string
	Type   string
}

// Codec signs and verifies HS256 session tokens.
type Codec struct {
	secret []byte
}

// NewCodec creates a token Codec with the given signing secret.
func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret)}
}

// Issue creates a signed session token for the given user.
func (c *Codec) Issue(userID, email string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"userId": userID,
		"email":  email,
		"type":   TokenTypeUser,
		"iat":    now.Unix(),
		"exp":    now.Add(SessionTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Verify parses and validates a token, returning its payload.
// Any failure (bad signature, expiry, malformed input) yields ErrInvalidToken.
func (c *Codec) Verify(raw string) (*TokenPayload, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return c.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	userID, _ := claims["userId"].(string)
	email, _ := claims["email"].(string)
	typ, _ := claims["type"].(string)

	return &TokenPayload{UserID: userID, Email: email, Type: typ}, nil
}
