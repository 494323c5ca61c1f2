package jwt

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/models"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

var ErrUnexpectedTokenType = errors.New("unexpected token type")

type Claims struct {
	Email     string `json:"email,omitempty"`
	TokenType string `json:"token_type"`
	jwtlib.RegisteredClaims
}

// UserID parses the numeric user id stored in the subject claim.
func (c *Claims) UserID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

// NewRefreshToken issues a refresh token for the user. The returned claims are the
// ones the access token is derived from.
func NewRefreshToken(user models.User, secret string, ttl time.Duration) (string, *Claims, error) {
	now := time.Now()

	claims := &Claims{
		Email:     user.Email,
		TokenType: TypeRefresh,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
		},
	}

	token, err := sign(claims, secret)
	if err != nil {
		return "", nil, err
	}

	return token, claims, nil
}

// NewAccessToken derives a short-lived access token from refresh token claims.
func NewAccessToken(refresh *Claims, secret string, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := &Claims{
		Email:     refresh.Email,
		TokenType: TypeAccess,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   refresh.Subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
		},
	}

	return sign(claims, secret)
}

// Parse validates signature, expiry and token type.
func Parse(tokenStr, secret, tokenType string) (*Claims, error) {
	const op = "jwt.Parse"

	parsed, err := jwtlib.ParseWithClaims(tokenStr, &Claims{}, func(t *jwtlib.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Name}), jwtlib.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("%s: %w", op, jwtlib.ErrTokenInvalidClaims)
	}

	if claims.TokenType != tokenType {
		return nil, fmt.Errorf("%s: %w", op, ErrUnexpectedTokenType)
	}

	if claims.ID == "" {
		return nil, fmt.Errorf("%s: missing jti: %w", op, jwtlib.ErrTokenInvalidClaims)
	}

	return claims, nil
}

func sign(claims *Claims, secret string) (string, error) {
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)

	return token.SignedString([]byte(secret))
}
