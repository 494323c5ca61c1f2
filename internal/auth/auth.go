package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/lib/jwt"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/lib/logger/sl"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/models"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/storage"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveAccount    = errors.New("user account is disabled")
	ErrInvalidToken       = errors.New("token is invalid or expired")
)

type Auth struct {
	log         *slog.Logger
	usrProvider UserProvider
	denylist    TokenDenylist
	secret      string
	accessTTL   time.Duration
	refreshTTL  time.Duration
}

type UserProvider interface {
	User(ctx context.Context, email string) (models.User, error)
	UserByID(ctx context.Context, id int64) (models.User, error)
}

type TokenDenylist interface {
	RevokeToken(ctx context.Context, jti string, userID int64, expiresAt time.Time) error
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

func New(
	log *slog.Logger,
	userProvider UserProvider,
	denylist TokenDenylist,
	secret string,
	accessTTL, refreshTTL time.Duration,
) *Auth {
	return &Auth{
		log:         log,
		usrProvider: userProvider,
		denylist:    denylist,
		secret:      secret,
		accessTTL:   accessTTL,
		refreshTTL:  refreshTTL,
	}
}

// * Login checks the credentials and issues a refresh token with an access token derived from it
func (a *Auth) Login(ctx context.Context, email, password string) (TokenPair, models.User, error) {
	const op = "auth.Login"

	log := a.log.With(slog.String("op", op))

	user, err := a.usrProvider.User(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user not found")
			return TokenPair{}, models.User{}, ErrInvalidCredentials
		}

		log.Error("failed to get user", sl.Err(err))
		return TokenPair{}, models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := bcrypt.CompareHashAndPassword(user.PassHash, []byte(password)); err != nil {
		log.Info("invalid credentials", sl.Err(err))
		return TokenPair{}, models.User{}, ErrInvalidCredentials
	}

	if !user.IsActive {
		log.Info("inactive account", slog.Int64("uid", user.ID))
		return TokenPair{}, models.User{}, ErrInactiveAccount
	}

	pair, err := a.issue(user)
	if err != nil {
		log.Error("failed to generate tokens", sl.Err(err))
		return TokenPair{}, models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user logged in successfully", slog.Int64("uid", user.ID))

	return pair, user, nil
}

// * Refresh returns a new access token; the refresh token is not rotated
func (a *Auth) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	const op = "auth.Refresh"

	log := a.log.With(slog.String("op", op))

	claims, err := a.activeRefreshClaims(ctx, refreshToken)
	if err != nil {
		if !errors.Is(err, ErrInvalidToken) {
			log.Error("failed to check refresh token", sl.Err(err))
			return TokenPair{}, fmt.Errorf("%s: %w", op, err)
		}

		log.Warn("refresh rejected", sl.Err(err))
		return TokenPair{}, ErrInvalidToken
	}

	uid, err := claims.UserID()
	if err != nil {
		return TokenPair{}, ErrInvalidToken
	}

	user, err := a.usrProvider.UserByID(ctx, uid)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user from token not found", slog.Int64("uid", uid))
			return TokenPair{}, ErrInvalidToken
		}

		log.Error("failed to load user", sl.Err(err))
		return TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	if !user.IsActive {
		return TokenPair{}, ErrInvalidToken
	}

	access, err := jwt.NewAccessToken(claims, a.secret, a.accessTTL)
	if err != nil {
		log.Error("failed to generate access token", sl.Err(err))
		return TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("refresh successful", slog.Int64("uid", uid))

	return TokenPair{Access: access, Refresh: refreshToken}, nil
}

// * Logout denylists the refresh token until it expires
func (a *Auth) Logout(ctx context.Context, refreshToken string) error {
	const op = "auth.Logout"

	log := a.log.With(slog.String("op", op))

	claims, err := a.activeRefreshClaims(ctx, refreshToken)
	if err != nil {
		if !errors.Is(err, ErrInvalidToken) {
			log.Error("failed to check refresh token", sl.Err(err))
			return fmt.Errorf("%s: %w", op, err)
		}

		log.Warn("logout rejected", sl.Err(err))
		return ErrInvalidToken
	}

	uid, err := claims.UserID()
	if err != nil {
		return ErrInvalidToken
	}

	if err := a.denylist.RevokeToken(ctx, claims.ID, uid, claims.ExpiresAt.Time); err != nil {
		log.Error("failed to revoke refresh token", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("logout successful", slog.Int64("uid", uid))

	return nil
}

func (a *Auth) ParseAccessToken(token string) (*jwt.Claims, error) {
	claims, err := jwt.Parse(token, a.secret, jwt.TypeAccess)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	return claims, nil
}

func (a *Auth) issue(user models.User) (TokenPair, error) {
	refresh, claims, err := jwt.NewRefreshToken(user, a.secret, a.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}

	access, err := jwt.NewAccessToken(claims, a.secret, a.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{Access: access, Refresh: refresh}, nil
}

// activeRefreshClaims verifies the token and rejects denylisted ids.
// Parse failures are reported as ErrInvalidToken; storage failures are returned as is.
func (a *Auth) activeRefreshClaims(ctx context.Context, token string) (*jwt.Claims, error) {
	claims, err := jwt.Parse(token, a.secret, jwt.TypeRefresh)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	revoked, err := a.denylist.IsTokenRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, fmt.Errorf("%w: token revoked", ErrInvalidToken)
	}

	return claims, nil
}
