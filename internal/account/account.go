// Package account implements registration, self-deletion and the code-based
// password reset flow.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/lib/logger/sl"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/lib/verification"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/models"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/storage"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserExists       = errors.New("user already exists")
	ErrUserNotFound     = errors.New("user not found")
	ErrForbidden        = errors.New("you can only delete your own account")
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrInvalidCode      = errors.New("invalid or expired code")
	ErrSendCode         = errors.New("failed to send verification code")
)

type UserSaver interface {
	SaveUser(ctx context.Context, email, firstName, lastName string, passHash []byte) (int64, error)
	DeleteUser(ctx context.Context, id int64) error
}

type UserProvider interface {
	User(ctx context.Context, email string) (models.User, error)
}

type ResetCodeStore interface {
	IssueResetCode(ctx context.Context, email, code string, expiresAt time.Time) (models.PasswordResetCode, error)
	LatestUnusedResetCode(ctx context.Context, email, code string) (models.PasswordResetCode, error)
	ResetPassword(ctx context.Context, email string, codeID int64, passHash []byte) error
}

type Service struct {
	log       *slog.Logger
	usrSaver  UserSaver
	usrProv   UserProvider
	codes     ResetCodeStore
	publisher verification.Publisher
	codeTTL   time.Duration
	now       func() time.Time
}

func New(
	log *slog.Logger,
	userSaver UserSaver,
	userProvider UserProvider,
	codes ResetCodeStore,
	publisher verification.Publisher,
	codeTTL time.Duration,
) *Service {
	return &Service{
		log:       log,
		usrSaver:  userSaver,
		usrProv:   userProvider,
		codes:     codes,
		publisher: publisher,
		codeTTL:   codeTTL,
		now:       time.Now,
	}
}

func (s *Service) Register(ctx context.Context, email, password, firstName, lastName string) (models.User, error) {
	const op = "account.Register"

	log := s.log.With(slog.String("op", op))

	log.Info("registering new user")

	passHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	id, err := s.usrSaver.SaveUser(ctx, email, firstName, lastName, passHash)
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			log.Warn("user already exists")
			return models.User{}, ErrUserExists
		}

		log.Error("failed to save user", sl.Err(err))
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user registered", slog.Int64("uid", id))

	return models.User{
		ID:        id,
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
		IsActive:  true,
	}, nil
}

// DeleteAccount removes targetID. Only the owner may delete an account; the check
// runs before the store is touched.
func (s *Service) DeleteAccount(ctx context.Context, callerID, targetID int64) error {
	const op = "account.DeleteAccount"

	log := s.log.With(slog.String("op", op), slog.Int64("caller", callerID), slog.Int64("target", targetID))

	if callerID != targetID {
		log.Warn("attempt to delete another user")
		return ErrForbidden
	}

	if err := s.usrSaver.DeleteUser(ctx, targetID); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return ErrUserNotFound
		}

		log.Error("failed to delete user", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user deleted")

	return nil
}

// * RequestResetCode issues a fresh code for a registered email and mails it.
// A code issued before a failed send stays stored and is superseded by the next request.
func (s *Service) RequestResetCode(ctx context.Context, email string) error {
	const op = "account.RequestResetCode"

	log := s.log.With(slog.String("op", op))

	if _, err := s.usrProv.User(ctx, email); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Info("reset requested for unknown email")
			return ErrUserNotFound
		}

		log.Error("failed to get user", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	code, err := verification.GenerateCode()
	if err != nil {
		log.Error("failed to generate code", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := s.codes.IssueResetCode(ctx, email, code, s.now().Add(s.codeTTL)); err != nil {
		log.Error("failed to store reset code", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := verification.SendResetCode(ctx, s.publisher, email, code, s.codeTTL); err != nil {
		log.Error("failed to send reset code", sl.Err(err))
		return fmt.Errorf("%w: %w", ErrSendCode, err)
	}

	log.Info("reset code sent")

	return nil
}

// * ResetPassword consumes a valid code and replaces the password in one transaction
func (s *Service) ResetPassword(ctx context.Context, email, code, newPassword, confirmPassword string) error {
	const op = "account.ResetPassword"

	log := s.log.With(slog.String("op", op))

	if newPassword != confirmPassword {
		return ErrPasswordMismatch
	}

	rc, err := s.codes.LatestUnusedResetCode(ctx, email, code)
	if err != nil {
		if errors.Is(err, storage.ErrCodeNotFound) {
			log.Info("no matching code")
			return ErrInvalidCode
		}

		log.Error("failed to look up code", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if !rc.ValidAt(s.now()) {
		log.Info("code expired", slog.Int64("code_id", rc.ID))
		return ErrInvalidCode
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.codes.ResetPassword(ctx, email, rc.ID, passHash); err != nil {
		switch {
		case errors.Is(err, storage.ErrUserNotFound):
			return ErrUserNotFound
		case errors.Is(err, storage.ErrCodeNotFound):
			// consumed concurrently
			return ErrInvalidCode
		}

		log.Error("failed to reset password", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("password reset", slog.Int64("code_id", rc.ID))

	return nil
}
