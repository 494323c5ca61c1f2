// Package sqlite is the gorm-backed storage used for local runs and tests.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/models"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/storage"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type Storage struct {
	db *gorm.DB
}

// New opens (and migrates) the database at path. A "file:" DSN is passed through
// unchanged, which allows in-memory databases.
func New(path string) (*Storage, error) {
	const op = "storage.sqlite.New"

	if !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("%s: create db dir: %w", op, err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: open database: %w", op, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("%s: get sql db: %w", op, err)
	}

	// single writer
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(
		&models.User{},
		&models.PasswordResetCode{},
		&models.RevokedToken{},
	); err != nil {
		return nil, fmt.Errorf("%s: auto migrate: %w", op, err)
	}

	return &Storage{db: db}, nil
}

func (s *Storage) SaveUser(ctx context.Context, email, firstName, lastName string, passHash []byte) (int64, error) {
	const op = "storage.sqlite.SaveUser"

	u := models.User{
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
		PassHash:  passHash,
		IsActive:  true,
	}

	if err := s.db.WithContext(ctx).Create(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return 0, storage.ErrUserExists
		}

		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return u.ID, nil
}

func (s *Storage) User(ctx context.Context, email string) (models.User, error) {
	return s.firstUser(ctx, "email = ?", email)
}

func (s *Storage) UserByID(ctx context.Context, id int64) (models.User, error) {
	return s.firstUser(ctx, "id = ?", id)
}

// SetActive toggles the account flag. Not exposed over HTTP.
func (s *Storage) SetActive(ctx context.Context, id int64, active bool) error {
	const op = "storage.sqlite.SetActive"

	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("is_active", active)
	if res.Error != nil {
		return fmt.Errorf("%s: %w", op, res.Error)
	}
	if res.RowsAffected == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

func (s *Storage) DeleteUser(ctx context.Context, id int64) error {
	const op = "storage.sqlite.DeleteUser"

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u models.User
		if err := tx.First(&u, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return storage.ErrUserNotFound
			}
			return err
		}

		if err := tx.Model(&models.PasswordResetCode{}).
			Where("email = ? AND is_used = ?", u.Email, false).
			Update("is_used", true).Error; err != nil {
			return err
		}

		return tx.Delete(&u).Error
	})
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return err
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) IssueResetCode(
	ctx context.Context,
	email, code string,
	expiresAt time.Time,
) (models.PasswordResetCode, error) {
	const op = "storage.sqlite.IssueResetCode"

	rc := models.PasswordResetCode{
		Email:     email,
		Code:      code,
		ExpiresAt: expiresAt,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.PasswordResetCode{}).
			Where("email = ? AND is_used = ?", email, false).
			Update("is_used", true).Error; err != nil {
			return err
		}

		return tx.Create(&rc).Error
	})
	if err != nil {
		return models.PasswordResetCode{}, fmt.Errorf("%s: %w", op, err)
	}

	return rc, nil
}

func (s *Storage) LatestUnusedResetCode(ctx context.Context, email, code string) (models.PasswordResetCode, error) {
	const op = "storage.sqlite.LatestUnusedResetCode"

	var rc models.PasswordResetCode

	err := s.db.WithContext(ctx).
		Where("email = ? AND code = ? AND is_used = ?", email, code, false).
		Order("created_at DESC").
		Order("id DESC").
		First(&rc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.PasswordResetCode{}, storage.ErrCodeNotFound
		}

		return models.PasswordResetCode{}, fmt.Errorf("%s: %w", op, err)
	}

	return rc, nil
}

func (s *Storage) ResetPassword(ctx context.Context, email string, codeID int64, passHash []byte) error {
	const op = "storage.sqlite.ResetPassword"

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).Where("email = ?", email).Update("password_hash", passHash)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return storage.ErrUserNotFound
		}

		res = tx.Model(&models.PasswordResetCode{}).
			Where("id = ? AND is_used = ?", codeID, false).
			Update("is_used", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return storage.ErrCodeNotFound
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) || errors.Is(err, storage.ErrCodeNotFound) {
			return err
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) RevokeToken(ctx context.Context, jti string, userID int64, expiresAt time.Time) error {
	const op = "storage.sqlite.RevokeToken"

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.RevokedToken{JTI: jti, UserID: userID, ExpiresAt: expiresAt}).Error
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	const op = "storage.sqlite.IsTokenRevoked"

	var n int64
	if err := s.db.WithContext(ctx).Model(&models.RevokedToken{}).Where("jti = ?", jti).Count(&n).Error; err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return n > 0, nil
}

func (s *Storage) firstUser(ctx context.Context, query string, arg any) (models.User, error) {
	const op = "storage.sqlite.User"

	var u models.User
	if err := s.db.WithContext(ctx).Where(query, arg).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, storage.ErrUserNotFound
		}

		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return u, nil
}

func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}
