package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/config"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/models"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/storage"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/storage/postgres/migrations"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

const uniqueViolation = "23505"

type PostgresRepo struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, cfg *config.Config) (*PostgresRepo, error) {
	const op = "storage.postgres.New"

	dsn := dsn(cfg)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse config: %w", op, err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = time.Minute * 30

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create pool: %w", op, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: failed to ping database: %w", op, err)
	}

	return &PostgresRepo{pool: pool}, nil
}

// * Migrate applies the embedded goose migrations.
func (r *PostgresRepo) Migrate(ctx context.Context) error {
	const op = "storage.postgres.Migrate"

	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrations.FS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) SaveUser(ctx context.Context, email, firstName, lastName string, passHash []byte) (int64, error) {
	const op = "storage.postgres.SaveUser"

	query := `
		INSERT INTO users (email, first_name, last_name, password_hash, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING id;
	`

	var id int64

	err := r.pool.QueryRow(ctx, query, email, firstName, lastName, passHash).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, storage.ErrUserExists
		}

		return 0, fmt.Errorf("%s: failed to save user: %w", op, err)
	}

	return id, nil
}

func (r *PostgresRepo) User(ctx context.Context, email string) (models.User, error) {
	query := `
		SELECT id, email, first_name, last_name, password_hash, is_active, created_at, updated_at
		FROM users
		WHERE email = $1;
	`

	return scanUser(r.pool.QueryRow(ctx, query, email))
}

func (r *PostgresRepo) UserByID(ctx context.Context, id int64) (models.User, error) {
	query := `
		SELECT id, email, first_name, last_name, password_hash, is_active, created_at, updated_at
		FROM users
		WHERE id = $1;
	`

	return scanUser(r.pool.QueryRow(ctx, query, id))
}

// * DeleteUser removes the user and retires their unused reset codes in one transaction.
func (r *PostgresRepo) DeleteUser(ctx context.Context, id int64) error {
	const op = "storage.postgres.DeleteUser"

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var email string

		err := tx.QueryRow(ctx, `DELETE FROM users WHERE id = $1 RETURNING email`, id).Scan(&email)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return storage.ErrUserNotFound
			}

			return err
		}

		_, err = tx.Exec(ctx,
			`UPDATE password_reset_codes SET is_used = TRUE WHERE email = $1 AND is_used = FALSE`,
			email,
		)

		return err
	})
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return err
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// * IssueResetCode marks every unused code of the email as used and stores the new one.
func (r *PostgresRepo) IssueResetCode(
	ctx context.Context,
	email, code string,
	expiresAt time.Time,
) (models.PasswordResetCode, error) {
	const op = "storage.postgres.IssueResetCode"

	rc := models.PasswordResetCode{
		Email:     email,
		Code:      code,
		ExpiresAt: expiresAt,
	}

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`UPDATE password_reset_codes SET is_used = TRUE WHERE email = $1 AND is_used = FALSE`,
			email,
		)
		if err != nil {
			return err
		}

		return tx.QueryRow(ctx, `
			INSERT INTO password_reset_codes (email, code, is_used, expires_at)
			VALUES ($1, $2, FALSE, $3)
			RETURNING id, created_at;
		`, email, code, expiresAt).Scan(&rc.ID, &rc.CreatedAt)
	})
	if err != nil {
		return models.PasswordResetCode{}, fmt.Errorf("%s: %w", op, err)
	}

	return rc, nil
}

// * LatestUnusedResetCode returns the newest unused code matching email and code, expired or not.
func (r *PostgresRepo) LatestUnusedResetCode(ctx context.Context, email, code string) (models.PasswordResetCode, error) {
	const op = "storage.postgres.LatestUnusedResetCode"

	query := `
		SELECT id, email, code, is_used, created_at, expires_at
		FROM password_reset_codes
		WHERE email = $1 AND code = $2 AND is_used = FALSE
		ORDER BY created_at DESC, id DESC
		LIMIT 1;
	`

	var rc models.PasswordResetCode

	err := r.pool.QueryRow(ctx, query, email, code).Scan(
		&rc.ID,
		&rc.Email,
		&rc.Code,
		&rc.IsUsed,
		&rc.CreatedAt,
		&rc.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.PasswordResetCode{}, storage.ErrCodeNotFound
		}

		return models.PasswordResetCode{}, fmt.Errorf("%s: %w", op, err)
	}

	return rc, nil
}

// * ResetPassword sets the new hash and consumes the code atomically.
func (r *PostgresRepo) ResetPassword(ctx context.Context, email string, codeID int64, passHash []byte) error {
	const op = "storage.postgres.ResetPassword"

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE users SET password_hash = $1, updated_at = NOW() WHERE email = $2`,
			passHash, email,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return storage.ErrUserNotFound
		}

		tag, err = tx.Exec(ctx,
			`UPDATE password_reset_codes SET is_used = TRUE WHERE id = $1 AND is_used = FALSE`,
			codeID,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
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

func (r *PostgresRepo) RevokeToken(ctx context.Context, jti string, userID int64, expiresAt time.Time) error {
	const op = "storage.postgres.RevokeToken"

	const query = `
		INSERT INTO token_blacklist (jti, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (jti) DO NOTHING
	`

	if _, err := r.pool.Exec(ctx, query, jti, userID, expiresAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	const op = "storage.postgres.IsTokenRevoked"

	var revoked bool

	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM token_blacklist WHERE jti = $1)`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return revoked, nil
}

func (r *PostgresRepo) Close() {
	r.pool.Close()
}

func scanUser(row pgx.Row) (models.User, error) {
	var u models.User

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.FirstName,
		&u.LastName,
		&u.PassHash,
		&u.IsActive,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storage.ErrUserNotFound
		}

		return models.User{}, err
	}

	return u, nil
}

// * dsn builds the connection string from config.
func dsn(cfg *config.Config) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s database=%s sslmode=%s",
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.DBName,
		cfg.Postgres.SSLMode,
	)
}
