package verification

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/models"
)

const (
	CodeLength   = 8
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	PurposePasswordReset = "password_reset"
)

type Publisher interface {
	SendMessage(ctx context.Context, msg models.Message) error
}

// GenerateCode draws CodeLength characters uniformly, with replacement, from A-Z0-9.
func GenerateCode() (string, error) {
	const op = "verification.GenerateCode"

	max := big.NewInt(int64(len(codeAlphabet)))
	code := make([]byte, CodeLength)

	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}

		code[i] = codeAlphabet[n.Int64()]
	}

	return string(code), nil
}

// IsWellFormed reports whether s could have been produced by GenerateCode.
func IsWellFormed(s string) bool {
	if len(s) != CodeLength {
		return false
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}

	return true
}

// SendResetCode publishes the password reset email carrying the plaintext code.
func SendResetCode(
	ctx context.Context,
	pub Publisher,
	email, code string,
	ttl time.Duration,
) error {
	const op = "verification.SendResetCode"

	msg := models.Message{
		Email:   email,
		Subject: "Password reset code",
		Body: fmt.Sprintf(
			"Your password reset code is %s.\nIt expires in %d minutes and can be used only once.",
			code,
			int(ttl.Minutes()),
		),
		Purpose: PurposePasswordReset,
	}

	if err := pub.SendMessage(ctx, msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
