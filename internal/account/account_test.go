package account

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/models"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// memStore is an in-memory user directory and reset ledger that counts calls.
type memStore struct {
	users  map[string]models.User
	codes  []models.PasswordResetCode
	nextID int64
	calls  int
}

func newMemStore() *memStore {
	return &memStore{users: map[string]models.User{}}
}

func (m *memStore) SaveUser(_ context.Context, email, first, last string, hash []byte) (int64, error) {
	m.calls++
	if _, ok := m.users[email]; ok {
		return 0, storage.ErrUserExists
	}
	m.nextID++
	m.users[email] = models.User{ID: m.nextID, Email: email, FirstName: first, LastName: last, PassHash: hash, IsActive: true}
	return m.nextID, nil
}

func (m *memStore) DeleteUser(_ context.Context, id int64) error {
	m.calls++
	for email, u := range m.users {
		if u.ID == id {
			delete(m.users, email)
			return nil
		}
	}
	return storage.ErrUserNotFound
}

func (m *memStore) User(_ context.Context, email string) (models.User, error) {
	m.calls++
	u, ok := m.users[email]
	if !ok {
		return models.User{}, storage.ErrUserNotFound
	}
	return u, nil
}

func (m *memStore) IssueResetCode(_ context.Context, email, code string, expiresAt time.Time) (models.PasswordResetCode, error) {
	m.calls++
	for i := range m.codes {
		if m.codes[i].Email == email {
			m.codes[i].IsUsed = true
		}
	}
	rc := models.PasswordResetCode{ID: int64(len(m.codes) + 1), Email: email, Code: code, ExpiresAt: expiresAt}
	m.codes = append(m.codes, rc)
	return rc, nil
}

func (m *memStore) LatestUnusedResetCode(_ context.Context, email, code string) (models.PasswordResetCode, error) {
	m.calls++
	for i := len(m.codes) - 1; i >= 0; i-- {
		c := m.codes[i]
		if c.Email == email && c.Code == code && !c.IsUsed {
			return c, nil
		}
	}
	return models.PasswordResetCode{}, storage.ErrCodeNotFound
}

func (m *memStore) ResetPassword(_ context.Context, email string, codeID int64, hash []byte) error {
	m.calls++
	u, ok := m.users[email]
	if !ok {
		return storage.ErrUserNotFound
	}
	c := &m.codes[codeID-1]
	if c.IsUsed {
		return storage.ErrCodeNotFound
	}
	c.IsUsed = true
	u.PassHash = hash
	m.users[email] = u
	return nil
}

type publisherStub struct {
	sent []models.Message
	err  error
}

func (p *publisherStub) SendMessage(_ context.Context, msg models.Message) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, msg)
	return nil
}

func newTestService() (*Service, *memStore, *publisherStub) {
	st := newMemStore()
	pub := &publisherStub{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	return New(log, st, st, st, pub, 10*time.Minute), st, pub
}

func TestRegister(t *testing.T) {
	svc, st, _ := newTestService()
	ctx := context.Background()

	u, err := svc.Register(ctx, "ana@example.com", "password123", "Ana", "Diaz")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", u.Email)
	assert.NotZero(t, u.ID)

	stored := st.users["ana@example.com"]
	assert.NoError(t, bcrypt.CompareHashAndPassword(stored.PassHash, []byte("password123")))

	_, err = svc.Register(ctx, "ana@example.com", "password456", "Ana", "Diaz")
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestDeleteAccount(t *testing.T) {
	svc, st, _ := newTestService()
	ctx := context.Background()

	u, err := svc.Register(ctx, "ana@example.com", "password123", "Ana", "Diaz")
	require.NoError(t, err)

	t.Run("other user is forbidden without touching the store", func(t *testing.T) {
		before := st.calls

		err := svc.DeleteAccount(ctx, u.ID+1, u.ID)
		assert.ErrorIs(t, err, ErrForbidden)
		assert.Equal(t, before, st.calls)
		assert.Contains(t, st.users, "ana@example.com")
	})

	t.Run("owner deletes", func(t *testing.T) {
		require.NoError(t, svc.DeleteAccount(ctx, u.ID, u.ID))
		assert.NotContains(t, st.users, "ana@example.com")
	})

	t.Run("already gone", func(t *testing.T) {
		assert.ErrorIs(t, svc.DeleteAccount(ctx, u.ID, u.ID), ErrUserNotFound)
	})
}

func TestRequestResetCode(t *testing.T) {
	svc, st, pub := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "ana@example.com", "password123", "Ana", "Diaz")
	require.NoError(t, err)

	t.Run("unknown email writes nothing", func(t *testing.T) {
		err := svc.RequestResetCode(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, ErrUserNotFound)
		assert.Empty(t, st.codes)
		assert.Empty(t, pub.sent)
	})

	t.Run("known email", func(t *testing.T) {
		require.NoError(t, svc.RequestResetCode(ctx, "ana@example.com"))
		require.Len(t, st.codes, 1)
		require.Len(t, pub.sent, 1)

		assert.Equal(t, "ana@example.com", pub.sent[0].Email)
		assert.Contains(t, pub.sent[0].Body, st.codes[0].Code)
	})

	t.Run("publish failure", func(t *testing.T) {
		pub.err = errors.New("broker down")
		defer func() { pub.err = nil }()

		err := svc.RequestResetCode(ctx, "ana@example.com")
		assert.ErrorIs(t, err, ErrSendCode)
		assert.Len(t, st.codes, 2, "code stays issued")
	})
}

func TestResetPassword(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*Service, *memStore, string) {
		t.Helper()

		svc, st, pub := newTestService()
		_, err := svc.Register(ctx, "ana@example.com", "password123", "Ana", "Diaz")
		require.NoError(t, err)
		require.NoError(t, svc.RequestResetCode(ctx, "ana@example.com"))
		require.Len(t, pub.sent, 1)

		return svc, st, st.codes[0].Code
	}

	t.Run("mismatch is rejected before store access", func(t *testing.T) {
		svc, st, code := setup(t)
		before := st.calls

		err := svc.ResetPassword(ctx, "ana@example.com", code, "newpass123", "other123")
		assert.ErrorIs(t, err, ErrPasswordMismatch)
		assert.Equal(t, before, st.calls)
	})

	t.Run("wrong code", func(t *testing.T) {
		svc, _, _ := setup(t)

		err := svc.ResetPassword(ctx, "ana@example.com", "ZZZZ9999", "newpass123", "newpass123")
		assert.ErrorIs(t, err, ErrInvalidCode)
	})

	t.Run("success consumes code once", func(t *testing.T) {
		svc, st, code := setup(t)

		require.NoError(t, svc.ResetPassword(ctx, "ana@example.com", code, "newpass123", "newpass123"))
		assert.NoError(t, bcrypt.CompareHashAndPassword(st.users["ana@example.com"].PassHash, []byte("newpass123")))

		err := svc.ResetPassword(ctx, "ana@example.com", code, "another123", "another123")
		assert.ErrorIs(t, err, ErrInvalidCode)
	})

	t.Run("expired code", func(t *testing.T) {
		svc, _, code := setup(t)
		svc.now = func() time.Time { return time.Now().Add(11 * time.Minute) }

		err := svc.ResetPassword(ctx, "ana@example.com", code, "newpass123", "newpass123")
		assert.ErrorIs(t, err, ErrInvalidCode)
	})

	t.Run("second request invalidates first code", func(t *testing.T) {
		svc, _, first := setup(t)
		require.NoError(t, svc.RequestResetCode(ctx, "ana@example.com"))

		err := svc.ResetPassword(ctx, "ana@example.com", first, "newpass123", "newpass123")
		assert.ErrorIs(t, err, ErrInvalidCode)
	})

	t.Run("user deleted after code issued", func(t *testing.T) {
		svc, st, code := setup(t)
		delete(st.users, "ana@example.com")

		err := svc.ResetPassword(ctx, "ana@example.com", code, "newpass123", "newpass123")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}
