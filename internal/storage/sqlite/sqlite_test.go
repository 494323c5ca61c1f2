package sqlite

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/models"
	"github.com/Magno-12/prueba-tecnica-quo-digital/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	s, err := New(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)

	t.Cleanup(func() { _ = s.Close() })

	return s
}

func TestSaveUser_AndLookup(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	id, err := s.SaveUser(ctx, "ana@example.com", "Ana", "Diaz", []byte("hash"))
	require.NoError(t, err)
	assert.NotZero(t, id)

	u, err := s.User(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.Equal(t, "Ana", u.FirstName)
	assert.True(t, u.IsActive)
	assert.Equal(t, []byte("hash"), u.PassHash)

	byID, err := s.UserByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, u.Email, byID.Email)

	_, err = s.User(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}

func TestSaveUser_Duplicate(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	_, err := s.SaveUser(ctx, "ana@example.com", "Ana", "Diaz", []byte("hash"))
	require.NoError(t, err)

	_, err = s.SaveUser(ctx, "ana@example.com", "Other", "Person", []byte("hash2"))
	assert.ErrorIs(t, err, storage.ErrUserExists)
}

func TestIssueResetCode_InvalidatesPrevious(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	expires := time.Now().Add(10 * time.Minute)

	first, err := s.IssueResetCode(ctx, "ana@example.com", "AAAA1111", expires)
	require.NoError(t, err)
	assert.NotZero(t, first.ID)

	_, err = s.LatestUnusedResetCode(ctx, "ana@example.com", "AAAA1111")
	require.NoError(t, err)

	second, err := s.IssueResetCode(ctx, "ana@example.com", "BBBB2222", expires)
	require.NoError(t, err)

	_, err = s.LatestUnusedResetCode(ctx, "ana@example.com", "AAAA1111")
	assert.ErrorIs(t, err, storage.ErrCodeNotFound)

	got, err := s.LatestUnusedResetCode(ctx, "ana@example.com", "BBBB2222")
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
	assert.False(t, got.IsUsed)
}

func TestIssueResetCode_OtherEmailsUntouched(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	expires := time.Now().Add(10 * time.Minute)

	_, err := s.IssueResetCode(ctx, "ana@example.com", "AAAA1111", expires)
	require.NoError(t, err)
	_, err = s.IssueResetCode(ctx, "bob@example.com", "BBBB2222", expires)
	require.NoError(t, err)

	_, err = s.LatestUnusedResetCode(ctx, "ana@example.com", "AAAA1111")
	assert.NoError(t, err)
}

func TestLatestUnusedResetCode_ReturnsExpired(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	_, err := s.IssueResetCode(ctx, "ana@example.com", "AAAA1111", time.Now().Add(-time.Minute))
	require.NoError(t, err)

	rc, err := s.LatestUnusedResetCode(ctx, "ana@example.com", "AAAA1111")
	require.NoError(t, err)
	assert.False(t, rc.IsValid())
}

func TestResetPassword_ConsumesCodeOnce(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	_, err := s.SaveUser(ctx, "ana@example.com", "Ana", "Diaz", []byte("old"))
	require.NoError(t, err)

	rc, err := s.IssueResetCode(ctx, "ana@example.com", "AAAA1111", time.Now().Add(10*time.Minute))
	require.NoError(t, err)

	require.NoError(t, s.ResetPassword(ctx, "ana@example.com", rc.ID, []byte("new")))

	u, err := s.User(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), u.PassHash)

	err = s.ResetPassword(ctx, "ana@example.com", rc.ID, []byte("newer"))
	assert.ErrorIs(t, err, storage.ErrCodeNotFound)

	_, err = s.LatestUnusedResetCode(ctx, "ana@example.com", "AAAA1111")
	assert.ErrorIs(t, err, storage.ErrCodeNotFound)

	// the failed attempt rolled back the password change
	u, err = s.User(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), u.PassHash)
}

func TestResetPassword_UserGone(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	rc, err := s.IssueResetCode(ctx, "ghost@example.com", "AAAA1111", time.Now().Add(10*time.Minute))
	require.NoError(t, err)

	err = s.ResetPassword(ctx, "ghost@example.com", rc.ID, []byte("new"))
	assert.ErrorIs(t, err, storage.ErrUserNotFound)

	// code stays usable because the transaction rolled back
	_, err = s.LatestUnusedResetCode(ctx, "ghost@example.com", "AAAA1111")
	assert.NoError(t, err)
}

func TestDeleteUser(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	id, err := s.SaveUser(ctx, "ana@example.com", "Ana", "Diaz", []byte("hash"))
	require.NoError(t, err)
	_, err = s.IssueResetCode(ctx, "ana@example.com", "AAAA1111", time.Now().Add(10*time.Minute))
	require.NoError(t, err)

	require.NoError(t, s.DeleteUser(ctx, id))

	_, err = s.UserByID(ctx, id)
	assert.ErrorIs(t, err, storage.ErrUserNotFound)

	_, err = s.LatestUnusedResetCode(ctx, "ana@example.com", "AAAA1111")
	assert.ErrorIs(t, err, storage.ErrCodeNotFound)

	var codes int64
	require.NoError(t, s.db.Model(&models.PasswordResetCode{}).Count(&codes).Error)
	assert.Equal(t, int64(1), codes, "reset codes are retained")

	assert.ErrorIs(t, s.DeleteUser(ctx, id), storage.ErrUserNotFound)
}

func TestSetActive(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	id, err := s.SaveUser(ctx, "ana@example.com", "Ana", "Diaz", []byte("hash"))
	require.NoError(t, err)

	require.NoError(t, s.SetActive(ctx, id, false))

	u, err := s.UserByID(ctx, id)
	require.NoError(t, err)
	assert.False(t, u.IsActive)

	assert.ErrorIs(t, s.SetActive(ctx, id+100, false), storage.ErrUserNotFound)
}

func TestTokenDenylist(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	revoked, err := s.IsTokenRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	exp := time.Now().Add(time.Hour)
	require.NoError(t, s.RevokeToken(ctx, "jti-1", 1, exp))
	require.NoError(t, s.RevokeToken(ctx, "jti-1", 1, exp), "revoking twice is a no-op")

	revoked, err = s.IsTokenRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)
}
