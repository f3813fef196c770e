package auth_test

import (
	"strings"
	"testing"
	"time"

	"github.com/example/ec-backoffice/internal/apperr"
	"github.com/example/ec-backoffice/internal/auth"
	"github.com/example/ec-backoffice/internal/domain/member"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var registeredAt = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

func newMember(t *testing.T, password string) *member.Member {
	t.Helper()
	m, err := member.New("kim@example.com", password, "Kim", member.RoleCustomer, registeredAt)
	require.NoError(t, err)
	return m
}

// ============================================
// Password Policy Tests
// ============================================

func TestPasswordErrors_AreValidation(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{auth.ErrPasswordTooShort, "PASSWORD_TOO_SHORT"},
		{auth.ErrPasswordTooLong, "PASSWORD_TOO_LONG"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(tt.err))
			assert.Equal(t, tt.code, apperr.CodeOf(tt.err))
		})
	}
}

func TestRegister_PasswordLength(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  error
	}{
		{"8 ascii characters", "password", nil},
		{"7 ascii characters", "1234567", auth.ErrPasswordTooShort},
		{"8 hangul characters", "안녕하세요비밀번", nil},
		{"4 hangul characters is 12 bytes but too short", "비밀번호", auth.ErrPasswordTooShort},
		{"72 bytes", strings.Repeat("a", 72), nil},
		{"73 bytes", strings.Repeat("a", 73), auth.ErrPasswordTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := member.New("kim@example.com", tt.password, "Kim", member.RoleCustomer, registeredAt)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, m)
				return
			}
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(m.PasswordHash, "$2a$12$"), "bcrypt hash at cost 12")
		})
	}
}

func TestRegister_SaltsEachMember(t *testing.T) {
	a := newMember(t, "shared-password")
	b := newMember(t, "shared-password")

	assert.NotEqual(t, a.PasswordHash, b.PasswordHash)
	assert.True(t, auth.CheckPassword("shared-password", a.PasswordHash))
	assert.True(t, auth.CheckPassword("shared-password", b.PasswordHash))
}

// ============================================
// Re-authentication Tests
// ============================================

func TestWithdraw_ReauthenticatesAgainstStoredHash(t *testing.T) {
	m := newMember(t, "Password123")

	for _, wrong := range []string{"password123", "PASSWORD123", "", "Password123 "} {
		_, err := m.Withdraw(wrong, registeredAt)
		assert.ErrorIs(t, err, member.ErrInvalidCredentials, "password %q", wrong)
	}

	out, err := m.Withdraw("Password123", registeredAt)
	require.NoError(t, err)
	assert.Equal(t, member.StatusWithdrawn, out.Status)
}

func TestWithdraw_CorruptHashNeverMatches(t *testing.T) {
	for _, hash := range []string{"", "invalid-hash", "$2a$12$truncated"} {
		m := newMember(t, "password123")
		m.PasswordHash = hash

		_, err := m.Withdraw("password123", registeredAt)
		assert.ErrorIs(t, err, member.ErrInvalidCredentials, "hash %q", hash)
	}
}
