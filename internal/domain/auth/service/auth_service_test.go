package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTokenManager_RequiresSecret(t *testing.T) {
	_, err := NewTokenManager(nil, time.Hour)
	assert.Error(t, err)
}

func TestTokenManager_RoundTrip(t *testing.T) {
	m, err := NewTokenManager([]byte("s3cret"), time.Hour)
	require.NoError(t, err)

	token, err := m.Generate("ops@example.test", RoleAdmin)
	require.NoError(t, err)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, claims.Role)
	assert.Equal(t, "ops@example.test", claims.Subject)
	assert.NotEmpty(t, claims.ID)
}

func TestTokenManager_Validate(t *testing.T) {
	m, err := NewTokenManager([]byte("s3cret"), time.Hour)
	require.NoError(t, err)
	other, err := NewTokenManager([]byte("different"), time.Hour)
	require.NoError(t, err)

	expired, err := NewTokenManager([]byte("s3cret"), time.Minute)
	require.NoError(t, err)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	foreign, err := other.Generate("x", RoleAdmin)
	require.NoError(t, err)
	stale, err := expired.Generate("x", RoleAdmin)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"empty", "", ErrMissingToken},
		{"garbage", "not.a.jwt", ErrInvalidToken},
		{"wrong secret", foreign, ErrInvalidToken},
		{"expired", stale, ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Validate(tt.token)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAuthService_Authorize(t *testing.T) {
	m, err := NewTokenManager([]byte("s3cret"), time.Hour)
	require.NoError(t, err)
	svc := NewAuthService(m)

	admin, err := m.Generate("ops", RoleAdmin)
	require.NoError(t, err)
	viewer, err := m.Generate("guest", "viewer")
	require.NoError(t, err)

	tests := []struct {
		name    string
		header  string
		wantErr error
	}{
		{"admin", "Bearer " + admin, nil},
		{"no scheme", admin, ErrMissingToken},
		{"empty", "", ErrMissingToken},
		{"wrong role", "Bearer " + viewer, ErrForbidden},
		{"bad token", "Bearer abc", ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := svc.Authorize(context.Background(), tt.header, RoleAdmin)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "ops", claims.Subject)
		})
	}
}
