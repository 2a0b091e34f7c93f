package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/escrow/internal/errors"
)

func TestParseGrants(t *testing.T) {
	t.Run("Success_NormalizesAndDeduplicates", func(t *testing.T) {
		grants, err := ParseGrants([]byte(`{"FileVault":["retrieve","SEARCH","retrieve"],"luks":[]}`))
		require.NoError(t, err)

		assert.Equal(t, []Permission{PermissionRetrieve, PermissionSearch}, grants["filevault"])
		assert.Empty(t, grants["luks"])
		assert.True(t, grants.Has("filevault", PermissionSearch))
		assert.False(t, grants.Has("filevault", PermissionMaster))
		assert.False(t, grants.Has("bitlocker", PermissionRetrieve))
	})

	t.Run("Success_Empty", func(t *testing.T) {
		grants, err := ParseGrants(nil)
		require.NoError(t, err)
		assert.Empty(t, grants)
	})

	t.Run("Error_UnknownPermission", func(t *testing.T) {
		_, err := ParseGrants([]byte(`{"filevault":["READ"]}`))
		assert.ErrorIs(t, err, ErrUnknownPermission)
		assert.True(t, errors.Is(err, errors.ErrInvalidInput))
	})

	t.Run("Error_InvalidJSON", func(t *testing.T) {
		_, err := ParseGrants([]byte(`["RETRIEVE"]`))
		assert.Error(t, err)
	})
}

func TestClient_IsLocked(t *testing.T) {
	now := time.Now().UTC()
	future := now.Add(time.Minute)
	past := now.Add(-time.Minute)

	assert.False(t, (&Client{}).IsLocked(now))
	assert.True(t, (&Client{LockedUntil: &future}).IsLocked(now))
	assert.False(t, (&Client{LockedUntil: &past}).IsLocked(now))
}

func TestClient_PrincipalID(t *testing.T) {
	assert.Equal(t, "alice@example.com", (&Client{Name: "alice@example.com"}).PrincipalID())
}

func TestToken_IsValid(t *testing.T) {
	now := time.Now().UTC()
	revoked := now.Add(-time.Second)

	assert.True(t, (&Token{ExpiresAt: now.Add(time.Hour)}).IsValid(now))
	assert.False(t, (&Token{ExpiresAt: now.Add(-time.Hour)}).IsValid(now))
	assert.False(t, (&Token{ExpiresAt: now.Add(time.Hour), RevokedAt: &revoked}).IsValid(now))
}

func TestParsePermission(t *testing.T) {
	for _, p := range AllPermissions {
		parsed, err := ParsePermission(string(p))
		require.NoError(t, err)
		assert.Equal(t, p, parsed)
	}

	parsed, err := ParsePermission(" retrieve_own ")
	require.NoError(t, err)
	assert.Equal(t, PermissionRetrieveOwn, parsed)

	_, err = ParsePermission("delete")
	assert.ErrorIs(t, err, ErrUnknownPermission)
}
