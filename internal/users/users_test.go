package users

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/models"
)

func TestNewUser(t *testing.T) {
	now := time.Now()
	u := New(" Rahim ", " Rahim@Example.COM ", " 017 ", "hash", now)

	assert.Equal(t, "Rahim", u.Name)
	assert.Equal(t, "rahim@example.com", u.Email)
	assert.Equal(t, "017", u.Phone)
	assert.Equal(t, models.RoleUser, u.Role)
	assert.NotNil(t, u.Cart)
	assert.NotNil(t, u.Orders)
	assert.False(t, u.ID.IsZero())
}

func TestProfileUpdateSet(t *testing.T) {
	now := time.Now()
	city := " Chattogram "
	set, err := ProfileUpdate{City: &city}.Set(now)
	require.NoError(t, err)
	assert.Equal(t, "Chattogram", set["city"])
	assert.Equal(t, now, set["updatedAt"])

	empty := "  "
	_, err = ProfileUpdate{Name: &empty}.Set(now)
	assert.Error(t, err)

	_, err = ProfileUpdate{}.Set(now)
	assert.Error(t, err)

	set, err = ProfileUpdate{Address: &empty}.Set(now)
	require.NoError(t, err)
	assert.Equal(t, "", set["address"])
}
