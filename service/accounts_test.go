package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"forum/auth"
	"forum/models"
	"forum/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newAccounts() (*Accounts, *auth.Issuer, *memory.Store) {
	store := memory.New()
	issuer := auth.NewIssuer("test-secret", time.Hour)
	a := NewAccounts(store, issuer)
	a.Cost = bcrypt.MinCost
	return a, issuer, store
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	a, issuer, _ := newAccounts()

	token, err := a.Register(ctx, "carol@example.com", "hunter22")
	require.NoError(t, err)

	id, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "carol@example.com", id.Email)

	user, err := a.Resolve(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "carol", user.Name)
	assert.NotEqual(t, "hunter22", user.PasswordHash)

	token, err = a.Login(ctx, "carol@example.com", "hunter22")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	profile, err := a.Profile(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "carol", profile.Name)
}

func TestRegisterRejects(t *testing.T) {
	ctx := context.Background()
	a, _, _ := newAccounts()

	_, err := a.Register(ctx, "not-an-email", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = a.Register(ctx, "dave@example.com", "short")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = a.Register(ctx, "dave@example.com", "hunter22")
	require.NoError(t, err)
	_, err = a.Register(ctx, "dave@example.com", "another1")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestLoginFailures(t *testing.T) {
	ctx := context.Background()
	a, _, _ := newAccounts()
	_, err := a.Register(ctx, "erin@example.com", "hunter22")
	require.NoError(t, err)

	_, err = a.Login(ctx, "erin@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = a.Login(ctx, "nobody@example.com", "hunter22")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestResolveUnknownIdentity(t *testing.T) {
	a, _, _ := newAccounts()
	_, err := a.Resolve(context.Background(), auth.Identity{UserID: "ghost", Email: "ghost@example.com"})
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = a.Profile(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	a, _, store := newAccounts()
	_, err := a.Register(ctx, "frank@example.com", "hunter22")
	require.NoError(t, err)
	user, err := store.FindUserByEmail(ctx, "frank@example.com")
	require.NoError(t, err)

	name, bio := "  Frank  ", "writes about Go"
	profile, err := a.UpdateProfile(ctx, user.ID, models.ProfileUpdate{Name: &name, Bio: &bio})
	require.NoError(t, err)
	assert.Equal(t, models.Author{ID: user.ID, Name: "Frank", Bio: "writes about Go"}, profile)

	blank := " "
	_, err = a.UpdateProfile(ctx, user.ID, models.ProfileUpdate{Name: &blank})
	assert.ErrorIs(t, err, ErrInvalidInput)

	long := strings.Repeat("b", MaxBioLength+1)
	_, err = a.UpdateProfile(ctx, user.ID, models.ProfileUpdate{Bio: &long})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = a.UpdateProfile(ctx, "ghost", models.ProfileUpdate{Name: &name})
	assert.ErrorIs(t, err, ErrNotFound)

	unchanged, err := a.UpdateProfile(ctx, user.ID, models.ProfileUpdate{})
	require.NoError(t, err)
	assert.Equal(t, "Frank", unchanged.Name)
}
