package accounts

import (
	"context"
	"testing"

	"github.com/atharvakonge/paper-trading-simulator/internal/logger"
	"github.com/atharvakonge/paper-trading-simulator/internal/models"
	"github.com/atharvakonge/paper-trading-simulator/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newService() (*Service, *store.Memory) {
	st := store.NewMemory()
	return NewService(st, logger.Discard()).WithHashCost(bcrypt.MinCost), st
}

func TestRegister_Success(t *testing.T) {
	svc, _ := newService()

	u, err := svc.Register(context.Background(), models.RegisterRequest{
		Username: "alice", Email: "Alice@Example.com", Password: "secret1",
	})
	require.NoError(t, err)
	assert.NotZero(t, u.ID)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.Equal(t, models.RoleUser, u.Role)
	assert.True(t, u.IsActive)
	assert.True(t, u.Balance.Equal(models.InitialBalance))
	assert.NotEqual(t, "secret1", u.PasswordHash)
}

func TestRegister_Validation(t *testing.T) {
	svc, _ := newService()
	tests := []struct {
		name string
		req  models.RegisterRequest
	}{
		{"short username", models.RegisterRequest{Username: "ab", Email: "a@b.c", Password: "secret1"}},
		{"short password", models.RegisterRequest{Username: "alice", Email: "a@b.c", Password: "123"}},
		{"bad email", models.RegisterRequest{Username: "alice", Email: "nope", Password: "secret1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.req)
			assert.ErrorIs(t, err, models.ErrInvalidArgument)
		})
	}
}

func TestRegister_Duplicates(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	_, err := svc.Register(ctx, models.RegisterRequest{Username: "alice", Email: "alice@x.io", Password: "secret1"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, models.RegisterRequest{Username: "alice", Email: "other@x.io", Password: "secret1"})
	assert.ErrorIs(t, err, models.ErrConflict)

	_, err = svc.Register(ctx, models.RegisterRequest{Username: "bob", Email: "ALICE@x.io", Password: "secret1"})
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestAuthenticate(t *testing.T) {
	svc, st := newService()
	ctx := context.Background()
	u, err := svc.Register(ctx, models.RegisterRequest{Username: "alice", Email: "alice@x.io", Password: "secret1"})
	require.NoError(t, err)

	got, err := svc.Authenticate(ctx, "alice", "secret1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = svc.Authenticate(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
	_, err = svc.Authenticate(ctx, "nobody", "secret1")
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	hash, err := bcrypt.GenerateFromPassword([]byte("secret2"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, st.InTx(ctx, func(tx store.Tx) error {
		_, err := tx.CreateUser(ctx, models.User{
			Username: "dormant", Email: "dormant@x.io", PasswordHash: string(hash),
			Balance: models.InitialBalance, Role: models.RoleUser, IsActive: false,
		})
		return err
	}))
	_, err = svc.Authenticate(ctx, "dormant", "secret2")
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestEnsureAdmin_CreatesOnce(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	req := models.RegisterRequest{Username: "admin", Email: "admin@tradingsim.com", Password: "admin123"}

	u, created, err := svc.EnsureAdmin(ctx, req)
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, u.IsAdmin())

	again, created, err := svc.EnsureAdmin(ctx, req)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, u.ID, again.ID)
}
