package test_utils

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klokku/yearview/pkg/user"
	"github.com/stretchr/testify/require"
)

// CreateUser inserts a user row so tables referencing app_user can be filled. The uid is
// generated by the user service.
func CreateUser(t *testing.T, ctx context.Context, db *pgxpool.Pool, username string) user.User {
	t.Helper()
	u, err := user.NewUserService(user.NewUserRepo(db)).CreateUser(ctx, user.User{Username: username, DisplayName: username})
	require.NoError(t, err)
	return u
}
