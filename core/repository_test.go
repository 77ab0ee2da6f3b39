package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryUserRepositoryRejectsDuplicates(t *testing.T) {
	_, err := NewMemoryUserRepository(
		UserRecord{ID: 1, Email: "a@example.com"},
		UserRecord{ID: 2, Email: "a@example.com"},
	)
	assert.Error(t, err)

	_, err = NewMemoryUserRepository(
		UserRecord{ID: 1, Email: "a@example.com"},
		UserRecord{ID: 1, Email: "b@example.com"},
	)
	assert.Error(t, err)

	_, err = NewMemoryUserRepository(UserRecord{ID: 1})
	assert.Error(t, err)
}

func TestMemoryUserRepositoryReturnsCopies(t *testing.T) {
	repo, err := NewMemoryUserRepository(UserRecord{ID: 1, Email: "a@example.com", Role: "User"})
	require.NoError(t, err)

	u, err := repo.FindByID(context.Background(), 1)
	require.NoError(t, err)
	u.Role = "Admin"

	again, err := repo.FindByEmail(context.Background(), "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "User", again.Role)
	assert.False(t, again.CreatedAt.IsZero())
}

func writeUsersFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestSeedUsersWithFile(t *testing.T) {
	path := writeUsersFile(t, `
users:
  - email: alice@example.com
    password_hash: "$2a$04$abcdefghijklmnopqrstuuJ0m1n2o3p4q5r6s7t8u9v0w1x2y3z4a"
    name: Alice
    role: Admin
  - id: 10
    email: bob@example.com
    password_hash: "$2a$04$abcdefghijklmnopqrstuuJ0m1n2o3p4q5r6s7t8u9v0w1x2y3z4b"
  - email: carol@example.com
    password_hash: "$2a$04$abcdefghijklmnopqrstuuJ0m1n2o3p4q5r6s7t8u9v0w1x2y3z4c"
`)
	cfg := Config{DemoUserEmail: demoEmail, DemoUserPasswordHash: DefaultDemoPasswordHash, UsersFile: path}

	users, err := SeedUsers(cfg)
	require.NoError(t, err)
	require.Len(t, users, 4)

	assert.Equal(t, int64(1), users[0].ID)
	assert.Equal(t, demoEmail, users[0].Email)
	assert.Equal(t, "Demo User", users[0].DisplayName)

	assert.Equal(t, int64(11), users[1].ID)
	assert.Equal(t, "Admin", users[1].Role)
	assert.Equal(t, "Alice", users[1].DisplayName)
	assert.Equal(t, int64(10), users[2].ID)
	assert.Equal(t, "User", users[2].Role)
	assert.Equal(t, int64(12), users[3].ID)

	repo, err := NewMemoryUserRepository(users...)
	require.NoError(t, err)
	assert.Equal(t, 4, repo.Len())
}

func TestLoadUsersFileErrors(t *testing.T) {
	_, err := LoadUsersFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadUsersFile(writeUsersFile(t, "users: [::"))
	assert.Error(t, err)

	_, err = LoadUsersFile(writeUsersFile(t, "users:\n  - email: x@example.com\n"))
	assert.Error(t, err)
}

type fakeSeeder struct {
	count   int
	created []UserRecord
}

func (f *fakeSeeder) Count(context.Context) (int, error) { return f.count, nil }

func (f *fakeSeeder) Create(_ context.Context, u UserRecord) (int64, error) {
	f.created = append(f.created, u)
	f.count++
	return int64(f.count), nil
}

func TestBootstrapUsersIsIdempotent(t *testing.T) {
	seeder := &fakeSeeder{}
	users := []UserRecord{{Email: "a@example.com"}, {Email: "b@example.com"}}
	ctx := context.Background()

	require.NoError(t, BootstrapUsers(ctx, seeder, users))
	require.NoError(t, BootstrapUsers(ctx, seeder, users))
	assert.Len(t, seeder.created, 2)
}
