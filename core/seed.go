package core

import (
	"context"
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

// DemoUser builds the single seeded demo account.
func DemoUser(cfg Config) UserRecord {
	return UserRecord{
		ID:           1,
		Email:        cfg.DemoUserEmail,
		PasswordHash: cfg.DemoUserPasswordHash,
		DisplayName:  "Demo User",
		Role:         "User",
	}
}

type usersFile struct {
	Users []UserRecord `yaml:"users"`
}

// LoadUsersFile reads additional seed users from a YAML document of the form:
//
//	users:
//	  - email: alice@example.com
//	    password_hash: $2a$10$...
//	    name: Alice
//	    role: Admin
func LoadUsersFile(path string) ([]UserRecord, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read users file %s: %w", path, err)
	}
	var doc usersFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse users file %s: %w", path, err)
	}
	for i, u := range doc.Users {
		if u.Email == "" || u.PasswordHash == "" {
			return nil, fmt.Errorf("users file %s: entry %d needs email and password_hash", path, i)
		}
	}
	return doc.Users, nil
}

// SeedUsers returns the demo user followed by any users from cfg.UsersFile.
// Entries without an id are numbered after the highest id seen so far.
func SeedUsers(cfg Config) ([]UserRecord, error) {
	users := []UserRecord{DemoUser(cfg)}
	if cfg.UsersFile == "" {
		return users, nil
	}
	extra, err := LoadUsersFile(cfg.UsersFile)
	if err != nil {
		return nil, err
	}
	next := int64(1)
	for _, u := range append(users, extra...) {
		if u.ID >= next {
			next = u.ID + 1
		}
	}
	for _, u := range extra {
		if u.ID == 0 {
			u.ID = next
			next++
		}
		if u.Role == "" {
			u.Role = "User"
		}
		users = append(users, u)
	}
	return users, nil
}

type userSeeder interface {
	Count(ctx context.Context) (int, error)
	Create(ctx context.Context, u UserRecord) (int64, error)
}

// BootstrapUsers inserts the seed users when the users table is empty.
// It is idempotent: a populated table is left untouched.
func BootstrapUsers(ctx context.Context, repo userSeeder, users []UserRecord) error {
	n, err := repo.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	for _, u := range users {
		id, err := repo.Create(ctx, u)
		if err != nil {
			return fmt.Errorf("seed user %s: %w", u.Email, err)
		}
		log.Printf("seeded user id=%d email=%s", id, u.Email)
	}
	return nil
}
