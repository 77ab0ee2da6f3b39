package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrUserNotFound is returned by repositories when no record matches.
var ErrUserNotFound = errors.New("user not found")

// UserRecord represents a user as stored in the persistence layer.
type UserRecord struct {
	ID           int64     `yaml:"id"`
	Email        string    `yaml:"email"`
	PasswordHash string    `yaml:"password_hash"`
	DisplayName  string    `yaml:"name"`
	Role         string    `yaml:"role"`
	CreatedAt    time.Time `yaml:"-"`
}

// UserRepository defines read access to user records.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*UserRecord, error)
	FindByID(ctx context.Context, id int64) (*UserRecord, error)
}

// MemoryUserRepository is an in-process user list, read-only once constructed.
type MemoryUserRepository struct {
	byEmail map[string]*UserRecord
	byID    map[int64]*UserRecord
}

// NewMemoryUserRepository indexes users by email and id.
// Duplicate emails or ids are rejected so lookups return at most one record.
func NewMemoryUserRepository(users ...UserRecord) (*MemoryUserRepository, error) {
	r := &MemoryUserRepository{
		byEmail: make(map[string]*UserRecord, len(users)),
		byID:    make(map[int64]*UserRecord, len(users)),
	}
	for i := range users {
		if err := r.add(users[i]); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *MemoryUserRepository) add(u UserRecord) error {
	if strings.TrimSpace(u.Email) == "" {
		return fmt.Errorf("user %d: email is empty", u.ID)
	}
	if _, dup := r.byEmail[u.Email]; dup {
		return fmt.Errorf("duplicate user email %q", u.Email)
	}
	if _, dup := r.byID[u.ID]; dup {
		return fmt.Errorf("duplicate user id %d", u.ID)
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	rec := u
	r.byEmail[rec.Email] = &rec
	r.byID[rec.ID] = &rec
	return nil
}

func (r *MemoryUserRepository) FindByEmail(_ context.Context, email string) (*UserRecord, error) {
	u, ok := r.byEmail[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *MemoryUserRepository) FindByID(_ context.Context, id int64) (*UserRecord, error) {
	u, ok := r.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

// Len reports the number of seeded users.
func (r *MemoryUserRepository) Len() int {
	return len(r.byID)
}

// PgUserRepository implements UserRepository using pgxpool.
type PgUserRepository struct {
	db *pgxpool.Pool
}

func NewPgUserRepository(db *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{db: db}
}

const userColumns = `id, email, password_hash, display_name, role, created_at`

func (r *PgUserRepository) FindByEmail(ctx context.Context, email string) (*UserRecord, error) {
	return r.scanOne(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, email)
}

func (r *PgUserRepository) FindByID(ctx context.Context, id int64) (*UserRecord, error) {
	return r.scanOne(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id)
}

func (r *PgUserRepository) scanOne(ctx context.Context, q string, arg any) (*UserRecord, error) {
	var u UserRecord
	err := r.db.QueryRow(ctx, q, arg).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &u.Role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// Create inserts a user and returns its id. A positive u.ID is stored as is and
// the id sequence is moved past it; otherwise the sequence assigns the id.
func (r *PgUserRepository) Create(ctx context.Context, u UserRecord) (int64, error) {
	if u.ID <= 0 {
		const q = `INSERT INTO users (email, password_hash, display_name, role) VALUES ($1,$2,$3,$4) RETURNING id`
		var id int64
		if err := r.db.QueryRow(ctx, q, u.Email, u.PasswordHash, u.DisplayName, u.Role).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}

	const q = `INSERT INTO users (id, email, password_hash, display_name, role) VALUES ($1,$2,$3,$4,$5)`
	if _, err := r.db.Exec(ctx, q, u.ID, u.Email, u.PasswordHash, u.DisplayName, u.Role); err != nil {
		return 0, err
	}
	const bump = `SELECT setval(pg_get_serial_sequence('users', 'id'), (SELECT MAX(id) FROM users))`
	if _, err := r.db.Exec(ctx, bump); err != nil {
		return 0, fmt.Errorf("advance users id sequence: %w", err)
	}
	return u.ID, nil
}

// Count returns the number of stored users.
func (r *PgUserRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
