package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"meeting-scheduler-api/internal/model"
	"meeting-scheduler-api/internal/store"
)

const userColumns = `id, name, email, password_hash, image_url, address, dob, role, created_at, updated_at`

func scanUser(row pgx.Row) (*model.User, error) {
	u := &model.User{}
	var role string
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.ImageURL,
		&u.Address, &u.DOB, &role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Role = model.Role(role)
	return u, nil
}

func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	id := uuid.NewString()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, name, email, password_hash, image_url, address, dob, role, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		id, u.Name, u.Email, u.PasswordHash, u.ImageURL, u.Address, u.DOB, string(u.Role), u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicateEmail
		}
		return fmt.Errorf("postgres.CreateUser: %w", err)
	}
	u.ID = id
	return nil
}

func (s *Store) UserByID(ctx context.Context, id string) (*model.User, error) {
	if !validID(id) {
		return nil, store.ErrNotFound
	}
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	return u, notFound(err, "postgres.UserByID")
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
	return u, notFound(err, "postgres.UserByEmail")
}

func (s *Store) UsersByIDs(ctx context.Context, ids []string) ([]model.User, error) {
	keys := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if k, err := uuid.Parse(id); err == nil {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil, nil
	}
	return s.queryUsers(ctx, `SELECT `+userColumns+` FROM users WHERE id = ANY($1)`, keys)
}

func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.queryUsers(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
}

func (s *Store) queryUsers(ctx context.Context, q string, args ...any) ([]model.User, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres.queryUsers: %w", err)
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres.queryUsers: %w", err)
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (s *Store) UpdateUser(ctx context.Context, id string, p model.ProfileUpdate) (*model.User, error) {
	if !validID(id) {
		return nil, store.ErrNotFound
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres.UpdateUser: %w", err)
	}
	defer tx.Rollback(ctx)

	// lock the row so concurrent partial updates do not drop each other's fields
	u, err := scanUser(tx.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, "postgres.UpdateUser")
	}
	store.ApplyProfile(u, p)

	_, err = tx.Exec(ctx,
		`UPDATE users SET name=$1, address=$2, image_url=$3, dob=$4, updated_at=$5 WHERE id=$6`,
		u.Name, u.Address, u.ImageURL, u.DOB, u.UpdatedAt, id,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres.UpdateUser: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("postgres.UpdateUser: %w", err)
	}
	return u, nil
}

func notFound(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return store.ErrNotFound
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
