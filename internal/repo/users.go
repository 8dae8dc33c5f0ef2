package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, name, gender, username, email, password_hash, wa_id, number, push_name,
is_admin, is_partner, state, last_command, partner_id, active, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Gender, &u.Username, &u.Email, &u.PasswordHash,
		&u.WAID, &u.Number, &u.PushName, &u.IsAdmin, &u.IsPartner, &u.State,
		&u.LastCommand, &u.PartnerID, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// CreateUser stores a new user record.
func (s *PostgresStore) CreateUser(ctx context.Context, user User) (*User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	const q = `
INSERT INTO users (id, name, gender, username, email, password_hash, wa_id, number, push_name,
    is_admin, is_partner, state, last_command, partner_id, active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
RETURNING ` + userColumns + `;
`
	row := s.pool.QueryRow(ctx, q,
		user.ID, user.Name, user.Gender, user.Username, user.Email, user.PasswordHash,
		user.WAID, user.Number, user.PushName, user.IsAdmin, user.IsPartner,
		user.State, user.LastCommand, user.PartnerID, user.Active,
	)
	created, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

// GetUserByID returns a user by internal identifier.
func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (*User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id = $1 LIMIT 1;`
	u, err := scanUser(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

// FindUserByWAID returns the active user with the given external WhatsApp id.
func (s *PostgresStore) FindUserByWAID(ctx context.Context, waid string) (*User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE wa_id = $1 AND active LIMIT 1;`
	u, err := scanUser(s.pool.QueryRow(ctx, q, waid))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by wa id: %w", err)
	}
	return u, nil
}

// FindAdminByWAID returns the active admin user with the given external id.
func (s *PostgresStore) FindAdminByWAID(ctx context.Context, waid string) (*User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE wa_id = $1 AND is_admin AND active LIMIT 1;`
	u, err := scanUser(s.pool.QueryRow(ctx, q, waid))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("find admin by wa id: %w", err)
	}
	return u, nil
}

// FindUserByNumber returns the active user registered with the phone number.
func (s *PostgresStore) FindUserByNumber(ctx context.Context, number string) (*User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE number = $1 AND active LIMIT 1;`
	u, err := scanUser(s.pool.QueryRow(ctx, q, number))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by number: %w", err)
	}
	return u, nil
}

// FindUserByUsername returns the active user holding the username.
func (s *PostgresStore) FindUserByUsername(ctx context.Context, username string) (*User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE username = $1 AND active LIMIT 1;`
	u, err := scanUser(s.pool.QueryRow(ctx, q, username))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by username: %w", err)
	}
	return u, nil
}

// FindUserByEmail returns the active user holding the email address.
func (s *PostgresStore) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE email = $1 AND active LIMIT 1;`
	u, err := scanUser(s.pool.QueryRow(ctx, q, email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return u, nil
}

// UpdateUser persists mutable user fields.
func (s *PostgresStore) UpdateUser(ctx context.Context, user *User) error {
	const q = `
UPDATE users
SET name = $2, gender = $3, username = $4, email = $5, state = $6,
    last_command = $7, partner_id = $8, is_admin = $9, is_partner = $10,
    updated_at = NOW()
WHERE id = $1;
`
	ct, err := s.pool.Exec(ctx, q,
		user.ID, user.Name, user.Gender, user.Username, user.Email, user.State,
		user.LastCommand, user.PartnerID, user.IsAdmin, user.IsPartner,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("update user %s: %w", user.ID, ErrNotFound)
	}
	return nil
}

// UpdateUserState transitions the state field only when it still holds the
// expected value.
func (s *PostgresStore) UpdateUserState(ctx context.Context, id string, from, to UserState) (bool, error) {
	const q = `UPDATE users SET state = $3, updated_at = NOW() WHERE id = $1 AND state = $2;`
	ct, err := s.pool.Exec(ctx, q, id, from, to)
	if err != nil {
		return false, fmt.Errorf("update user state: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// SetUserPartner flips the partner flag on a user.
func (s *PostgresStore) SetUserPartner(ctx context.Context, id string, isPartner bool) error {
	const q = `UPDATE users SET is_partner = $2, updated_at = NOW() WHERE id = $1;`
	ct, err := s.pool.Exec(ctx, q, id, isPartner)
	if err != nil {
		return fmt.Errorf("set user partner: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("set user partner %s: %w", id, ErrNotFound)
	}
	return nil
}

// ToggleUserActive flips the soft-delete marker on a user.
func (s *PostgresStore) ToggleUserActive(ctx context.Context, id string) error {
	const q = `UPDATE users SET active = NOT active, updated_at = NOW() WHERE id = $1;`
	ct, err := s.pool.Exec(ctx, q, id)
	if err != nil {
		return fmt.Errorf("toggle user active: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("toggle user active %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListAdmins returns all active admin users.
func (s *PostgresStore) ListAdmins(ctx context.Context) ([]User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE is_admin AND active ORDER BY created_at;`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	defer rows.Close()

	var admins []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan admin: %w", err)
		}
		admins = append(admins, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate admins: %w", err)
	}
	return admins, nil
}
