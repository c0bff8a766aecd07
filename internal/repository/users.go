package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"drinkpoint-api/internal/model"
)

const userColumns = "id, display_name, email, role, total_points, disabled, created_at, updated_at"

func scanUser(row interface{ Scan(...interface{}) error }) (*model.User, error) {
	var (
		u                    model.User
		createdAt, updatedAt int64
	)
	if err := row.Scan(&u.ID, &u.DisplayName, &u.Email, &u.Role, &u.TotalPoints, &u.Disabled, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return &u, nil
}

// GetOrCreateUser provisions the user on first sight. Concurrent callers race on
// the primary key and all observe the same row.
func (s *SQLStore) GetOrCreateUser(ctx context.Context, u model.User) (*model.User, bool, error) {
	if u.ID == "" {
		return nil, false, errors.New("user id is required")
	}
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	now := toMillis(s.now())

	res, err := s.db.ExecContext(ctx,
		s.dialect.InsertIgnore("users", "id", "display_name", "email", "role", "total_points", "disabled", "created_at", "updated_at"),
		u.ID, u.DisplayName, u.Email, u.Role, 0, 0, now, now,
	)
	if err != nil {
		return nil, false, errors.Wrap(err, "insert user")
	}
	n, _ := res.RowsAffected()

	got, err := s.GetUser(ctx, u.ID)
	if err != nil {
		return nil, false, err
	}
	return got, n > 0, nil
}

// GetUser returns ErrNotFound for unknown ids.
func (s *SQLStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, s.q("SELECT "+userColumns+" FROM users WHERE id = ?"), id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get user")
	}
	return u, nil
}

// ListUsers orders users by points, highest first.
func (s *SQLStore) ListUsers(ctx context.Context, query string, page Page) ([]model.User, int64, error) {
	page = page.Normalize()

	where := ""
	var args []interface{}
	if q := strings.TrimSpace(query); q != "" {
		where = " WHERE LOWER(display_name) LIKE ? OR LOWER(email) LIKE ? OR id = ?"
		like := "%" + strings.ToLower(q) + "%"
		args = append(args, like, like, q)
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, s.q("SELECT COUNT(*) FROM users"+where), args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count users")
	}

	rows, err := s.db.QueryContext(ctx,
		s.q("SELECT "+userColumns+" FROM users"+where+" ORDER BY total_points DESC, id ASC LIMIT ? OFFSET ?"),
		append(args, page.Limit, page.Offset())...,
	)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list users")
	}
	defer rows.Close()

	users := make([]model.User, 0, page.Limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, "scan user")
		}
		users = append(users, *u)
	}
	return users, total, errors.Wrap(rows.Err(), "list users")
}

// UpdateUser applies the non-nil fields of upd.
func (s *SQLStore) UpdateUser(ctx context.Context, id string, upd model.UserUpdate) (*model.User, error) {
	var (
		sets []string
		args []interface{}
	)
	if upd.DisplayName != nil {
		sets = append(sets, "display_name = ?")
		args = append(args, *upd.DisplayName)
	}
	if upd.Role != nil {
		sets = append(sets, "role = ?")
		args = append(args, *upd.Role)
	}
	if upd.Disabled != nil {
		sets = append(sets, "disabled = ?")
		args = append(args, boolInt(*upd.Disabled))
	}
	if len(sets) == 0 {
		return s.GetUser(ctx, id)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, toMillis(s.now()), id)

	res, err := s.db.ExecContext(ctx, s.q("UPDATE users SET "+strings.Join(sets, ", ")+" WHERE id = ?"), args...)
	if err != nil {
		return nil, errors.Wrap(err, "update user")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// MySQL reports zero rows when nothing changed.
		ok, err := s.exists(ctx, s.db, "users", id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrNotFound
		}
	}
	return s.GetUser(ctx, id)
}
