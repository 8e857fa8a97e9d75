package repository

import (
	"context"
	"strings"

	"github.com/iliyamo/notes-marketplace/internal/dbx"
	"github.com/iliyamo/notes-marketplace/internal/model"
)

type UserRepo struct{ db dbx.DBTX }

func NewUserRepo(db dbx.DBTX) *UserRepo { return &UserRepo{db: db} }

const userColumns = "id,email,password_hash,name,university,created_at,updated_at"

// Create inserts u and sets its ID. The password must already be hashed.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, name, university) VALUES (?,?,?,?)",
		u.Email, u.PasswordHash, u.Name, u.University)
	if err != nil {
		return translate("insert user", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return translate("insert user", err)
	}
	u.ID = uint64(id)
	return nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.scanOne(ctx, "get user by email",
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.scanOne(ctx, "get user",
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
}

// LockByID fetches a user with a row lock held until the surrounding
// transaction ends. Withdrawals use it to serialize per user.
func (r *UserRepo) LockByID(ctx context.Context, id uint64) (model.User, error) {
	return r.scanOne(ctx, "lock user",
		"SELECT "+userColumns+" FROM users WHERE id=? FOR UPDATE", id)
}

func (r *UserRepo) UpdateProfile(ctx context.Context, id uint64, name, university string) error {
	return r.execOne(ctx, "update profile",
		"UPDATE users SET name=?, university=? WHERE id=?", name, university, id)
}

func (r *UserRepo) UpdatePassword(ctx context.Context, id uint64, hash string) error {
	return r.execOne(ctx, "update password",
		"UPDATE users SET password_hash=? WHERE id=?", hash, id)
}

func (r *UserRepo) scanOne(ctx context.Context, op, q string, args ...any) (model.User, error) {
	var u model.User
	err := r.db.QueryRowContext(ctx, q, args...).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.University, &u.CreatedAt, &u.UpdatedAt)
	return u, translate(op, err)
}

// execOne runs a single-row UPDATE. RowsAffected is not checked since
// MySQL reports 0 for an update that changes nothing.
func (r *UserRepo) execOne(ctx context.Context, op, q string, args ...any) error {
	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		return translate(op, err)
	}
	return nil
}
