package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/repairdesk/internal/model"
)

// UserRepo reads the users table.  Accounts are only written by the bulk
// import; there is no interactive provisioning.
type UserRepo struct{ DB *sql.DB }

// NewUserRepo returns a UserRepo bound to the given database.
func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// FindByCredentials looks up the account whose username and password hash
// both match exactly.  It returns nil and no error when nothing matches.
// Hashing the password is the caller's concern.
func (r *UserRepo) FindByCredentials(ctx context.Context, username, passwordHash string) (*model.Identity, error) {
	var id model.Identity
	err := r.DB.QueryRowContext(ctx,
		"SELECT username, role, full_name FROM users WHERE username = ? AND password_hash = ?",
		strings.TrimSpace(username), passwordHash).Scan(&id.Username, &id.Role, &id.FullName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("find user", err)
	}
	return &id, nil
}

// GetByUsername fetches an account by username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (model.Account, error) {
	var a model.Account
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, username, password_hash, role, full_name FROM users WHERE username = ? LIMIT 1",
		strings.TrimSpace(username)).Scan(&a.ID, &a.Username, &a.PasswordHash, &a.Role, &a.FullName)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, ErrNotFound
	}
	if err != nil {
		return model.Account{}, storageErr("get user", err)
	}
	return a, nil
}

// ImportUserTx inserts a with its source ID inside tx.  Rows whose ID or
// username already exists are ignored.
func (r *UserRepo) ImportUserTx(ctx context.Context, tx *sql.Tx, a model.Account) (bool, error) {
	res, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO users (id, username, password_hash, role, full_name) VALUES (?, ?, ?, ?, ?)",
		a.ID, a.Username, a.PasswordHash, a.Role, a.FullName)
	if err != nil {
		return false, storageErr("import user", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storageErr("import user", err)
	}
	return n > 0, nil
}

// FullNameTx returns the full name of account id.  ok is false when the
// account does not exist.
func (r *UserRepo) FullNameTx(ctx context.Context, tx *sql.Tx, id int64) (name string, ok bool, err error) {
	err = tx.QueryRowContext(ctx, "SELECT full_name FROM users WHERE id = ?", id).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, storageErr("user name", err)
	}
	return name, true, nil
}
