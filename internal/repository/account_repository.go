package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/blog-platform/internal/model"
)

// OTPEffect lists the changes applied together with a successful OTP
// consumption.  Zero values leave the account untouched apart from
// clearing the OTP fields.
type OTPEffect struct {
	MarkEmailVerified bool
	PasswordHash      string
}

const accountColumns = `id, name, username, email, COALESCE(phone_number, '') AS phone_number,
	password_hash, role, status, email_verified, otp, otp_expiry, last_login, created_at, updated_at`

// AccountRepo stores accounts in the MySQL `accounts` table.
type AccountRepo struct{ db *sqlx.DB }

// NewAccountRepo wraps an open MySQL handle.
func NewAccountRepo(db *sql.DB) *AccountRepo {
	return &AccountRepo{db: sqlx.NewDb(db, "mysql")}
}

// Create inserts a new account.  Email and username are expected to be
// normalised by the caller.
func (r *AccountRepo) Create(ctx context.Context, a *model.Account) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, name, username, email, phone_number, password_hash, role, status,
			email_verified, otp, otp_expiry)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		a.ID, a.Name, a.Username, a.Email, nullString(a.PhoneNumber), a.PasswordHash,
		a.Role, a.Status, a.EmailVerified, a.OTP, utcPtr(a.OTPExpiry))
	return mapWriteError(err)
}

// Delete removes an account.  Deleting a missing account is not an error.
func (r *AccountRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM accounts WHERE id=?", id)
	return err
}

// GetByID fetches an account by id.
func (r *AccountRepo) GetByID(ctx context.Context, id string) (model.Account, error) {
	return r.getOne(ctx, "id", id)
}

// GetByUsername fetches an account by its exact username.
func (r *AccountRepo) GetByUsername(ctx context.Context, username string) (model.Account, error) {
	return r.getOne(ctx, "username", username)
}

// GetByEmail fetches an account by normalised email.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (model.Account, error) {
	return r.getOne(ctx, "email", strings.ToLower(strings.TrimSpace(email)))
}

func (r *AccountRepo) getOne(ctx context.Context, column, value string) (model.Account, error) {
	var a model.Account
	err := r.db.GetContext(ctx, &a, "SELECT "+accountColumns+" FROM accounts WHERE "+column+"=? LIMIT 1", value)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, ErrNotFound
	}
	return a, err
}

// UpdateLastLogin records a successful login.  Concurrent logins race
// freely; the last write wins.
func (r *AccountRepo) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, "UPDATE accounts SET last_login=? WHERE id=?", at.UTC(), id)
	return err
}

// SetOTP replaces the outstanding OTP of an account.
func (r *AccountRepo) SetOTP(ctx context.Context, id, code string, expiry time.Time) error {
	res, err := r.db.ExecContext(ctx, "UPDATE accounts SET otp=?, otp_expiry=? WHERE id=?", code, expiry.UTC(), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ConsumeOTP clears the OTP of an account if, and only if, it equals code
// and has not expired at now.  The check, the clearing and the effect are
// one UPDATE statement, so at most one caller can consume a given code.
func (r *AccountRepo) ConsumeOTP(ctx context.Context, id, code string, now time.Time, effect OTPEffect) (bool, error) {
	set := []string{"otp=NULL", "otp_expiry=NULL"}
	args := []any{}
	if effect.MarkEmailVerified {
		set = append(set, "email_verified=1")
	}
	if effect.PasswordHash != "" {
		set = append(set, "password_hash=?")
		args = append(args, effect.PasswordHash)
	}
	args = append(args, id, code, now.UTC())
	res, err := r.db.ExecContext(ctx,
		"UPDATE accounts SET "+strings.Join(set, ", ")+" WHERE id=? AND otp=? AND otp_expiry>=?", args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// UpdateStatus moves an account from one status to another.  It reports
// false when the stored status no longer equals from.
func (r *AccountRepo) UpdateStatus(ctx context.Context, id string, from, to model.Status) (bool, error) {
	return r.compareAndSet(ctx, "status", id, string(from), string(to))
}

// UpdateRole changes the role of an account under the same
// compare-and-set rule as UpdateStatus.
func (r *AccountRepo) UpdateRole(ctx context.Context, id string, from, to model.Role) (bool, error) {
	return r.compareAndSet(ctx, "role", id, string(from), string(to))
}

func (r *AccountRepo) compareAndSet(ctx context.Context, column, id, from, to string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE accounts SET "+column+"=? WHERE id=? AND "+column+"=?", to, id, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// mapWriteError turns MySQL duplicate-key errors (1062) into the
// field-specific conflict errors.
func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) || myErr.Number != 1062 {
		return err
	}
	msg := strings.ToLower(myErr.Message)
	switch {
	case strings.Contains(msg, "uq_accounts_email"):
		return ErrDuplicateEmail
	case strings.Contains(msg, "uq_accounts_username"):
		return ErrDuplicateUsername
	case strings.Contains(msg, "uq_accounts_phone"):
		return ErrDuplicatePhone
	}
	return ErrConflict
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func utcPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
