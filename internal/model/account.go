package model

import "time"

// Account represents a row in the `accounts` table.  The OTP fields hold
// the single outstanding one-time passcode of the account; writing a new
// code replaces the previous one, and consuming it clears both fields.
//
// Fields:
//  ID            – UUID primary key.
//  Name          – display name supplied at registration.
//  Username      – unique handle.
//  Email         – unique, lower-cased email address.
//  PhoneNumber   – unique phone number (may be empty).
//  PasswordHash  – bcrypt hash of the current password.
//  Role          – user, admin or super_admin.
//  Status        – pending, approved, rejected or suspended.
//  EmailVerified – set once the registration OTP has been confirmed.
//  OTP           – outstanding one-time passcode (nil when none).
//  OTPExpiry     – instant after which OTP is no longer accepted.
//  LastLogin     – time of the last successful login.
type Account struct {
	ID            string     `db:"id"`
	Name          string     `db:"name"`
	Username      string     `db:"username"`
	Email         string     `db:"email"`
	PhoneNumber   string     `db:"phone_number"`
	PasswordHash  string     `db:"password_hash"`
	Role          Role       `db:"role"`
	Status        Status     `db:"status"`
	EmailVerified bool       `db:"email_verified"`
	OTP           *string    `db:"otp"`
	OTPExpiry     *time.Time `db:"otp_expiry"`
	LastLogin     *time.Time `db:"last_login"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
}

// CanAuthor reports whether the account may publish content.
func (a Account) CanAuthor() bool { return a.Status == StatusApproved }

// Status is the moderation state of an account.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusSuspended Status = "suspended"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusSuspended:
		return true
	}
	return false
}

// Blocked reports whether the status denies access to protected resources.
func (s Status) Blocked() bool { return s == StatusRejected || s == StatusSuspended }
