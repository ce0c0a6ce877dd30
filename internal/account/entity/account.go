package entity

import "time"

// TokenKind tags what the single auxiliary token slot currently holds.
type TokenKind string

const (
	KindReset TokenKind = "reset"
	KindOTP   TokenKind = "otp"
)

// Account is a row of the `accounts` table. The aux columns hold at most one
// live token: a password-reset token or an OTP, stored as a SHA-256 digest.
type Account struct {
	ID                int64      `db:"id" json:"id"`
	Name              string     `db:"name" json:"name"`
	Email             string     `db:"email" json:"email"`
	Phone             *string    `db:"phone" json:"phone,omitempty"`
	PasswordHash      string     `db:"password_hash" json:"-"`
	ResetToken        *string    `db:"reset_token" json:"-"`
	ResetTokenKind    *string    `db:"reset_token_kind" json:"-"`
	ResetTokenExpires *time.Time `db:"reset_token_expires" json:"-"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// Profile is the display projection; it never carries secrets.
type Profile struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Phone     *string   `db:"phone" json:"phone,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func (a *Account) Profile() *Profile {
	return &Profile{
		ID:        a.ID,
		Name:      a.Name,
		Email:     a.Email,
		Phone:     a.Phone,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

// AuxToken is the tagged value written into the aux slot.
type AuxToken struct {
	Kind      TokenKind
	Digest    string
	ExpiresAt time.Time
}

// Aux returns the token in the aux slot, if any.
func (a *Account) Aux() (AuxToken, bool) {
	if a.ResetToken == nil || a.ResetTokenKind == nil || a.ResetTokenExpires == nil {
		return AuxToken{}, false
	}
	return AuxToken{
		Kind:      TokenKind(*a.ResetTokenKind),
		Digest:    *a.ResetToken,
		ExpiresAt: *a.ResetTokenExpires,
	}, true
}

// Live reports whether t is of kind k, matches digest and is unexpired at now.
func (t AuxToken) Live(k TokenKind, digest string, now time.Time) bool {
	return t.Kind == k && t.Digest == digest && now.Before(t.ExpiresAt)
}
