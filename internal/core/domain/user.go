package domain

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
)

const (
	RoleUser   = "user"
	RoleMaster = "master"
)

// User models a registered account.
type User struct {
	ID               string     `json:"_id"`
	Name             string     `json:"name"`
	Email            string     `json:"email"`
	PasswordHash     string     `json:"-"`
	PhoneNumber      string     `json:"phoneNumber"`
	ChatID           string     `json:"chatId,omitempty"`
	VerificationCode string     `json:"-"`
	CodeExpiration   *time.Time `json:"-"`
	Role             string     `json:"role"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// NormalizeEmail trims and lowercases an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NewUser builds a user ready to be persisted. The role is derived from
// masterEmail and never from caller input.
func NewUser(name, email, passwordHash, phoneNumber, masterEmail string, now time.Time) (*User, error) {
	name = strings.TrimSpace(name)
	email = NormalizeEmail(email)
	phoneNumber = strings.TrimSpace(phoneNumber)

	switch {
	case name == "":
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	case phoneNumber == "":
		return nil, fmt.Errorf("%w: phone number is required", ErrInvalidInput)
	case passwordHash == "":
		return nil, fmt.Errorf("%w: password hash is required", ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: please provide a valid email", ErrInvalidInput)
	}

	role := RoleUser
	if master := NormalizeEmail(masterEmail); master != "" && master == email {
		role = RoleMaster
	}

	return &User{
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		PhoneNumber:  phoneNumber,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// HasPendingCode reports whether a verification code and its expiry are set.
func (u *User) HasPendingCode() bool {
	return u.VerificationCode != "" && u.CodeExpiration != nil
}

// Profile is the minimal identity returned after a successful 2FA check.
type Profile struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	ID    string `json:"_id"`
}

func (u *User) Profile() Profile {
	return Profile{Name: u.Name, Email: u.Email, ID: u.ID}
}

// ValidatePassword enforces the complexity rule: at least 8 characters with
// a lowercase letter, an uppercase letter and a special character.
func ValidatePassword(p string) error {
	if len(p) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters long", ErrInvalidInput)
	}
	var lower, upper, special bool
	for _, r := range p {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
		default:
			special = true
		}
	}
	switch {
	case !lower:
		return fmt.Errorf("%w: password must contain at least one lowercase letter", ErrInvalidInput)
	case !upper:
		return fmt.Errorf("%w: password must contain at least one uppercase letter", ErrInvalidInput)
	case !special:
		return fmt.Errorf("%w: password must contain at least one special character", ErrInvalidInput)
	}
	return nil
}
