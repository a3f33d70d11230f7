package user

import (
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("user not found")
	ErrEmailTaken    = errors.New("email already taken")
	ErrUsernameTaken = errors.New("username already taken")
)

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never expose hash in JSON
	Bio          *string   `json:"bio"`
	Image        *string   `json:"image"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type CreateParams struct {
	Username     string
	Email        string
	PasswordHash string
}

// UpdateParams carries a partial profile update; nil fields are left untouched.
type UpdateParams struct {
	Username     *string
	Email        *string
	PasswordHash *string
	Bio          *string
	Image        *string
}

func (p UpdateParams) Empty() bool {
	return p.Username == nil && p.Email == nil && p.PasswordHash == nil && p.Bio == nil && p.Image == nil
}

// Apply merges a partial update into the record. A blank bio or image clears
// the stored value back to absent.
func (u *User) Apply(p UpdateParams) {
	if p.Username != nil {
		u.Username = *p.Username
	}

	if p.Email != nil {
		u.Email = *p.Email
	}

	if p.PasswordHash != nil {
		u.PasswordHash = *p.PasswordHash
	}

	if p.Bio != nil {
		if *p.Bio == "" {
			u.Bio = nil
		} else {
			u.Bio = p.Bio
		}
	}

	if p.Image != nil {
		if *p.Image == "" {
			u.Image = nil
		} else {
			u.Image = p.Image
		}
	}
}
