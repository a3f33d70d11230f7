package validation

import (
	"github.com/go-playground/validator/v10"

	"github.com/arseniyrs/userhub/internal/domain/user"
)

const (
	MsgBlank   = "can't be blank"
	MsgInvalid = "is invalid"
	MsgTaken   = "has already been taken"
)

// validate is only used for format checks (email/url shape); presence rules
// are explicit because the wire format of the error map is fixed.
var validate = validator.New()

// FieldErrors maps a payload field to an ordered list of violation messages.
type FieldErrors map[string][]string

func (fe FieldErrors) Add(field, message string) {
	fe[field] = append(fe[field], message)
}

func (fe FieldErrors) Empty() bool {
	return len(fe) == 0
}

// RegisterInput is the decoded body of POST /api/users. Unknown sibling
// fields are dropped during decoding, not rejected.
type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginInput is the decoded body of POST /api/users/login.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateInput is the decoded body of PUT /api/user; every field is optional.
type UpdateInput struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Bio      *string `json:"bio"`
	Image    *string `json:"image"`
}

// ValidateRegister checks presence of all three fields and the email shape.
// An empty payload yields all three keys, each with "can't be blank".
func ValidateRegister(in RegisterInput) FieldErrors {
	fe := FieldErrors{}

	if in.Username == "" {
		fe.Add("username", MsgBlank)
	}

	if in.Email == "" {
		fe.Add("email", MsgBlank)
	} else if !EmailShaped(in.Email) {
		fe.Add("email", MsgInvalid)
	}

	if in.Password == "" {
		fe.Add("password", MsgBlank)
	}

	return fe
}

// ValidateUpdate checks only the fields that are present: provided-but-blank
// identity fields are rejected, bio/image may be blanked out.
func ValidateUpdate(in UpdateInput) FieldErrors {
	fe := FieldErrors{}

	if in.Username != nil && *in.Username == "" {
		fe.Add("username", MsgBlank)
	}

	if in.Email != nil {
		if *in.Email == "" {
			fe.Add("email", MsgBlank)
		} else if !EmailShaped(*in.Email) {
			fe.Add("email", MsgInvalid)
		}
	}

	if in.Password != nil && *in.Password == "" {
		fe.Add("password", MsgBlank)
	}

	if in.Image != nil && *in.Image != "" && !URLShaped(*in.Image) {
		fe.Add("image", MsgInvalid)
	}

	return fe
}

// UpdateParams converts validated input into directory update params.
// PasswordHash is left nil; hashing belongs to the caller.
func (in UpdateInput) UpdateParams() user.UpdateParams {
	return user.UpdateParams{
		Username: in.Username,
		Email:    in.Email,
		Bio:      in.Bio,
		Image:    in.Image,
	}
}

func EmailShaped(s string) bool {
	return validate.Var(s, "email") == nil
}

func URLShaped(s string) bool {
	return validate.Var(s, "url") == nil
}
