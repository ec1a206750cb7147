package auth

import (
	"chat-relay/errors"
	"fmt"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// RegisterRequest is checked before an account is created, including the
// admin seeded at startup.
type RegisterRequest struct {
	Name     string `validate:"required,max=100"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=12,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,max=72"`
}

// IdentifyRequest is the payload of the websocket identify event.
type IdentifyRequest struct {
	ID    string `json:"id" validate:"required"`
	Type  string `json:"type" validate:"required,oneof=admin user"`
	Token string `json:"token,omitempty"`
}

func ValidateRegister(req RegisterRequest) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidRequest, err)
	}
	if !isPasswordComplex(req.Password) {
		return errors.ErrInvalidPassword
	}
	return nil
}

func ValidateLogin(req LoginRequest) error {
	if err := validate.Struct(req); err != nil {
		return errors.ErrInvalidCredentials
	}
	return nil
}

func ValidateIdentify(req IdentifyRequest) error {
	if err := validate.Struct(req); err != nil {
		if req.ID == "" {
			return errors.ErrMissingIdentity
		}
		return errors.ErrInvalidKind
	}
	return nil
}

// ValidateCommand runs the struct tags of service commands.
func ValidateCommand(cmd any) error {
	return validate.Struct(cmd)
}

func isPasswordComplex(s string) bool {
	var hasUpper, hasLower, hasNumber, hasSpecial bool
	for _, char := range s {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}
	return hasUpper && hasLower && hasNumber && hasSpecial
}
