package auth

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wali-os/wali/internal/models"
)

var ErrInvalidSignup = errors.New("invalid signup")

const maxOrganizationName = 200

// SignupRequest creates an account. The organization fields are optional and seed the
// profile that scoring and form filling read.
type SignupRequest struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	OrganizationName string `json:"organizationName"`
	OrganizationType string `json:"organizationType"`
}

// Validate checks the email shape, minimum password length and, when given, the organization fields.
func (r SignupRequest) Validate() error {
	if _, err := mail.ParseAddress(strings.TrimSpace(r.Email)); err != nil {
		return fmt.Errorf("%w: a valid email is required", ErrInvalidSignup)
	}
	if len(r.Password) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidSignup)
	}
	if len(strings.TrimSpace(r.OrganizationName)) > maxOrganizationName {
		return fmt.Errorf("%w: organization name exceeds %d characters", ErrInvalidSignup, maxOrganizationName)
	}
	if r.OrganizationType != "" {
		if _, ok := models.NormalizeOrganizationType(r.OrganizationType); !ok {
			return fmt.Errorf("%w: organization type must be one of %s", ErrInvalidSignup, strings.Join(models.OrganizationTypes, ", "))
		}
	}
	return nil
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
