package domain

import (
	"context"
	"errors"
	"time"

	authdomain "github.com/smallbiznis/billingportal/internal/auth/domain"
	profiledomain "github.com/smallbiznis/billingportal/internal/profile/domain"
)

type Service interface {
	Signup(ctx context.Context, req Request) (*Result, error)
}

type Request struct {
	Email           string  `json:"email"`
	Password        string  `json:"password"`
	ConfirmPassword string  `json:"confirm_password"`
	FirstName       string  `json:"first_name"`
	LastName        string  `json:"last_name"`
	DisplayName     *string `json:"display_name"`
	NationalID      string  `json:"national_id"`
	Street          *string `json:"street"`
	City            *string `json:"city"`
	State           *string `json:"state"`
	ZipCode         *string `json:"zip_code"`
	DateOfBirth     *string `json:"date_of_birth"`
	UserAgent       string  `json:"-"`
	IPAddress       string  `json:"-"`
}

type Result struct {
	Identity  authdomain.Identity
	Profile   profiledomain.Profile
	RawToken  string
	ExpiresAt time.Time
}

var (
	ErrInvalidRequest = errors.New("invalid_signup_request")
	// ErrProfileCreationFailed means the identity exists but its profile does not.
	ErrProfileCreationFailed = errors.New("profile_creation_failed")
)
