package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// Fields are the user-editable profile attributes.
type Fields struct {
	FirstName     string
	LastName      string
	DisplayName   *string
	Street        *string
	City          *string
	State         *string
	ZipCode       *string
	DateOfBirth   *string
}

type CreateProfileRequest struct {
	UserID     snowflake.ID
	Email      string
	NationalID string
	Fields
}

// UpdateProfileRequest carries only the fields present in the request body.
// Email and the customer mapping cannot be changed.
type UpdateProfileRequest struct {
	FirstName     *string
	LastName      *string
	DisplayName   *string
	Street        *string
	City          *string
	State         *string
	ZipCode       *string
	DateOfBirth   *string
}

type Service interface {
	Create(ctx context.Context, req CreateProfileRequest) (Profile, error)
	GetByID(ctx context.Context, id snowflake.ID) (Profile, error)
	Update(ctx context.Context, id snowflake.ID, req UpdateProfileRequest) (Profile, error)
}

var (
	ErrNotFound      = errors.New("profile_not_found")
	ErrAlreadyExists = errors.New("profile_already_exists")
	ErrInvalidID     = errors.New("invalid_id")
)
