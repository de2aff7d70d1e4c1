package signup

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	authdomain "github.com/smallbiznis/billingportal/internal/auth/domain"
	authservice "github.com/smallbiznis/billingportal/internal/auth/service"
	profiledomain "github.com/smallbiznis/billingportal/internal/profile/domain"
	"github.com/smallbiznis/billingportal/internal/signup/domain"
	"go.uber.org/zap"
)

type service struct {
	authsvc    authdomain.Service
	profilesvc profiledomain.Service
	log        *zap.Logger
}

func NewService(authsvc authdomain.Service, profilesvc profiledomain.Service, log *zap.Logger) domain.Service {
	return &service{
		authsvc:    authsvc,
		profilesvc: profilesvc,
		log:        log.Named("signup.service"),
	}
}

// Signup creates the identity, then the profile that maps it to a billing
// customer. The two writes are not atomic: when the profile insert fails the
// identity is kept and ErrProfileCreationFailed is returned.
func (s *service) Signup(ctx context.Context, req domain.Request) (*domain.Result, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	user, err := s.authsvc.CreateUser(ctx, authdomain.CreateUserRequest{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: displayName(req),
	})
	if err != nil {
		return nil, err
	}

	profile, err := s.profilesvc.Create(ctx, profiledomain.CreateProfileRequest{
		UserID:     user.ID,
		Email:      user.Email,
		NationalID: req.NationalID,
		Fields: profiledomain.Fields{
			FirstName:     req.FirstName,
			LastName:      req.LastName,
			DisplayName:   req.DisplayName,
			Street:        req.Street,
			City:          req.City,
			State:         req.State,
			ZipCode:       req.ZipCode,
			DateOfBirth:   req.DateOfBirth,
		},
	})
	if err != nil {
		s.log.Error("profile creation failed after identity was created",
			zap.String("user_id", user.ID.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", domain.ErrProfileCreationFailed, err)
	}

	session, err := s.authsvc.Login(ctx, authdomain.LoginRequest{
		Email:     req.Email,
		Password:  req.Password,
		UserAgent: req.UserAgent,
		IPAddress: req.IPAddress,
	})
	if err != nil {
		return nil, err
	}

	return &domain.Result{
		Identity:  session.Identity,
		Profile:   profile,
		RawToken:  session.RawToken,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// validate checks the whole registration form before anything is written.
func validate(req domain.Request) error {
	v := &profiledomain.ValidationError{}

	email := strings.TrimSpace(req.Email)
	if email == "" {
		v.Add("email", "required")
	} else if _, err := mail.ParseAddress(email); err != nil {
		v.Add("email", "invalid_format")
	}

	if len(req.Password) < authservice.MinPasswordLength {
		v.Add("password", "too_short")
	}
	if req.Password != req.ConfirmPassword {
		v.Add("confirm_password", "mismatch")
	}

	profiledomain.ValidateFields(profiledomain.Fields{
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		DisplayName:   req.DisplayName,
		Street:        req.Street,
		City:          req.City,
		State:         req.State,
		ZipCode:       req.ZipCode,
		DateOfBirth:   req.DateOfBirth,
	}, v)
	profiledomain.ValidateNationalID(req.NationalID, v)

	return v.Err()
}

func displayName(req domain.Request) string {
	if name := profiledomain.NormalizeOptional(req.DisplayName); name != nil {
		return *name
	}
	return strings.TrimSpace(req.FirstName + " " + req.LastName)
}
