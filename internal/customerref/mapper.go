// Package customerref maps an authenticated identity to the billing
// customer reference the document gateway is keyed by.
package customerref

import (
	"context"
	"errors"
	"fmt"
	"strings"

	authdomain "github.com/smallbiznis/billingportal/internal/auth/domain"
	profiledomain "github.com/smallbiznis/billingportal/internal/profile/domain"
	"go.uber.org/zap"
)

// Strategy selects what happens when an identity has no usable profile.
type Strategy string

const (
	// FailFast is required on every path that reads documents.
	FailFast Strategy = "fail_fast"
	// DegradeToIdentity substitutes the identity id and flags the result.
	// Only summary views may use it.
	DegradeToIdentity Strategy = "degrade_to_identity"
)

var ErrProfileNotFound = errors.New("profile_not_found")

// Ref is a resolved customer reference. Degraded refs are not authoritative
// and must be labelled as such by the caller.
type Ref struct {
	Value    string
	Degraded bool
	Profile  *profiledomain.Profile
}

type Mapper struct {
	profiles profiledomain.Service
	log      *zap.Logger
}

func NewMapper(profiles profiledomain.Service, log *zap.Logger) *Mapper {
	return &Mapper{
		profiles: profiles,
		log:      log.Named("customerref.mapper"),
	}
}

// Map reads the profile on every call; mappings are never cached.
func (m *Mapper) Map(ctx context.Context, identity authdomain.Identity, strategy Strategy) (Ref, error) {
	profile, err := m.profiles.GetByID(ctx, identity.ID)
	switch {
	case err == nil && strings.TrimSpace(profile.ERPCustomerID) != "":
		return Ref{Value: profile.ERPCustomerID, Profile: &profile}, nil
	case err == nil, errors.Is(err, profiledomain.ErrNotFound):
		return m.missing(identity, strategy, profileOrNil(err, profile))
	default:
		return Ref{}, fmt.Errorf("load profile: %w", err)
	}
}

func (m *Mapper) missing(identity authdomain.Identity, strategy Strategy, profile *profiledomain.Profile) (Ref, error) {
	switch strategy {
	case DegradeToIdentity:
		m.log.Warn("customer reference degraded to identity",
			zap.String("user_id", identity.ID.String()),
		)
		return Ref{Value: identity.ID.String(), Degraded: true, Profile: profile}, nil
	default:
		return Ref{}, ErrProfileNotFound
	}
}

func profileOrNil(err error, profile profiledomain.Profile) *profiledomain.Profile {
	if err != nil {
		return nil
	}
	return &profile
}
