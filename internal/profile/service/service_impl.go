package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/billingportal/internal/clock"
	"github.com/smallbiznis/billingportal/internal/profile/domain"
	"github.com/smallbiznis/billingportal/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Repo  domain.Repository
	Clock clock.Clock `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  domain.Repository
	clock clock.Clock
}

func New(p Params) domain.Service {
	c := p.Clock
	if c == nil {
		c = clock.New()
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("profile.service"),
		repo:  p.Repo,
		clock: c,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateProfileRequest) (domain.Profile, error) {
	if req.UserID == 0 {
		return domain.Profile{}, domain.ErrInvalidID
	}

	v := &domain.ValidationError{}
	domain.ValidateFields(req.Fields, v)
	domain.ValidateNationalID(req.NationalID, v)
	if err := v.Err(); err != nil {
		return domain.Profile{}, err
	}

	// The national id is stored only as the ERP customer reference.
	now := s.clock.Now()
	profile := domain.Profile{
		ID:            req.UserID,
		Email:         strings.ToLower(strings.TrimSpace(req.Email)),
		FirstName:     strings.TrimSpace(req.FirstName),
		LastName:      strings.TrimSpace(req.LastName),
		DisplayName:   domain.NormalizeOptional(req.DisplayName),
		ERPCustomerID: strings.TrimSpace(req.NationalID),
		Street:        domain.NormalizeOptional(req.Street),
		City:          domain.NormalizeOptional(req.City),
		State:         domain.NormalizeOptional(req.State),
		ZipCode:       domain.NormalizeOptional(req.ZipCode),
		DateOfBirth:   toDate(req.DateOfBirth),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Insert(ctx, s.db, &profile); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Profile{}, domain.ErrAlreadyExists
		}
		return domain.Profile{}, err
	}

	s.log.Info("profile created", zap.String("profile_id", profile.ID.String()))
	return profile, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.Profile, error) {
	if id == 0 {
		return domain.Profile{}, domain.ErrInvalidID
	}

	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Profile{}, err
	}
	if item == nil {
		return domain.Profile{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) Update(ctx context.Context, id snowflake.ID, req domain.UpdateProfileRequest) (domain.Profile, error) {
	if id == 0 {
		return domain.Profile{}, domain.ErrInvalidID
	}

	v := &domain.ValidationError{}
	domain.ValidateUpdate(req, v)
	if err := v.Err(); err != nil {
		return domain.Profile{}, err
	}

	fields := map[string]any{}
	if req.FirstName != nil {
		fields["first_name"] = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		fields["last_name"] = strings.TrimSpace(*req.LastName)
	}
	setOptional(fields, "display_name", req.DisplayName)
	setOptional(fields, "street", req.Street)
	setOptional(fields, "city", req.City)
	setOptional(fields, "state", req.State)
	setOptional(fields, "zip_code", req.ZipCode)
	if req.DateOfBirth != nil {
		fields["date_of_birth"] = toDate(req.DateOfBirth)
	}

	if len(fields) > 0 {
		fields["updated_at"] = s.clock.Now()
		if err := s.repo.Update(ctx, s.db, id, fields); err != nil {
			return domain.Profile{}, err
		}
	}

	return s.GetByID(ctx, id)
}

// setOptional clears the column when the field is sent blank.
func setOptional(fields map[string]any, column string, value *string) {
	if value == nil {
		return
	}
	if normalized := domain.NormalizeOptional(value); normalized != nil {
		fields[column] = *normalized
		return
	}
	fields[column] = nil
}

func toDate(value *string) *datatypes.Date {
	normalized := domain.NormalizeOptional(value)
	if normalized == nil {
		return nil
	}
	parsed, err := domain.ParseDate(*normalized)
	if err != nil {
		return nil
	}
	date := datatypes.Date(parsed)
	return &date
}
