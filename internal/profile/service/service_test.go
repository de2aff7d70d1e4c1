package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/billingportal/internal/profile/domain"
	"github.com/smallbiznis/billingportal/internal/profile/repository"
	"github.com/smallbiznis/billingportal/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func strPtr(v string) *string { return &v }

func newTestService(t *testing.T) domain.Service {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.Profile{}))

	return New(Params{
		DB:   conn,
		Log:  zap.NewNop(),
		Repo: repository.Provide(),
	})
}

func createRequest(id snowflake.ID) domain.CreateProfileRequest {
	return domain.CreateProfileRequest{
		UserID:     id,
		Email:      "Jane@Example.com",
		NationalID: " CUST-42 ",
		Fields: domain.Fields{
			FirstName: "Jane",
			LastName:  "Doe",
			ZipCode:   strPtr("123456"),
			City:      strPtr("  "),
		},
	}
}

func TestCreateMapsNationalIDToCustomerRef(t *testing.T) {
	svc := newTestService(t)

	profile, err := svc.Create(context.Background(), createRequest(1001))
	require.NoError(t, err)

	assert.Equal(t, "CUST-42", profile.ERPCustomerID)
	assert.Equal(t, "jane@example.com", profile.Email)
	assert.Nil(t, profile.City)

	stored, err := svc.GetByID(context.Background(), 1001)
	require.NoError(t, err)
	assert.Equal(t, "CUST-42", stored.ERPCustomerID)
	require.NotNil(t, stored.ZipCode)
	assert.Equal(t, "123456", *stored.ZipCode)
}

func TestCreateRejectsInvalidFields(t *testing.T) {
	svc := newTestService(t)
	req := createRequest(1002)
	req.ZipCode = strPtr("12345")
	req.NationalID = ""

	_, err := svc.Create(context.Background(), req)

	var vErr *domain.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Len(t, vErr.Fields, 2)
}

func TestCreateTwiceIsConflict(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Create(context.Background(), createRequest(1003))
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), createRequest(1003))
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestGetByIDMissingProfile(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.GetByID(context.Background(), 404)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateKeepsCustomerMapping(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Create(context.Background(), createRequest(1004))
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), 1004, domain.UpdateProfileRequest{
		FirstName: strPtr("Janet"),
		City:      strPtr("Jakarta"),
		Street:    strPtr(" Jl. Sudirman 1 "),
		ZipCode:   strPtr(""),
	})
	require.NoError(t, err)

	assert.Equal(t, "Janet", updated.FirstName)
	require.NotNil(t, updated.City)
	assert.Equal(t, "Jakarta", *updated.City)
	assert.Nil(t, updated.ZipCode)
	require.NotNil(t, updated.Street)
	assert.Equal(t, "Jl. Sudirman 1", *updated.Street)
	assert.Equal(t, "CUST-42", updated.ERPCustomerID)
}

func TestUpdateMissingProfile(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Update(context.Background(), 999, domain.UpdateProfileRequest{City: strPtr("Bogor")})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
