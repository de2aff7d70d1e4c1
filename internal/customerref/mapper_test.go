package customerref

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/billingportal/internal/auth/domain"
	profiledomain "github.com/smallbiznis/billingportal/internal/profile/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProfiles struct {
	profiledomain.Service
	profiles map[snowflake.ID]profiledomain.Profile
	err      error
	calls    int
}

func (f *fakeProfiles) GetByID(ctx context.Context, id snowflake.ID) (profiledomain.Profile, error) {
	f.calls++
	if f.err != nil {
		return profiledomain.Profile{}, f.err
	}
	p, ok := f.profiles[id]
	if !ok {
		return profiledomain.Profile{}, profiledomain.ErrNotFound
	}
	return p, nil
}

var identity = authdomain.Identity{ID: 1001, Email: "jane@example.com"}

func TestMapReturnsCustomerRef(t *testing.T) {
	profiles := &fakeProfiles{profiles: map[snowflake.ID]profiledomain.Profile{
		1001: {ID: 1001, FirstName: "Jane", ERPCustomerID: "CUST-42"},
	}}
	mapper := NewMapper(profiles, zap.NewNop())

	ref, err := mapper.Map(context.Background(), identity, FailFast)
	require.NoError(t, err)
	assert.Equal(t, "CUST-42", ref.Value)
	assert.False(t, ref.Degraded)
	require.NotNil(t, ref.Profile)
	assert.Equal(t, "Jane", ref.Profile.FirstName)
}

func TestMapFailFastWithoutProfile(t *testing.T) {
	mapper := NewMapper(&fakeProfiles{}, zap.NewNop())

	_, err := mapper.Map(context.Background(), identity, FailFast)
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestMapFailFastWithBlankCustomerID(t *testing.T) {
	profiles := &fakeProfiles{profiles: map[snowflake.ID]profiledomain.Profile{
		1001: {ID: 1001, ERPCustomerID: "  "},
	}}
	mapper := NewMapper(profiles, zap.NewNop())

	_, err := mapper.Map(context.Background(), identity, FailFast)
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestMapDegradeIsLabelled(t *testing.T) {
	mapper := NewMapper(&fakeProfiles{}, zap.NewNop())

	ref, err := mapper.Map(context.Background(), identity, DegradeToIdentity)
	require.NoError(t, err)
	assert.True(t, ref.Degraded)
	assert.Equal(t, "1001", ref.Value)
	assert.Nil(t, ref.Profile)
}

func TestMapPropagatesStorageErrors(t *testing.T) {
	mapper := NewMapper(&fakeProfiles{err: errors.New("db down")}, zap.NewNop())

	_, err := mapper.Map(context.Background(), identity, DegradeToIdentity)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrProfileNotFound)
}

func TestMapReadsProfileEveryCall(t *testing.T) {
	profiles := &fakeProfiles{profiles: map[snowflake.ID]profiledomain.Profile{
		1001: {ID: 1001, ERPCustomerID: "CUST-42"},
	}}
	mapper := NewMapper(profiles, zap.NewNop())

	for i := 0; i < 3; i++ {
		_, err := mapper.Map(context.Background(), identity, FailFast)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, profiles.calls)
}
