package service

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/garageflow/internal/clock"
	"github.com/smallbiznis/garageflow/internal/garage/domain"
	"github.com/smallbiznis/garageflow/internal/garage/repository"
	"github.com/smallbiznis/garageflow/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) domain.Service {
	return New(Params{
		DB:    testutil.NewDB(t, &domain.Garage{}),
		Log:   zap.NewNop(),
		GenID: testutil.Node(t),
		Clock: clock.NewFakeClock(time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)),
		Repo:  repository.Provide(),
	})
}

func TestCreateGarageSlugsName(t *testing.T) {
	svc := newTestService(t)
	garage, err := svc.Create(context.Background(), domain.CreateGarageRequest{Name: "  Riverside Motors & Tyres "})
	require.NoError(t, err)
	assert.Equal(t, "riverside-motors-and-tyres", garage.Slug)
	assert.Equal(t, 1, garage.Bays)

	loaded, err := svc.GetByID(context.Background(), garage.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "Riverside Motors & Tyres", loaded.Name)
}

func TestCreateGarageRejectsDuplicateSlug(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Create(context.Background(), domain.CreateGarageRequest{Name: "North Bay"})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), domain.CreateGarageRequest{Name: "north bay"})
	assert.ErrorIs(t, err, domain.ErrSlugTaken)
}

func TestGetGarageErrors(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
	_, err = svc.GetByID(context.Background(), "12345")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.Create(context.Background(), domain.CreateGarageRequest{Name: " "})
	assert.ErrorIs(t, err, domain.ErrInvalidName)
}
