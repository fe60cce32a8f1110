package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streetfix/resolve-service/internal/domain"
	apperrors "github.com/streetfix/resolve-service/pkg/util/errorutil"
)

func square(lat, lng, half float64) domain.Zone {
	return domain.Zone{
		{Latitude: lat - half, Longitude: lng - half},
		{Latitude: lat - half, Longitude: lng + half},
		{Latitude: lat + half, Longitude: lng + half},
		{Latitude: lat + half, Longitude: lng - half},
	}
}

func TestCreateStaff(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	engineer, err := h.staff.CreateStaff(ctx, StaffInput{
		Role: domain.RoleEngineer, Name: "Eve", Email: "eve@city.example", Password: "password123",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.EngineerAvailable, engineer.EngineerStatus)
	assert.Nil(t, engineer.Username)

	qa, err := h.staff.CreateStaff(ctx, StaffInput{
		Role: domain.RoleQA, Name: "Quinn", Email: "quinn@city.example", Password: "password123",
	})
	require.NoError(t, err)
	assert.Empty(t, qa.EngineerStatus)

	_, err = h.staff.CreateStaff(ctx, StaffInput{
		Role: domain.RoleCitizen, Name: "Cit", Email: "cit@city.example", Password: "password123",
	})
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))

	_, err = h.staff.CreateStaff(ctx, StaffInput{
		Role: domain.RoleQA, Name: "Again", Email: "EVE@city.example", Password: "password123",
	})
	assert.True(t, apperrors.Is(err, apperrors.CodeConflict))

	engineers, err := h.staff.ListStaff(ctx, domain.RoleEngineer)
	require.NoError(t, err)
	require.Len(t, engineers, 1)
	assert.Equal(t, engineer.ID, engineers[0].ID)

	_, err = h.staff.ListStaff(ctx, domain.RoleCitizen)
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))

	_, token, err := h.auth.Login(ctx, "eve@city.example", "password123")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleEngineer, token.Role)
}

func TestBootstrapDispatcher(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.staff.BootstrapDispatcher(ctx, "", "ignored"))
	require.NoError(t, h.staff.BootstrapDispatcher(ctx, "ops@city.example", "password123"))
	require.NoError(t, h.staff.BootstrapDispatcher(ctx, "OPS@city.example", "password123"))

	dispatchers, err := h.staff.ListStaff(ctx, domain.RoleDispatcher)
	require.NoError(t, err)
	require.Len(t, dispatchers, 1)
	assert.Equal(t, "ops@city.example", dispatchers[0].Email)
}

func TestSetZoneAndApplyZones(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addUser(t, "north", domain.RoleEngineer)
	h.addUser(t, "south", domain.RoleEngineer)
	h.addUser(t, "citizen", domain.RoleCitizen)

	_, err := h.staff.SetZone(ctx, "north", square(52, -1, 0.1)[:2])
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))

	_, err = h.staff.SetZone(ctx, "citizen", square(52, -1, 0.1))
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))

	_, err = h.staff.SetZone(ctx, "north", domain.Zone{{Latitude: 95}, {}, {}})
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))

	updated, err := h.staff.SetZone(ctx, "north", square(52, -1, 0.1))
	require.NoError(t, err)
	assert.Len(t, updated.Zone, 4)

	cleared, err := h.staff.SetZone(ctx, "north", nil)
	require.NoError(t, err)
	assert.Empty(t, cleared.Zone)

	applied, err := h.staff.ApplyZones(ctx, []ZoneAssignment{
		{Engineer: "north", Zone: square(52.5, -1, 0.1)},
		{Engineer: "SOUTH@city.example", Zone: square(51.5, -1, 0.1)},
		{Engineer: "retired@city.example", Zone: square(50, -1, 0.1)},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, applied)
	assert.Len(t, h.user(t, "north").Zone, 4)
	assert.InDelta(t, 51.4, h.user(t, "south").Zone[0].Latitude, 1e-9)

	_, err = h.staff.ApplyZones(ctx, []ZoneAssignment{{Engineer: "citizen", Zone: square(50, -1, 0.1)}})
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))
}
