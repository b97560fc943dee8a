package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/freshfold/freshfold-backend/pkg/db/models"
	"github.com/freshfold/freshfold-backend/pkg/enums"
	pkgerrors "github.com/freshfold/freshfold-backend/pkg/errors"
)

func setupCatalogTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:catalog_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	plans := `
CREATE TABLE IF NOT EXISTS plans (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL UNIQUE,
  price_cents INTEGER NOT NULL,
  pickups_per_month INTEGER NOT NULL,
  bags_per_pickup INTEGER NOT NULL DEFAULT 1,
  features TEXT,
  active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
	services := `
CREATE TABLE IF NOT EXISTS services (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL UNIQUE,
  display_name TEXT NOT NULL,
  base_price_cents INTEGER NOT NULL,
  extra_unit_price_cents INTEGER NOT NULL DEFAULT 0,
  classification TEXT NOT NULL,
  active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(plans).Error)
	require.NoError(t, db.Exec(services).Error)
	return db
}

func newService(t *testing.T, db *gorm.DB, name string, classification enums.ServiceClassification, active bool) *models.Service {
	t.Helper()
	svc := &models.Service{
		ID:                  uuid.New(),
		Name:                name + "_" + uuid.NewString()[:8],
		DisplayName:         name,
		BasePriceCents:      3500,
		ExtraUnitPriceCents: 3000,
		Classification:      classification,
		Active:              active,
	}
	require.NoError(t, db.Create(svc).Error)
	return svc
}

func TestGetPlanNotFound(t *testing.T) {
	db := setupCatalogTestDB(t)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	_, err = svc.GetPlan(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestGetPlanSkipsInactive(t *testing.T) {
	db := setupCatalogTestDB(t)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	plan := &models.Plan{
		ID:              uuid.New(),
		Name:            "retired",
		PriceCents:      4900,
		PickupsPerMonth: 2,
		BagsPerPickup:   1,
		Active:          false,
	}
	require.NoError(t, db.Create(plan).Error)

	_, err = svc.GetPlan(context.Background(), plan.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestResolveServices(t *testing.T) {
	db := setupCatalogTestDB(t)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	bag := newService(t, db, "standard_bag", enums.ServiceClassEntitlement, true)
	booster := newService(t, db, "scent_booster", enums.ServiceClassAddon, true)

	resolved, err := svc.ResolveServices(context.Background(), []uuid.UUID{bag.ID, booster.ID, bag.ID})
	require.NoError(t, err)
	require.Len(t, resolved, 2)
	assert.Equal(t, enums.ServiceClassEntitlement, resolved[bag.ID].Classification)
	assert.Equal(t, enums.ServiceClassAddon, resolved[booster.ID].Classification)
}

func TestResolveServicesRejectsUnknownOrInactive(t *testing.T) {
	db := setupCatalogTestDB(t)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	bag := newService(t, db, "standard_bag", enums.ServiceClassEntitlement, true)
	retired := newService(t, db, "retired_service", enums.ServiceClassExtra, false)

	_, err = svc.ResolveServices(context.Background(), []uuid.UUID{bag.ID, uuid.New()})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidOrderItems))

	_, err = svc.ResolveServices(context.Background(), []uuid.UUID{bag.ID, retired.ID})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidOrderItems))
}

func TestListPlansOrdersByPrice(t *testing.T) {
	db := setupCatalogTestDB(t)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	require.NoError(t, db.Create(&models.Plan{ID: uuid.New(), Name: "unlimited", PriceCents: 13000, PickupsPerMonth: 6, BagsPerPickup: 1, Active: true}).Error)
	require.NoError(t, db.Create(&models.Plan{ID: uuid.New(), Name: "basic", PriceCents: 4900, PickupsPerMonth: 2, BagsPerPickup: 1, Active: true}).Error)
	require.NoError(t, db.Create(&models.Plan{ID: uuid.New(), Name: "legacy", PriceCents: 1000, PickupsPerMonth: 1, BagsPerPickup: 1, Active: false}).Error)

	plans, err := svc.ListPlans(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, "basic", plans[0].Name)
	assert.Equal(t, "unlimited", plans[1].Name)
}
