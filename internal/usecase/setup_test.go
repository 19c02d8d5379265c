package usecase

import (
	"context"
	"database/sql"
	"testing"

	"licensing-service/internal/domain"
	"licensing-service/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testRepos struct {
	store    *repository.Store
	licenses *repository.LicenseRepository
	devices  *repository.DeviceRepository
	trials   *repository.TrialRepository
}

func newTestRepos(t *testing.T) *testRepos {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	store, err := repository.NewStore(func(cfg *gorm.Config) (*gorm.DB, error) {
		return gorm.Open(&sqlite.Dialector{Conn: sqlDB}, cfg)
	})
	require.NoError(t, err)

	return &testRepos{
		store:    store,
		licenses: repository.NewLicenseRepository(store),
		devices:  repository.NewDeviceRepository(store),
		trials:   repository.NewTrialRepository(store),
	}
}

func (r *testRepos) seedLicense(t *testing.T, env domain.Environment, active bool) *domain.License {
	t.Helper()
	lic := &domain.License{
		ID:         uuid.NewString(),
		LicenseKey: GenerateLicenseKey(),
		Email:      uuid.NewString()[:8] + "@example.com",
		IsActive:   active,
	}
	require.NoError(t, r.licenses.Create(context.Background(), env, lic))
	return lic
}
