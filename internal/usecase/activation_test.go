package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"licensing-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivateFirstDevice(t *testing.T) {
	repos := newTestRepos(t)
	uc := NewActivationUseCase(repos.licenses, repos.devices)
	lic := repos.seedLicense(t, domain.EnvTest, true)
	ctx := context.Background()

	res, err := uc.Activate(ctx, domain.EnvTest, lic.LicenseKey, "device-1", "MacBook Pro")
	require.NoError(t, err)
	assert.False(t, res.AlreadyActive)
	assert.Equal(t, 1, res.ActiveDevices)

	device, err := repos.devices.Find(ctx, domain.EnvTest, lic.ID, "device-1")
	require.NoError(t, err)
	assert.True(t, device.IsActive)
	assert.Equal(t, "MacBook Pro", device.DeviceName)
	assert.WithinDuration(t, time.Now().UTC(), device.FirstActivatedAt, 5*time.Second)
}

func TestActivateIdempotent(t *testing.T) {
	repos := newTestRepos(t)
	uc := NewActivationUseCase(repos.licenses, repos.devices)
	lic := repos.seedLicense(t, domain.EnvTest, true)
	ctx := context.Background()

	_, err := uc.Activate(ctx, domain.EnvTest, lic.LicenseKey, "device-1", "old name")
	require.NoError(t, err)

	res, err := uc.Activate(ctx, domain.EnvTest, lic.LicenseKey, "device-1", "new name")
	require.NoError(t, err)
	assert.True(t, res.AlreadyActive)
	assert.Equal(t, 1, res.ActiveDevices)

	// Повтор — heartbeat и имя обновились, дубликата строки нет.
	device, err := repos.devices.Find(ctx, domain.EnvTest, lic.ID, "device-1")
	require.NoError(t, err)
	assert.Equal(t, "new name", device.DeviceName)
}

func TestActivateDeviceLimit(t *testing.T) {
	repos := newTestRepos(t)
	uc := NewActivationUseCase(repos.licenses, repos.devices)
	lic := repos.seedLicense(t, domain.EnvTest, true)
	ctx := context.Background()

	for i := 1; i <= DeviceCap; i++ {
		_, err := uc.Activate(ctx, domain.EnvTest, lic.LicenseKey, fmt.Sprintf("device-%d", i), "")
		require.NoError(t, err)
	}

	_, err := uc.Activate(ctx, domain.EnvTest, lic.LicenseKey, "device-4", "")
	var limitErr *domain.DeviceLimitError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, DeviceCap, limitErr.Active)

	count, err := repos.devices.CountActive(ctx, domain.EnvTest, lic.ID)
	require.NoError(t, err)
	assert.EqualValues(t, DeviceCap, count)
}

func TestActivateRejectsUnknownAndInactive(t *testing.T) {
	repos := newTestRepos(t)
	uc := NewActivationUseCase(repos.licenses, repos.devices)
	ctx := context.Background()

	_, err := uc.Activate(ctx, domain.EnvTest, "SF-NOPE-NOPE-NOPE", "device-1", "")
	assert.ErrorIs(t, err, domain.ErrLicenseNotFound)

	inactive := repos.seedLicense(t, domain.EnvTest, false)
	_, err = uc.Activate(ctx, domain.EnvTest, inactive.LicenseKey, "device-1", "")
	assert.ErrorIs(t, err, domain.ErrLicenseNotActive)
}

func TestReactivationKeepsFirstActivatedAt(t *testing.T) {
	repos := newTestRepos(t)
	uc := NewActivationUseCase(repos.licenses, repos.devices)
	lic := repos.seedLicense(t, domain.EnvTest, true)
	ctx := context.Background()

	_, err := uc.Activate(ctx, domain.EnvTest, lic.LicenseKey, "device-1", "")
	require.NoError(t, err)
	original, err := repos.devices.Find(ctx, domain.EnvTest, lic.ID, "device-1")
	require.NoError(t, err)

	_, err = uc.Deactivate(ctx, domain.EnvTest, lic.LicenseKey, "device-1")
	require.NoError(t, err)

	res, err := uc.Activate(ctx, domain.EnvTest, lic.LicenseKey, "device-1", "")
	require.NoError(t, err)
	assert.False(t, res.AlreadyActive)
	assert.Equal(t, 1, res.ActiveDevices)

	reactivated, err := repos.devices.Find(ctx, domain.EnvTest, lic.ID, "device-1")
	require.NoError(t, err)
	assert.True(t, reactivated.IsActive)
	assert.WithinDuration(t, original.FirstActivatedAt, reactivated.FirstActivatedAt, time.Second)
}

func TestReactivationBlockedByCap(t *testing.T) {
	repos := newTestRepos(t)
	uc := NewActivationUseCase(repos.licenses, repos.devices)
	lic := repos.seedLicense(t, domain.EnvTest, true)
	ctx := context.Background()

	for i := 1; i <= DeviceCap; i++ {
		_, err := uc.Activate(ctx, domain.EnvTest, lic.LicenseKey, fmt.Sprintf("device-%d", i), "")
		require.NoError(t, err)
	}
	_, err := uc.Deactivate(ctx, domain.EnvTest, lic.LicenseKey, "device-1")
	require.NoError(t, err)

	// Освободившийся слот занимает новое устройство.
	_, err = uc.Activate(ctx, domain.EnvTest, lic.LicenseKey, "device-4", "")
	require.NoError(t, err)

	// Старому вернуться уже некуда.
	_, err = uc.Activate(ctx, domain.EnvTest, lic.LicenseKey, "device-1", "")
	var limitErr *domain.DeviceLimitError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, DeviceCap, limitErr.Active)
}

func TestDeactivate(t *testing.T) {
	repos := newTestRepos(t)
	uc := NewActivationUseCase(repos.licenses, repos.devices)
	lic := repos.seedLicense(t, domain.EnvTest, true)
	ctx := context.Background()

	_, err := uc.Activate(ctx, domain.EnvTest, lic.LicenseKey, "device-1", "")
	require.NoError(t, err)

	res, err := uc.Deactivate(ctx, domain.EnvTest, lic.LicenseKey, "device-1")
	require.NoError(t, err)
	assert.False(t, res.AlreadyInactive)
	assert.Equal(t, 0, res.RemainingActive)

	// Повторная деактивация — no-op, не ошибка.
	res, err = uc.Deactivate(ctx, domain.EnvTest, lic.LicenseKey, "device-1")
	require.NoError(t, err)
	assert.True(t, res.AlreadyInactive)

	_, err = uc.Deactivate(ctx, domain.EnvTest, lic.LicenseKey, "never-seen")
	assert.ErrorIs(t, err, domain.ErrDeviceNotFound)
}

func TestDeactivateAllowedOnInactiveLicense(t *testing.T) {
	repos := newTestRepos(t)
	uc := NewActivationUseCase(repos.licenses, repos.devices)
	lic := repos.seedLicense(t, domain.EnvTest, true)
	ctx := context.Background()

	_, err := uc.Activate(ctx, domain.EnvTest, lic.LicenseKey, "device-1", "")
	require.NoError(t, err)

	// Лицензию отменили — отвязать устройство все равно можно.
	require.NoError(t, repos.licenses.Update(ctx, domain.EnvTest, lic.ID, map[string]any{"is_active": false}))

	res, err := uc.Deactivate(ctx, domain.EnvTest, lic.LicenseKey, "device-1")
	require.NoError(t, err)
	assert.Equal(t, 0, res.RemainingActive)
}

func TestStatus(t *testing.T) {
	repos := newTestRepos(t)
	uc := NewActivationUseCase(repos.licenses, repos.devices)
	lic := repos.seedLicense(t, domain.EnvTest, true)
	ctx := context.Background()

	// Неизвестный ключ — не ошибка.
	res, err := uc.Status(ctx, domain.EnvTest, "SF-NOPE-NOPE-NOPE", "device-1")
	require.NoError(t, err)
	assert.False(t, res.LicenseValid)

	// Лицензия есть, устройство не привязано.
	res, err = uc.Status(ctx, domain.EnvTest, lic.LicenseKey, "device-1")
	require.NoError(t, err)
	assert.True(t, res.LicenseValid)
	assert.False(t, res.DeviceKnown)
	assert.False(t, res.DeviceActivated)

	_, err = uc.Activate(ctx, domain.EnvTest, lic.LicenseKey, "device-1", "")
	require.NoError(t, err)

	res, err = uc.Status(ctx, domain.EnvTest, lic.LicenseKey, "device-1")
	require.NoError(t, err)
	assert.True(t, res.LicenseValid)
	assert.True(t, res.DeviceKnown)
	assert.True(t, res.DeviceActivated)
	assert.Equal(t, 1, res.ActiveDevices)

	// Деактивированное устройство известно, но не активно.
	_, err = uc.Deactivate(ctx, domain.EnvTest, lic.LicenseKey, "device-1")
	require.NoError(t, err)
	res, err = uc.Status(ctx, domain.EnvTest, lic.LicenseKey, "device-1")
	require.NoError(t, err)
	assert.True(t, res.DeviceKnown)
	assert.False(t, res.DeviceActivated)

	// Отмененная лицензия для клиента неотличима от несуществующей.
	require.NoError(t, repos.licenses.Update(ctx, domain.EnvTest, lic.ID, map[string]any{"is_active": false}))
	res, err = uc.Status(ctx, domain.EnvTest, lic.LicenseKey, "device-1")
	require.NoError(t, err)
	assert.False(t, res.LicenseValid)
}

func TestListDevices(t *testing.T) {
	repos := newTestRepos(t)
	uc := NewActivationUseCase(repos.licenses, repos.devices)
	lic := repos.seedLicense(t, domain.EnvTest, true)
	ctx := context.Background()

	_, err := uc.Activate(ctx, domain.EnvTest, lic.LicenseKey, "device-1", "first")
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	_, err = uc.Activate(ctx, domain.EnvTest, lic.LicenseKey, "device-2", "second")
	require.NoError(t, err)
	_, err = uc.Deactivate(ctx, domain.EnvTest, lic.LicenseKey, "device-1")
	require.NoError(t, err)
	_, err = uc.Activate(ctx, domain.EnvTest, lic.LicenseKey, "device-3", "third")
	require.NoError(t, err)

	devices, err := uc.ListDevices(ctx, domain.EnvTest, lic.LicenseKey)
	require.NoError(t, err)
	require.Len(t, devices, 2)
	// Свежий check-in первым.
	assert.Equal(t, "device-3", devices[0].DeviceID)
	assert.Equal(t, "device-2", devices[1].DeviceID)

	_, err = uc.ListDevices(ctx, domain.EnvTest, "SF-NOPE-NOPE-NOPE")
	assert.ErrorIs(t, err, domain.ErrLicenseNotFound)

	require.NoError(t, repos.licenses.Update(ctx, domain.EnvTest, lic.ID, map[string]any{"is_active": false}))
	_, err = uc.ListDevices(ctx, domain.EnvTest, lic.LicenseKey)
	assert.ErrorIs(t, err, domain.ErrLicenseNotActive)
}

// Параллельные активации разных устройств не должны пробить лимит:
// успешных ровно DeviceCap, остальные получают DeviceLimitError.
func TestConcurrentActivationsRespectCap(t *testing.T) {
	repos := newTestRepos(t)
	uc := NewActivationUseCase(repos.licenses, repos.devices)
	lic := repos.seedLicense(t, domain.EnvTest, true)
	ctx := context.Background()

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = uc.Activate(ctx, domain.EnvTest, lic.LicenseKey, fmt.Sprintf("racer-%d", i), "")
		}(i)
	}
	wg.Wait()

	var succeeded, limited int
	for _, err := range errs {
		var limitErr *domain.DeviceLimitError
		switch {
		case err == nil:
			succeeded++
		case assert.ErrorAs(t, err, &limitErr):
			limited++
		}
	}
	assert.Equal(t, DeviceCap, succeeded)
	assert.Equal(t, attempts-DeviceCap, limited)

	count, err := repos.devices.CountActive(ctx, domain.EnvTest, lic.ID)
	require.NoError(t, err)
	assert.EqualValues(t, DeviceCap, count)
}
