package usecase

import (
	"context"
	"errors"
	"time"

	"licensing-service/internal/domain"
	"licensing-service/internal/repository"

	"gorm.io/gorm"
)

// DeviceCap — сколько устройств может быть активно на одной лицензии.
// Фиксированная политика, не зависит от тарифа.
const DeviceCap = 3

type ActivationUseCase struct {
	licenses *repository.LicenseRepository
	devices  *repository.DeviceRepository
}

func NewActivationUseCase(lr *repository.LicenseRepository, dr *repository.DeviceRepository) *ActivationUseCase {
	return &ActivationUseCase{licenses: lr, devices: dr}
}

type ActivationResult struct {
	AlreadyActive bool
	ActiveDevices int
}

type DeactivationResult struct {
	AlreadyInactive bool
	RemainingActive int
}

type StatusResult struct {
	LicenseValid    bool
	DeviceActivated bool
	DeviceKnown     bool
	ActiveDevices   int
}

// Activate привязывает устройство к лицензии.
// Повторная активация уже активного устройства — идемпотентный no-op
// с обновлением heartbeat, лимит при этом не перепроверяется.
func (uc *ActivationUseCase) Activate(ctx context.Context, env domain.Environment, licenseKey, deviceID, deviceName string) (*ActivationResult, error) {
	lic, err := uc.licenses.FindByKey(ctx, env, licenseKey)
	if err != nil {
		return nil, err
	}
	if !lic.IsActive {
		return nil, domain.ErrLicenseNotActive
	}

	device, err := uc.devices.Find(ctx, env, lic.ID, deviceID)
	switch {
	case err == nil && device.IsActive:
		if err := uc.devices.Touch(ctx, env, device.ID, deviceName); err != nil {
			return nil, err
		}
		count, err := uc.devices.CountActive(ctx, env, lic.ID)
		if err != nil {
			return nil, err
		}
		return &ActivationResult{AlreadyActive: true, ActiveDevices: int(count)}, nil

	case err == nil:
		// Устройство было деактивировано — включаем обратно под лимитом.
		ok, err := uc.devices.ReactivateWithinCap(ctx, env, device.ID, lic.ID, deviceName, DeviceCap)
		if err != nil {
			return nil, err
		}
		if !ok {
			return uc.limitOrRace(ctx, env, lic.ID, deviceID)
		}
		return uc.countResult(ctx, env, lic.ID, false)

	case errors.Is(err, domain.ErrDeviceNotFound):
		now := time.Now().UTC()
		candidate := &domain.DeviceActivation{
			LicenseID:        lic.ID,
			DeviceID:         deviceID,
			DeviceName:       deviceName,
			FirstActivatedAt: now,
			LastCheckIn:      now,
			IsActive:         true,
		}
		ok, err := uc.devices.InsertWithinCap(ctx, env, candidate, DeviceCap)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Конкурентная активация той же пары успела первой.
			return uc.limitOrRace(ctx, env, lic.ID, deviceID)
		}
		if err != nil {
			return nil, err
		}
		if !ok {
			return uc.limitOrRace(ctx, env, lic.ID, deviceID)
		}
		return uc.countResult(ctx, env, lic.ID, false)

	default:
		return nil, err
	}
}

// limitOrRace: условная запись не прошла. Либо лимит выбран, либо
// параллельный вызов уже активировал это же устройство — тогда это
// идемпотентный успех, а не отказ.
func (uc *ActivationUseCase) limitOrRace(ctx context.Context, env domain.Environment, licenseID, deviceID string) (*ActivationResult, error) {
	device, err := uc.devices.Find(ctx, env, licenseID, deviceID)
	if err == nil && device.IsActive {
		return uc.countResult(ctx, env, licenseID, true)
	}
	count, err := uc.devices.CountActive(ctx, env, licenseID)
	if err != nil {
		return nil, err
	}
	return nil, &domain.DeviceLimitError{Active: int(count)}
}

func (uc *ActivationUseCase) countResult(ctx context.Context, env domain.Environment, licenseID string, already bool) (*ActivationResult, error) {
	count, err := uc.devices.CountActive(ctx, env, licenseID)
	if err != nil {
		return nil, err
	}
	return &ActivationResult{AlreadyActive: already, ActiveDevices: int(count)}, nil
}

// Deactivate отвязывает устройство. Лицензия должна существовать,
// но не обязана быть активной: снять устройство с отмененной лицензии можно.
func (uc *ActivationUseCase) Deactivate(ctx context.Context, env domain.Environment, licenseKey, deviceID string) (*DeactivationResult, error) {
	lic, err := uc.licenses.FindByKey(ctx, env, licenseKey)
	if err != nil {
		return nil, err
	}

	device, err := uc.devices.Find(ctx, env, lic.ID, deviceID)
	if err != nil {
		return nil, err
	}

	if !device.IsActive {
		count, err := uc.devices.CountActive(ctx, env, lic.ID)
		if err != nil {
			return nil, err
		}
		return &DeactivationResult{AlreadyInactive: true, RemainingActive: int(count)}, nil
	}

	if err := uc.devices.Deactivate(ctx, env, device.ID); err != nil {
		return nil, err
	}
	count, err := uc.devices.CountActive(ctx, env, lic.ID)
	if err != nil {
		return nil, err
	}
	return &DeactivationResult{RemainingActive: int(count)}, nil
}

// Status — комбинированная проверка лицензии и конкретного устройства.
// Невалидный ключ не ошибка: просто is_license_valid=false.
// Для активного устройства обновляется heartbeat.
func (uc *ActivationUseCase) Status(ctx context.Context, env domain.Environment, licenseKey, deviceID string) (*StatusResult, error) {
	lic, err := uc.licenses.FindByKey(ctx, env, licenseKey)
	if errors.Is(err, domain.ErrLicenseNotFound) {
		return &StatusResult{}, nil
	}
	if err != nil {
		return nil, err
	}
	if !lic.IsActive {
		return &StatusResult{}, nil
	}

	device, err := uc.devices.Find(ctx, env, lic.ID, deviceID)
	if errors.Is(err, domain.ErrDeviceNotFound) {
		return &StatusResult{LicenseValid: true}, nil
	}
	if err != nil {
		return nil, err
	}
	if !device.IsActive {
		return &StatusResult{LicenseValid: true, DeviceKnown: true}, nil
	}

	if err := uc.devices.Touch(ctx, env, device.ID, ""); err != nil {
		return nil, err
	}
	count, err := uc.devices.CountActive(ctx, env, lic.ID)
	if err != nil {
		return nil, err
	}
	return &StatusResult{
		LicenseValid:    true,
		DeviceActivated: true,
		DeviceKnown:     true,
		ActiveDevices:   int(count),
	}, nil
}

// ListDevices — только активные привязки лицензии.
func (uc *ActivationUseCase) ListDevices(ctx context.Context, env domain.Environment, licenseKey string) ([]domain.DeviceActivation, error) {
	lic, err := uc.licenses.FindByKey(ctx, env, licenseKey)
	if err != nil {
		return nil, err
	}
	if !lic.IsActive {
		return nil, domain.ErrLicenseNotActive
	}
	return uc.devices.ListActive(ctx, env, lic.ID)
}
