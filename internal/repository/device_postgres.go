package repository

import (
	"context"
	"errors"
	"time"

	"licensing-service/internal/domain"

	"gorm.io/gorm"
)

type DeviceRepository struct {
	store *Store
}

func NewDeviceRepository(store *Store) *DeviceRepository {
	return &DeviceRepository{store: store}
}

func (r *DeviceRepository) Find(ctx context.Context, env domain.Environment, licenseID, deviceID string) (*domain.DeviceActivation, error) {
	var device domain.DeviceActivation
	err := r.store.DB(env).WithContext(ctx).
		Where("license_id = ? AND device_id = ?", licenseID, deviceID).
		First(&device).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrDeviceNotFound
		}
		return nil, err
	}
	return &device, nil
}

func (r *DeviceRepository) CountActive(ctx context.Context, env domain.Environment, licenseID string) (int64, error) {
	var count int64
	err := r.store.DB(env).WithContext(ctx).
		Model(&domain.DeviceActivation{}).
		Where("license_id = ? AND is_active = ?", licenseID, true).
		Count(&count).Error
	return count, err
}

func (r *DeviceRepository) ListActive(ctx context.Context, env domain.Environment, licenseID string) ([]domain.DeviceActivation, error) {
	var devices []domain.DeviceActivation
	err := r.store.DB(env).WithContext(ctx).
		Where("license_id = ? AND is_active = ?", licenseID, true).
		Order("last_check_in desc").
		Find(&devices).Error
	return devices, err
}

// ListActiveByDeviceID — все активные привязки конкретного устройства
// независимо от лицензии.
func (r *DeviceRepository) ListActiveByDeviceID(ctx context.Context, env domain.Environment, deviceID string) ([]domain.DeviceActivation, error) {
	var devices []domain.DeviceActivation
	err := r.store.DB(env).WithContext(ctx).
		Where("device_id = ? AND is_active = ?", deviceID, true).
		Find(&devices).Error
	return devices, err
}

// Touch обновляет heartbeat устройства и, если передано, его имя.
func (r *DeviceRepository) Touch(ctx context.Context, env domain.Environment, id uint, deviceName string) error {
	patch := map[string]any{"last_check_in": time.Now().UTC()}
	if deviceName != "" {
		patch["device_name"] = deviceName
	}
	return r.store.DB(env).WithContext(ctx).
		Model(&domain.DeviceActivation{}).
		Where("id = ?", id).
		Updates(patch).Error
}

// InsertWithinCap вставляет новую активацию одним условным запросом:
// вставка и проверка лимита не должны быть двумя отдельными вызовами,
// иначе две конкурентные активации обе проходят проверку.
// Возвращает false, если лимит уже выбран.
func (r *DeviceRepository) InsertWithinCap(ctx context.Context, env domain.Environment, d *domain.DeviceActivation, limit int) (bool, error) {
	table := env.TablePrefix() + "device_activations"
	res := r.store.DB(env).WithContext(ctx).Exec(
		"INSERT INTO "+table+" (license_id, device_id, device_name, first_activated_at, last_check_in, is_active) "+
			"SELECT ?, ?, ?, ?, ?, ? "+
			"WHERE (SELECT COUNT(*) FROM "+table+" WHERE license_id = ? AND is_active = ?) < ?",
		d.LicenseID, d.DeviceID, d.DeviceName, d.FirstActivatedAt, d.LastCheckIn, true,
		d.LicenseID, true, limit,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ReactivateWithinCap включает ранее деактивированную запись, тоже одним
// условным запросом с подзапросом по лимиту.
func (r *DeviceRepository) ReactivateWithinCap(ctx context.Context, env domain.Environment, id uint, licenseID, deviceName string, limit int) (bool, error) {
	db := r.store.DB(env).WithContext(ctx)

	countActive := db.Model(&domain.DeviceActivation{}).
		Select("count(*)").
		Where("license_id = ? AND is_active = ?", licenseID, true)

	patch := map[string]any{
		"is_active":     true,
		"last_check_in": time.Now().UTC(),
	}
	if deviceName != "" {
		patch["device_name"] = deviceName
	}

	res := db.Model(&domain.DeviceActivation{}).
		Where("id = ? AND is_active = ?", id, false).
		Where("(?) < ?", countActive, limit).
		Updates(patch)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *DeviceRepository) Deactivate(ctx context.Context, env domain.Environment, id uint) error {
	return r.store.DB(env).WithContext(ctx).
		Model(&domain.DeviceActivation{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_active":     false,
			"last_check_in": time.Now().UTC(),
		}).Error
}

func (r *DeviceRepository) DeactivateAllForLicense(ctx context.Context, env domain.Environment, licenseID string) error {
	return r.store.DB(env).WithContext(ctx).
		Model(&domain.DeviceActivation{}).
		Where("license_id = ?", licenseID).
		Update("is_active", false).Error
}

func (r *DeviceRepository) DeleteByDeviceID(ctx context.Context, env domain.Environment, deviceID string) error {
	return r.store.DB(env).WithContext(ctx).
		Where("device_id = ?", deviceID).
		Delete(&domain.DeviceActivation{}).Error
}

func (r *DeviceRepository) DeleteByLicenseIDs(ctx context.Context, env domain.Environment, licenseIDs []string) error {
	if len(licenseIDs) == 0 {
		return nil
	}
	return r.store.DB(env).WithContext(ctx).
		Where("license_id IN ?", licenseIDs).
		Delete(&domain.DeviceActivation{}).Error
}
