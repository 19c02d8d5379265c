package repository

import (
	"context"
	"errors"

	"licensing-service/internal/domain"

	"gorm.io/gorm"
)

type TrialRepository struct {
	store *Store
}

func NewTrialRepository(store *Store) *TrialRepository {
	return &TrialRepository{store: store}
}

func (r *TrialRepository) FindByDeviceID(ctx context.Context, env domain.Environment, deviceID string) (*domain.TrialBlock, error) {
	var trial domain.TrialBlock
	err := r.store.DB(env).WithContext(ctx).
		Where("device_id = ?", deviceID).
		First(&trial).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTrialNotFound
		}
		return nil, err
	}
	return &trial, nil
}

func (r *TrialRepository) Create(ctx context.Context, env domain.Environment, trial *domain.TrialBlock) error {
	return r.store.DB(env).WithContext(ctx).Create(trial).Error
}

// MarkUsed — односторонний переход: is_trial_used только взводится,
// метода для сброса нет намеренно.
func (r *TrialRepository) MarkUsed(ctx context.Context, env domain.Environment, deviceID string) error {
	return r.store.DB(env).WithContext(ctx).
		Model(&domain.TrialBlock{}).
		Where("device_id = ?", deviceID).
		Update("is_trial_used", true).Error
}

func (r *TrialRepository) SetConsent(ctx context.Context, env domain.Environment, deviceID string, given bool) error {
	return r.store.DB(env).WithContext(ctx).
		Model(&domain.TrialBlock{}).
		Where("device_id = ?", deviceID).
		Update("privacy_consent_given", given).Error
}

func (r *TrialRepository) DeleteByDeviceID(ctx context.Context, env domain.Environment, deviceID string) error {
	return r.store.DB(env).WithContext(ctx).
		Where("device_id = ?", deviceID).
		Delete(&domain.TrialBlock{}).Error
}
