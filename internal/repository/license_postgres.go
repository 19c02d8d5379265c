package repository

import (
	"context"
	"errors"

	"licensing-service/internal/domain"

	"gorm.io/gorm"
)

type LicenseRepository struct {
	store *Store
}

func NewLicenseRepository(store *Store) *LicenseRepository {
	return &LicenseRepository{store: store}
}

func (r *LicenseRepository) findOne(ctx context.Context, env domain.Environment, query string, arg any) (*domain.License, error) {
	var lic domain.License
	err := r.store.DB(env).WithContext(ctx).Where(query, arg).First(&lic).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrLicenseNotFound
		}
		return nil, err
	}
	return &lic, nil
}

func (r *LicenseRepository) FindByKey(ctx context.Context, env domain.Environment, key string) (*domain.License, error) {
	return r.findOne(ctx, env, "license_key = ?", key)
}

func (r *LicenseRepository) FindByID(ctx context.Context, env domain.Environment, id string) (*domain.License, error) {
	return r.findOne(ctx, env, "id = ?", id)
}

func (r *LicenseRepository) FindByEmail(ctx context.Context, env domain.Environment, email string) (*domain.License, error) {
	return r.findOne(ctx, env, "email = ?", email)
}

func (r *LicenseRepository) FindBySubscriptionID(ctx context.Context, env domain.Environment, subscriptionID string) (*domain.License, error) {
	return r.findOne(ctx, env, "stripe_subscription_id = ?", subscriptionID)
}

func (r *LicenseRepository) FindByPaymentID(ctx context.Context, env domain.Environment, paymentID string) (*domain.License, error) {
	return r.findOne(ctx, env, "stripe_payment_id = ?", paymentID)
}

func (r *LicenseRepository) Create(ctx context.Context, env domain.Environment, lic *domain.License) error {
	return r.store.DB(env).WithContext(ctx).Create(lic).Error
}

// Update применяет частичный patch к лицензии по id.
func (r *LicenseRepository) Update(ctx context.Context, env domain.Environment, id string, patch map[string]any) error {
	return r.store.DB(env).WithContext(ctx).
		Model(&domain.License{}).
		Where("id = ?", id).
		Updates(patch).Error
}

func (r *LicenseRepository) IDsByEmail(ctx context.Context, env domain.Environment, email string) ([]string, error) {
	var ids []string
	err := r.store.DB(env).WithContext(ctx).
		Model(&domain.License{}).
		Where("email = ?", email).
		Pluck("id", &ids).Error
	return ids, err
}

// AnonymizeByEmail стирает персональные данные лицензий вместо удаления:
// сама запись остается для биллинговой сверки.
func (r *LicenseRepository) AnonymizeByEmail(ctx context.Context, env domain.Environment, email string) error {
	return r.store.DB(env).WithContext(ctx).
		Model(&domain.License{}).
		Where("email = ?", email).
		Updates(map[string]any{"email": "", "is_active": false}).Error
}
