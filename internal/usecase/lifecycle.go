package usecase

import (
	"context"
	"errors"
	"log"
	"time"

	"licensing-service/internal/domain"
	"licensing-service/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LifecycleUseCase применяет события биллинга к лицензиям.
// Все обработчики должны переживать повторную доставку одного события:
// повторное применение терминального состояния — no-op.
type LifecycleUseCase struct {
	licenses *repository.LicenseRepository
	devices  *repository.DeviceRepository
}

func NewLifecycleUseCase(lr *repository.LicenseRepository, dr *repository.DeviceRepository) *LifecycleUseCase {
	return &LifecycleUseCase{licenses: lr, devices: dr}
}

// CheckoutEvent — уже верифицированные данные завершенной оплаты.
type CheckoutEvent struct {
	Email          string
	DeviceID       string
	DeviceName     string
	CustomerID     string
	PaymentID      string
	SubscriptionID string
	PeriodEnd      *time.Time
}

type CheckoutResult struct {
	LicenseKey string
	Created    bool
	Skipped    bool
	Reason     string
}

// HandleCheckoutCompleted создает или обновляет лицензию после оплаты.
// Лестница дедупликации: внешняя ссылка -> уже лицензированное
// устройство -> существующая лицензия по email -> новая лицензия.
func (uc *LifecycleUseCase) HandleCheckoutCompleted(ctx context.Context, env domain.Environment, ev CheckoutEvent) (*CheckoutResult, error) {
	// 1. Повторная доставка того же события не должна плодить лицензии.
	if ev.SubscriptionID != "" {
		if lic, err := uc.licenses.FindBySubscriptionID(ctx, env, ev.SubscriptionID); err == nil {
			return &CheckoutResult{LicenseKey: lic.LicenseKey, Skipped: true, Reason: "subscription already recorded"}, nil
		} else if !errors.Is(err, domain.ErrLicenseNotFound) {
			return nil, err
		}
	}
	if ev.PaymentID != "" {
		if lic, err := uc.licenses.FindByPaymentID(ctx, env, ev.PaymentID); err == nil {
			return &CheckoutResult{LicenseKey: lic.LicenseKey, Skipped: true, Reason: "payment already recorded"}, nil
		} else if !errors.Is(err, domain.ErrLicenseNotFound) {
			return nil, err
		}
	}

	// 2. Устройство с уже действующей лицензией не лицензируем повторно.
	if ev.DeviceID != "" {
		activations, err := uc.devices.ListActiveByDeviceID(ctx, env, ev.DeviceID)
		if err != nil {
			return nil, err
		}
		for _, act := range activations {
			lic, err := uc.licenses.FindByID(ctx, env, act.LicenseID)
			if err == nil && lic.IsActive {
				return &CheckoutResult{LicenseKey: lic.LicenseKey, Skipped: true, Reason: "device already licensed"}, nil
			}
		}
	}

	// 3. По email лицензия уже есть — обновляем ее, а не создаем вторую.
	if lic, err := uc.licenses.FindByEmail(ctx, env, ev.Email); err == nil {
		patch := map[string]any{
			"is_active":              true,
			"cancelled_at":           nil,
			"cancels_at_period_end":  false,
			"stripe_customer_id":     ev.CustomerID,
			"stripe_payment_id":      ev.PaymentID,
			"stripe_subscription_id": ev.SubscriptionID,
		}
		if ev.PeriodEnd != nil {
			patch["subscription_end_date"] = *ev.PeriodEnd
		}
		if err := uc.licenses.Update(ctx, env, lic.ID, patch); err != nil {
			return nil, err
		}
		uc.activatePurchasingDevice(ctx, env, lic.ID, ev)
		return &CheckoutResult{LicenseKey: lic.LicenseKey}, nil
	} else if !errors.Is(err, domain.ErrLicenseNotFound) {
		return nil, err
	}

	// 4. Новая лицензия. Коллизия ключа крайне маловероятна, но ключ
	// уникален в базе, поэтому при дубликате пробуем другой.
	lic := &domain.License{
		ID:                   uuid.NewString(),
		Email:                ev.Email,
		IsActive:             true,
		StripeCustomerID:     ev.CustomerID,
		StripePaymentID:      ev.PaymentID,
		StripeSubscriptionID: ev.SubscriptionID,
		SubscriptionEndDate:  ev.PeriodEnd,
	}
	for attempt := 0; attempt < 3; attempt++ {
		lic.LicenseKey = GenerateLicenseKey()
		err := uc.licenses.Create(ctx, env, lic)
		if err == nil {
			break
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) && attempt < 2 {
			continue
		}
		return nil, err
	}

	uc.activatePurchasingDevice(ctx, env, lic.ID, ev)
	return &CheckoutResult{LicenseKey: lic.LicenseKey, Created: true}, nil
}

// Покупающее устройство активируется сразу, чтобы приложение заработало
// без отдельного вызова activate. Ошибка здесь не валит обработку оплаты.
func (uc *LifecycleUseCase) activatePurchasingDevice(ctx context.Context, env domain.Environment, licenseID string, ev CheckoutEvent) {
	if ev.DeviceID == "" {
		return
	}
	now := time.Now().UTC()
	_, err := uc.devices.InsertWithinCap(ctx, env, &domain.DeviceActivation{
		LicenseID:        licenseID,
		DeviceID:         ev.DeviceID,
		DeviceName:       ev.DeviceName,
		FirstActivatedAt: now,
		LastCheckIn:      now,
		IsActive:         true,
	}, DeviceCap)
	if err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		log.Printf("checkout: failed to activate purchasing device %s: %v", ev.DeviceID, err)
	}
}

// HandleSubscriptionUpdated: cancelAtPeriodEnd=true помечает отмену,
// лицензия остается рабочей до конца периода. false — отмена отозвана.
func (uc *LifecycleUseCase) HandleSubscriptionUpdated(ctx context.Context, env domain.Environment, subscriptionID string, cancelAtPeriodEnd bool) error {
	lic, err := uc.licenses.FindBySubscriptionID(ctx, env, subscriptionID)
	if err != nil {
		return err
	}
	if cancelAtPeriodEnd {
		return uc.licenses.Update(ctx, env, lic.ID, map[string]any{
			"cancelled_at":          time.Now().UTC(),
			"cancels_at_period_end": true,
		})
	}
	return uc.licenses.Update(ctx, env, lic.ID, map[string]any{
		"cancelled_at":          nil,
		"cancels_at_period_end": false,
	})
}

// HandleSubscriptionDeleted — конец периода наступил, биллинг доставил
// терминальное состояние: жесткая деактивация лицензии и всех устройств.
// Своего таймера на период нет намеренно.
func (uc *LifecycleUseCase) HandleSubscriptionDeleted(ctx context.Context, env domain.Environment, subscriptionID string, cancelledAt time.Time) error {
	lic, err := uc.licenses.FindBySubscriptionID(ctx, env, subscriptionID)
	if err != nil {
		return err
	}
	if err := uc.licenses.Update(ctx, env, lic.ID, map[string]any{
		"is_active":             false,
		"cancelled_at":          cancelledAt,
		"cancels_at_period_end": true,
	}); err != nil {
		return err
	}
	return uc.devices.DeactivateAllForLicense(ctx, env, lic.ID)
}

// HandleImmediateCancellation — немедленная отмена без ожидания периода.
func (uc *LifecycleUseCase) HandleImmediateCancellation(ctx context.Context, env domain.Environment, subscriptionID string) error {
	lic, err := uc.licenses.FindBySubscriptionID(ctx, env, subscriptionID)
	if err != nil {
		return err
	}
	return uc.licenses.Update(ctx, env, lic.ID, map[string]any{
		"is_active":             false,
		"cancelled_at":          time.Now().UTC(),
		"cancels_at_period_end": false,
	})
}

// HandleRefund: возврат денег всегда означает немедленную деактивацию,
// независимо от режима предыдущей отмены.
func (uc *LifecycleUseCase) HandleRefund(ctx context.Context, env domain.Environment, paymentID string) error {
	lic, err := uc.licenses.FindByPaymentID(ctx, env, paymentID)
	if err != nil {
		return err
	}
	if err := uc.licenses.Update(ctx, env, lic.ID, map[string]any{"is_active": false}); err != nil {
		return err
	}
	return uc.devices.DeactivateAllForLicense(ctx, env, lic.ID)
}

// HandleInvoicePaid — успешный платеж продлевает подписку и
// гарантирует, что лицензия активна.
func (uc *LifecycleUseCase) HandleInvoicePaid(ctx context.Context, env domain.Environment, subscriptionID string, periodEnd *time.Time) error {
	lic, err := uc.licenses.FindBySubscriptionID(ctx, env, subscriptionID)
	if err != nil {
		return err
	}
	patch := map[string]any{"is_active": true}
	if periodEnd != nil {
		patch["subscription_end_date"] = *periodEnd
	}
	return uc.licenses.Update(ctx, env, lic.ID, patch)
}

// DeleteAccountData — GDPR-удаление по email: привязки устройств
// удаляются, лицензии анонимизируются.
func (uc *LifecycleUseCase) DeleteAccountData(ctx context.Context, env domain.Environment, email string) error {
	ids, err := uc.licenses.IDsByEmail(ctx, env, email)
	if err != nil {
		return err
	}
	if err := uc.devices.DeleteByLicenseIDs(ctx, env, ids); err != nil {
		return err
	}
	return uc.licenses.AnonymizeByEmail(ctx, env, email)
}
