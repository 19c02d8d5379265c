package usecase

import (
	"context"
	"errors"
	"math"
	"time"

	"licensing-service/internal/domain"
	"licensing-service/internal/repository"
)

// TrialDays — длительность триала на устройство.
const TrialDays = 7

type TrialUseCase struct {
	trials  *repository.TrialRepository
	devices *repository.DeviceRepository
}

func NewTrialUseCase(tr *repository.TrialRepository, dr *repository.DeviceRepository) *TrialUseCase {
	return &TrialUseCase{trials: tr, devices: dr}
}

type TrialStatus struct {
	Active        bool
	Used          bool
	Expired       bool
	Started       bool // блок создан этим вызовом
	RemainingDays int
	StartDate     time.Time
	EndDate       time.Time
	ConsentGiven  bool
}

// Status лениво создает триал при первом запросе. Истечение фиксируется
// тут же, без фонового планировщика: переход в is_trial_used односторонний
// и идемпотентный.
func (uc *TrialUseCase) Status(ctx context.Context, env domain.Environment, deviceID string) (*TrialStatus, error) {
	trial, err := uc.trials.FindByDeviceID(ctx, env, deviceID)
	if errors.Is(err, domain.ErrTrialNotFound) {
		now := time.Now().UTC()
		trial = &domain.TrialBlock{
			DeviceID:       deviceID,
			TrialStartDate: now,
			TrialEndDate:   now.Add(TrialDays * 24 * time.Hour),
		}
		if err := uc.trials.Create(ctx, env, trial); err != nil {
			return nil, err
		}
		return &TrialStatus{
			Active:        true,
			Started:       true,
			RemainingDays: TrialDays,
			StartDate:     trial.TrialStartDate,
			EndDate:       trial.TrialEndDate,
		}, nil
	}
	if err != nil {
		return nil, err
	}

	status := &TrialStatus{
		StartDate:    trial.TrialStartDate,
		EndDate:      trial.TrialEndDate,
		ConsentGiven: trial.PrivacyConsentGiven,
	}

	if trial.IsTrialUsed {
		status.Used = true
		return status, nil
	}

	now := time.Now().UTC()
	if now.After(trial.TrialEndDate) {
		if err := uc.trials.MarkUsed(ctx, env, deviceID); err != nil {
			return nil, err
		}
		status.Used = true
		status.Expired = true
		return status, nil
	}

	// Остаток считается календарным потолком: 30 часов — это еще 2 дня.
	remaining := int(math.Ceil(trial.TrialEndDate.Sub(now).Hours() / 24))
	if remaining > TrialDays {
		remaining = TrialDays
	}
	if remaining < 0 {
		remaining = 0
	}
	status.Active = true
	status.RemainingDays = remaining
	return status, nil
}

// UpdateConsent ставит флаг согласия, не трогая сроки триала.
// Если блока еще нет, создает его.
func (uc *TrialUseCase) UpdateConsent(ctx context.Context, env domain.Environment, deviceID string, given bool) (created bool, err error) {
	_, err = uc.trials.FindByDeviceID(ctx, env, deviceID)
	if errors.Is(err, domain.ErrTrialNotFound) {
		now := time.Now().UTC()
		trial := &domain.TrialBlock{
			DeviceID:            deviceID,
			TrialStartDate:      now,
			TrialEndDate:        now.Add(TrialDays * 24 * time.Hour),
			PrivacyConsentGiven: given,
		}
		if err := uc.trials.Create(ctx, env, trial); err != nil {
			return false, err
		}
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, uc.trials.SetConsent(ctx, env, deviceID, given)
}

// DeleteAccount — GDPR-удаление всех данных устройства: триал и все
// его активации. Отсутствие строк не ошибка, вызов идемпотентен.
func (uc *TrialUseCase) DeleteAccount(ctx context.Context, env domain.Environment, deviceID string) error {
	if err := uc.trials.DeleteByDeviceID(ctx, env, deviceID); err != nil {
		return err
	}
	return uc.devices.DeleteByDeviceID(ctx, env, deviceID)
}
