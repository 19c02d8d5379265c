package domain

import (
	"time"
)

// TrialBlock — триал на устройство, один на device_id.
// is_trial_used после установки в true назад не сбрасывается.
type TrialBlock struct {
	ID                  uint      `gorm:"primaryKey" json:"-"`
	DeviceID            string    `gorm:"size:100;uniqueIndex;not null" json:"device_id"`
	TrialStartDate      time.Time `json:"trial_start_date"`
	TrialEndDate        time.Time `json:"trial_end_date"`
	IsTrialUsed         bool      `json:"is_trial_used"`
	PrivacyConsentGiven bool      `json:"privacy_consent_given"`
	CreatedAt           time.Time `json:"-"`
	UpdatedAt           time.Time `json:"-"`
}
