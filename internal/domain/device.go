package domain

import (
	"time"
)

// DeviceActivation — привязка устройства к лицензии.
// На пару (license_id, device_id) существует максимум одна строка,
// повторная активация обновляет её, а не вставляет дубликат.
// Составной уникальный индекс создается в repository.NewStore,
// имя индекса должно нести префикс партиции.
type DeviceActivation struct {
	ID               uint      `gorm:"primaryKey" json:"-"`
	LicenseID        string    `gorm:"type:uuid;index;not null" json:"-"`
	DeviceID         string    `gorm:"size:100;index;not null" json:"device_id"`
	DeviceName       string    `gorm:"size:100" json:"device_name"`
	FirstActivatedAt time.Time `json:"first_activated_at"`
	LastCheckIn      time.Time `json:"last_check_in"`
	IsActive         bool      `gorm:"index" json:"is_active"`
}
