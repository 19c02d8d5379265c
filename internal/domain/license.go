package domain

import (
	"time"
)

// License — купленная лицензия. Ключ выдается после оплаты,
// stripe_* поля связывают запись с биллингом.
type License struct {
	ID                   string     `gorm:"type:uuid;primaryKey" json:"id"`
	LicenseKey           string     `gorm:"size:20;uniqueIndex;not null" json:"license_key"`
	Email                string     `gorm:"size:100;index" json:"email"`
	IsActive             bool       `json:"is_active"`
	CancelledAt          *time.Time `json:"cancelled_at,omitempty"`
	CancelsAtPeriodEnd   bool       `json:"cancels_at_period_end"`
	StripeCustomerID     string     `gorm:"size:64" json:"-"`
	StripePaymentID      string     `gorm:"size:64;index" json:"-"`
	StripeSubscriptionID string     `gorm:"size:64;index" json:"-"`
	SubscriptionEndDate  *time.Time `json:"subscription_end_date,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}
