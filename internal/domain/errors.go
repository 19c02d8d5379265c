package domain

import (
	"errors"
	"fmt"
)

var (
	ErrLicenseNotFound  = errors.New("license not found")
	ErrLicenseNotActive = errors.New("license is not active")
	ErrDeviceNotFound   = errors.New("device not found")
	ErrTrialNotFound    = errors.New("trial not found")
)

// DeviceLimitError несет текущее число активных устройств,
// чтобы клиент видел, сколько слотов занято.
type DeviceLimitError struct {
	Active int
}

func (e *DeviceLimitError) Error() string {
	return fmt.Sprintf("device limit reached: %d active devices", e.Active)
}
