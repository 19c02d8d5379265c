package handlers

import (
	"errors"
	"log"
	"net/http"

	"licensing-service/internal/domain"
	"licensing-service/internal/middleware"
	"licensing-service/internal/usecase"

	"github.com/gin-gonic/gin"
)

type LicenseHandler struct {
	activation *usecase.ActivationUseCase
}

func NewLicenseHandler(activation *usecase.ActivationUseCase) *LicenseHandler {
	return &LicenseHandler{activation: activation}
}

type activateReq struct {
	LicenseKey string `json:"licenseKey" binding:"required"`
	DeviceID   string `json:"deviceId" binding:"required,max=100"`
	DeviceName string `json:"deviceName" binding:"max=100"`
}

type deactivateReq struct {
	LicenseKey string `json:"licenseKey" binding:"required"`
	DeviceID   string `json:"deviceId" binding:"required,max=100"`
}

type statusReq struct {
	LicenseKey string `json:"licenseKey" binding:"required"`
	DeviceID   string `json:"deviceId" binding:"required,max=100"`
}

type devicesReq struct {
	LicenseKey string `json:"licenseKey" binding:"required"`
}

func (h *LicenseHandler) Activate(c *gin.Context) {
	var req activateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "licenseKey and deviceId are required"})
		return
	}
	if !usecase.ValidLicenseKey(req.LicenseKey) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid license key format"})
		return
	}

	env := middleware.EnvironmentFrom(c)
	res, err := h.activation.Activate(c.Request.Context(), env, req.LicenseKey, req.DeviceID, req.DeviceName)
	if err != nil {
		h.renderActivationError(c, err)
		return
	}

	message := "device activated"
	if res.AlreadyActive {
		message = "device already activated"
	}
	c.JSON(http.StatusOK, gin.H{
		"success":              true,
		"message":              message,
		"active_devices_count": res.ActiveDevices,
	})
}

func (h *LicenseHandler) Deactivate(c *gin.Context) {
	var req deactivateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "licenseKey and deviceId are required"})
		return
	}
	if !usecase.ValidLicenseKey(req.LicenseKey) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid license key format"})
		return
	}

	env := middleware.EnvironmentFrom(c)
	res, err := h.activation.Deactivate(c.Request.Context(), env, req.LicenseKey, req.DeviceID)
	if err != nil {
		h.renderActivationError(c, err)
		return
	}

	message := "device deactivated"
	if res.AlreadyInactive {
		message = "device already deactivated"
	}
	c.JSON(http.StatusOK, gin.H{
		"success":                  true,
		"message":                  message,
		"remaining_active_devices": res.RemainingActive,
	})
}

// Status никогда не отвечает ошибкой на неизвестный ключ —
// клиент просто видит is_license_valid=false.
func (h *LicenseHandler) Status(c *gin.Context) {
	var req statusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "licenseKey and deviceId are required"})
		return
	}

	env := middleware.EnvironmentFrom(c)
	res, err := h.activation.Status(c.Request.Context(), env, req.LicenseKey, req.DeviceID)
	if err != nil {
		h.renderActivationError(c, err)
		return
	}

	body := gin.H{
		"success":             res.LicenseValid && res.DeviceActivated,
		"is_license_valid":    res.LicenseValid,
		"is_device_activated": res.DeviceActivated,
	}
	switch {
	case !res.LicenseValid:
		body["message"] = "license is not valid"
	case !res.DeviceKnown:
		body["message"] = "device is not activated"
	case !res.DeviceActivated:
		body["message"] = "device is deactivated"
	default:
		body["message"] = "license and device are valid"
		body["active_devices_count"] = res.ActiveDevices
	}
	c.JSON(http.StatusOK, body)
}

func (h *LicenseHandler) Devices(c *gin.Context) {
	var req devicesReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "licenseKey is required"})
		return
	}
	if !usecase.ValidLicenseKey(req.LicenseKey) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid license key format"})
		return
	}

	env := middleware.EnvironmentFrom(c)
	devices, err := h.activation.ListDevices(c.Request.Context(), env, req.LicenseKey)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrLicenseNotFound):
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "license not found"})
		case errors.Is(err, domain.ErrLicenseNotActive):
			c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "license is not active"})
		default:
			log.Printf("list devices: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "internal error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"devices": devices,
	})
}

// Внутренние ошибки хранилища наружу не отдаем, только логируем.
func (h *LicenseHandler) renderActivationError(c *gin.Context, err error) {
	var limitErr *domain.DeviceLimitError
	switch {
	case errors.As(err, &limitErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":                "maximum number of devices reached",
			"active_devices_count": limitErr.Active,
		})
	case errors.Is(err, domain.ErrLicenseNotFound):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid license key"})
	case errors.Is(err, domain.ErrLicenseNotActive):
		c.JSON(http.StatusBadRequest, gin.H{"error": "license is not active"})
	case errors.Is(err, domain.ErrDeviceNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
	default:
		log.Printf("activation: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "an unexpected error occurred"})
	}
}
