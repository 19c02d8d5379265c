package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"licensing-service/internal/middleware"
	"licensing-service/internal/usecase"

	"github.com/gin-gonic/gin"
)

type TrialHandler struct {
	trial *usecase.TrialUseCase
}

func NewTrialHandler(trial *usecase.TrialUseCase) *TrialHandler {
	return &TrialHandler{trial: trial}
}

type trialStatusReq struct {
	DeviceID string `json:"deviceId" binding:"required,max=100"`
}

// Поле consentGiven принимаем сырым, чтобы отличить false от
// отсутствия и отклонить не-булево значение.
type consentReq struct {
	DeviceID     string          `json:"deviceId" binding:"required,max=100"`
	ConsentGiven json.RawMessage `json:"consentGiven" binding:"required"`
}

func (h *TrialHandler) Status(c *gin.Context) {
	var req trialStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "deviceId is required"})
		return
	}

	env := middleware.EnvironmentFrom(c)
	status, err := h.trial.Status(c.Request.Context(), env, req.DeviceID)
	if err != nil {
		log.Printf("trial status: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "an unexpected error occurred"})
		return
	}

	var message string
	switch {
	case status.Started:
		message = "trial started"
	case status.Used && status.Expired:
		message = "trial has expired"
	case status.Used:
		message = "trial already used"
	default:
		message = "trial is active"
	}

	c.JSON(http.StatusOK, gin.H{
		"success":               true,
		"is_trial_active":       status.Active,
		"remaining_days":        status.RemainingDays,
		"trial_start_date":      status.StartDate,
		"trial_end_date":        status.EndDate,
		"privacy_consent_given": status.ConsentGiven,
		"message":               message,
	})
}

func (h *TrialHandler) UpdateConsent(c *gin.Context) {
	var req consentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "deviceId and consentGiven are required"})
		return
	}

	var given bool
	if err := json.Unmarshal(req.ConsentGiven, &given); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "consentGiven must be a boolean"})
		return
	}

	env := middleware.EnvironmentFrom(c)
	created, err := h.trial.UpdateConsent(c.Request.Context(), env, req.DeviceID, given)
	if err != nil {
		log.Printf("update consent: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "an unexpected error occurred"})
		return
	}

	message := "privacy consent updated"
	if created {
		message = "trial created and privacy consent set"
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"message":      message,
		"consentGiven": given,
		"trialCreated": created,
	})
}

// DeleteTrialAccount идемпотентен: повторный вызов без оставшихся
// строк — тоже успех.
func (h *TrialHandler) DeleteTrialAccount(c *gin.Context) {
	var req trialStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "deviceId is required"})
		return
	}

	env := middleware.EnvironmentFrom(c)
	if err := h.trial.DeleteAccount(c.Request.Context(), env, req.DeviceID); err != nil {
		log.Printf("delete trial account: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "an unexpected error occurred"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "trial account deleted",
	})
}
