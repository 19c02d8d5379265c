package handlers

import (
	"log"
	"net/http"

	"licensing-service/internal/middleware"
	"licensing-service/internal/usecase"

	"github.com/gin-gonic/gin"
)

type AccountHandler struct {
	lifecycle *usecase.LifecycleUseCase
}

func NewAccountHandler(lifecycle *usecase.LifecycleUseCase) *AccountHandler {
	return &AccountHandler{lifecycle: lifecycle}
}

type deleteAccountReq struct {
	Email string `json:"email" binding:"required,email"`
}

// DeleteAccount — GDPR-удаление по email. Эндпоинт за сервисным токеном.
func (h *AccountHandler) DeleteAccount(c *gin.Context) {
	var req deleteAccountReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "valid email is required"})
		return
	}

	env := middleware.EnvironmentFrom(c)
	if err := h.lifecycle.DeleteAccountData(c.Request.Context(), env, req.Email); err != nil {
		log.Printf("delete account: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "an unexpected error occurred"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
