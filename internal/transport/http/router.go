package handlers

import (
	"time"

	"licensing-service/internal/domain"
	"licensing-service/internal/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func NewRouter(
	license *LicenseHandler,
	trial *TrialHandler,
	account *AccountHandler,
	webhook *WebhookHandler,
	limiter *middleware.RateLimiter,
	defaultEnv domain.Environment,
	serviceTokenSecret string,
) *gin.Engine {
	r := gin.Default()

	// Десктоп-клиент ходит с file:// и из renderer-а, поэтому origin любой.
	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Environment", "Stripe-Signature"}
	config.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	r.Use(cors.New(config))

	r.Use(middleware.Environment(defaultEnv))

	api := r.Group("/api/v1")
	{
		lic := api.Group("/license")
		{
			lic.POST("/activate", limiter.Limit("activate", 10, 1*time.Minute), license.Activate)
			lic.POST("/deactivate", license.Deactivate)
			lic.POST("/status", license.Status)
			lic.POST("/devices", license.Devices)
		}
		tr := api.Group("/trial")
		{
			tr.POST("/status", limiter.Limit("trial", 30, 1*time.Minute), trial.Status)
			tr.POST("/consent", trial.UpdateConsent)
			tr.POST("/delete", trial.DeleteTrialAccount)
		}
		api.POST("/webhooks/stripe", webhook.HandleStripe)

		acc := api.Group("/account")
		acc.Use(middleware.ServiceAuth(serviceTokenSecret))
		{
			acc.DELETE("", account.DeleteAccount)
		}
	}

	return r
}
