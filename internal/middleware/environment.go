package middleware

import (
	"licensing-service/internal/domain"

	"github.com/gin-gonic/gin"
)

const environmentKey = "environment"

// Environment резолвит партицию запроса (заголовок > query > дефолт)
// и кладет ее в контекст для хендлеров.
func Environment(def domain.Environment) gin.HandlerFunc {
	return func(c *gin.Context) {
		env := domain.ResolveEnvironment(c.GetHeader("X-Environment"), c.Query("env"), def)
		c.Set(environmentKey, env)
		c.Next()
	}
}

func EnvironmentFrom(c *gin.Context) domain.Environment {
	if v, ok := c.Get(environmentKey); ok {
		if env, ok := v.(domain.Environment); ok {
			return env
		}
	}
	return domain.EnvTest
}
