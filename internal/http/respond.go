package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/savitara/auth-service/internal/apperr"
	"github.com/savitara/auth-service/internal/log"
)

type envelope struct {
	Success bool          `json:"success"`
	Message string        `json:"message,omitempty"`
	Data    any           `json:"data,omitempty"`
	Error   *apperr.Error `json:"error,omitempty"`
}

func ok(c *gin.Context, status int, message string, data any) {
	c.JSON(status, envelope{Success: true, Message: message, Data: data})
}

// fail is the single boundary that maps error kinds to transport responses.
// Known kinds keep their code and status; everything else becomes a generic
// 500 with the cause logged server-side only.
func fail(c *gin.Context, err error) {
	if ae := apperr.As(err); ae != nil {
		if ae.Status >= http.StatusInternalServerError {
			log.WithDD(c.Request.Context(), log.L()).Error("request failed",
				zap.String("code", ae.Code), zap.Error(err))
		}
		c.AbortWithStatusJSON(ae.Status, envelope{Success: false, Error: ae})
		return
	}
	log.WithDD(c.Request.Context(), log.L()).Error("unexpected error", zap.Error(err))
	c.AbortWithStatusJSON(http.StatusInternalServerError,
		envelope{Success: false, Error: apperr.ErrInternal})
}
