package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pageza/foodgram/backend/internal/logger"
)

// ErrorResponse represents an unexpected-error response
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// ErrorHandler logs errors attached with c.Error and turns panics into a
// JSON 500. Handlers remain responsible for writing their own responses.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic recovered", "error", err, "method", c.Request.Method, "path", c.Request.URL.Path)
				c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Detail: "internal server error"})
			}
		}()

		c.Next()

		for _, ginErr := range c.Errors {
			logger.Error("request failed",
				"error", ginErr.Err,
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"status", c.Writer.Status(),
			)
		}
		if len(c.Errors) > 0 && !c.Writer.Written() {
			c.JSON(http.StatusInternalServerError, ErrorResponse{Detail: "internal server error"})
		}
	}
}
