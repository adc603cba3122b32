package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/airtide/airtide/pkg/logger"
)

// Response is the standard JSON envelope for every API reply.
type Response struct {
	Status  int        `json:"status"`
	Message string     `json:"message,omitempty"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// RespondOK writes a 200 response with the given message and payload.
func RespondOK(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, Response{
		Status:  http.StatusOK,
		Message: message,
		Data:    data,
	})
}

// RespondWithError writes a standardized error response and aborts the
// request.
func RespondWithError(c *gin.Context, statusCode int, reqErr *RequestError) {
	logger.FromContext(c.Request.Context()).Warn("request failed",
		"status", statusCode,
		"path", c.Request.URL.Path,
		"reason", reqErr.Reason,
		"error", reqErr.Err,
	)
	c.AbortWithStatusJSON(statusCode, Response{
		Status: statusCode,
		Error:  reqErr.GetErrorInfo(),
	})
}

// RespondWithServerError writes a 500 response with a stable error code.
func RespondWithServerError(c *gin.Context, code, message string, err error) {
	logger.FromContext(c.Request.Context()).Error("request failed",
		"path", c.Request.URL.Path,
		"code", code,
		"error", err,
	)
	c.AbortWithStatusJSON(http.StatusInternalServerError, Response{
		Status: http.StatusInternalServerError,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	})
}
