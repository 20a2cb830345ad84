package response

import (
	"errors"
	"net/http"

	"fastpay/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// CtxRequestID is the gin context key holding the request ID.
	CtxRequestID = "request_id"
	// HeaderRequestID is echoed on every response.
	HeaderRequestID = "X-Request-ID"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

// OK sends a 200 response. Bodies are written as-is so the browser client
// can read fields like balance at the top level.
func OK(c *gin.Context, data interface{}) {
	c.Header(HeaderRequestID, RequestID(c))
	c.JSON(http.StatusOK, data)
}

// Created sends a 201 response.
func Created(c *gin.Context, data interface{}) {
	c.Header(HeaderRequestID, RequestID(c))
	c.JSON(http.StatusCreated, data)
}

// Error sends an error response. It checks if err is an *apperror.AppError
// and maps it accordingly, otherwise returns 500.
func Error(c *gin.Context, err error) {
	reqID := RequestID(c)
	c.Header(HeaderRequestID, reqID)

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.HTTPStatus, ErrorResponse{
			ErrorCode: appErr.Code,
			Message:   appErr.Message,
			RequestID: reqID,
		})
		return
	}

	c.JSON(http.StatusInternalServerError, ErrorResponse{
		ErrorCode: apperror.CodeInternal,
		Message:   "Internal server error",
		RequestID: reqID,
	})
}

// RequestID retrieves the request ID from context, generating and storing one if absent.
func RequestID(c *gin.Context) string {
	if id, exists := c.Get(CtxRequestID); exists {
		if s, ok := id.(string); ok && s != "" {
			return s
		}
	}
	id := uuid.New().String()
	c.Set(CtxRequestID, id)
	return id
}
