package handler

import (
	"errors"
	"net/http"

	"fastpay/internal/adapter/http/dto"
	"fastpay/pkg/apperror"

	"github.com/gin-gonic/gin"
)

// bindError maps a request binding failure to a client error.
func bindError(err error) *apperror.AppError {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperror.ErrPayloadTooLarge()
	}
	return apperror.Validation(err.Error())
}

// accountIDParam returns the :accountId path parameter if it is well formed.
func accountIDParam(c *gin.Context) (string, bool) {
	id := c.Param("accountId")
	if !dto.ValidAccountID(id) {
		return "", false
	}
	return id, true
}

func errInvalidAccountID() *apperror.AppError {
	return apperror.Validation("invalid account id")
}
