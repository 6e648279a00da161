package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/LovationAdmin/finance-tracker/services"
	"github.com/LovationAdmin/finance-tracker/store"
	"github.com/LovationAdmin/finance-tracker/utils"
)

// statusFor maps a service error to its HTTP status and user-facing message.
// Unknown errors become a 500 with fallback.
func statusFor(err error, op services.AuthOp, fallback string) (int, string) {
	var v *services.ValidationError
	switch {
	case errors.As(err, &v):
		return http.StatusBadRequest, v.Message
	case services.AuthCode(err) != "":
		msg := services.AuthMessage(err, op)
		switch services.AuthCode(err) {
		case services.CodeEmailInUse:
			return http.StatusConflict, msg
		case services.CodeTooManyRequests:
			return http.StatusTooManyRequests, msg
		case services.CodeWeakPassword, services.CodeInvalidEmail, services.CodeInvalidName:
			return http.StatusBadRequest, msg
		default:
			return http.StatusUnauthorized, msg
		}
	case errors.Is(err, services.ErrNotAuthenticated):
		return http.StatusForbidden, "Not signed in"
	case errors.Is(err, services.ErrTransactionNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, services.ErrBusy):
		return http.StatusConflict, err.Error()
	}
	return http.StatusInternalServerError, fallback
}

func respondError(c *gin.Context, err error, fallback string) {
	respondAuthError(c, err, services.OpSignIn, fallback)
}

func respondAuthError(c *gin.Context, err error, op services.AuthOp, fallback string) {
	status, msg := statusFor(err, op, fallback)
	if status == http.StatusInternalServerError {
		utils.SafeError("%s: %v", fallback, err)
	}
	c.JSON(status, gin.H{"error": msg})
}
