package utils

import (
	"errors"
	"net/http"

	"github.com/atelierhq/evolink-http/internal/evolink"
	"github.com/atelierhq/evolink-http/internal/model"
	"github.com/gin-gonic/gin"
)

func GinFailedWithMessage(c *gin.Context, status int, message string) {
	c.JSON(status, model.FailureResponse{
		Status:  "failed",
		Message: message,
	})
}

func GinFailedWithMessageAndDetails(c *gin.Context, status int, message, details string) {
	c.JSON(status, model.FailureResponse{
		Status:  "failed",
		Message: message,
		Details: details,
	})
}

// GinFailedFromError maps the adapter error taxonomy onto HTTP statuses:
// validation → 400, missing credential → 500, vendor error → its own status,
// network failure → 502.
func GinFailedFromError(c *gin.Context, err error) {
	var validationErr *evolink.ValidationError
	if errors.As(err, &validationErr) {
		GinFailedWithMessage(c, http.StatusBadRequest, validationErr.Error())
		return
	}
	if errors.Is(err, evolink.ErrMissingAPIKey) {
		GinFailedWithMessage(c, http.StatusInternalServerError, err.Error())
		return
	}
	var vendorErr *evolink.VendorError
	if errors.As(err, &vendorErr) {
		status := vendorErr.StatusCode
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		GinFailedWithMessageAndDetails(c, status, vendorErr.Error(), vendorErr.RawBody)
		return
	}
	var networkErr *evolink.NetworkError
	if errors.As(err, &networkErr) {
		GinFailedWithMessage(c, http.StatusBadGateway, networkErr.Error())
		return
	}
	GinFailedWithMessage(c, http.StatusInternalServerError, err.Error())
}
