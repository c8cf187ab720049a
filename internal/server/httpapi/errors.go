package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/r2relay/internal/common"
)

// statusClientClosedRequest is logged when the caller went away mid-request.
const statusClientClosedRequest = 499

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, common.ErrSizeLimitExceeded), errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, common.ErrInvalidObjectKey),
		errors.Is(err, common.ErrorValidation),
		errors.Is(err, common.ErrInvalidToken):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrRemoteTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, envelope{Status: "error", Message: msg})
}

// fail records err for the request log and writes the mapped response.
// Server-side failures reach the client only as their status text.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	status := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		msg = http.StatusText(status)
	}
	abortWithError(c, status, msg)
}
