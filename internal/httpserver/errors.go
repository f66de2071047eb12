package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"storefront/internal/domain"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    domain.Kind `json:"code"`
	Message string      `json:"message"`
}

func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInvalidOperation:
		return http.StatusUnprocessableEntity
	case domain.KindInvalidInput:
		return http.StatusBadRequest
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	case domain.KindForbidden:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// writeError maps err to its HTTP status. Internal causes are logged and
// never sent to the client.
func writeError(c *gin.Context, logger logrus.FieldLogger, err error) {
	kind := domain.KindOf(err)
	status := statusFor(kind)
	if status == http.StatusInternalServerError {
		kind = domain.KindInternal
		logger.WithError(err).WithField("request_id", c.GetString(requestIDKey)).
			WithField("path", c.FullPath()).Error("request failed")
	}
	c.JSON(status, errorBody{Error: errorDetail{Code: kind, Message: domain.MessageOf(err)}})
}

func abortError(c *gin.Context, status int, kind domain.Kind, msg string) {
	c.AbortWithStatusJSON(status, errorBody{Error: errorDetail{Code: kind, Message: msg}})
}

func badRequest(c *gin.Context, msg string) {
	abortError(c, http.StatusBadRequest, domain.KindInvalidInput, msg)
}
