package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wizlearn/account-service/internal/usecase"
)

const internalErrorMessage = "internal server error"

var kindStatus = map[usecase.ErrorKind]int{
	usecase.KindNotFound:            http.StatusNotFound,
	usecase.KindConflict:            http.StatusConflict,
	usecase.KindUnauthorized:        http.StatusUnauthorized,
	usecase.KindBadRequest:          http.StatusBadRequest,
	usecase.KindEmailDeliveryFailed: http.StatusBadRequest,
	usecase.KindInternal:            http.StatusInternalServerError,
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind usecase.ErrorKind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// RespondWithError classifies err and writes the matching status and payload. Internal and
// delivery failures are attached to the gin context so the access log and Sentry see the cause
// while the client gets fixed copy.
func RespondWithError(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	kind := usecase.KindOf(err)
	resp := NewErrorResponse(c, err.Error())

	switch kind {
	case usecase.KindInternal:
		_ = c.Error(err)
		resp.Error = internalErrorMessage
	case usecase.KindEmailDeliveryFailed:
		_ = c.Error(err)
		resp.Error = usecase.ErrEmailDeliveryFailed.Error()
		resp.Retryable = true
	}

	var locked *usecase.AccountLockedError
	if errors.As(err, &locked) {
		unlockAt := locked.UnlockAt.UTC()
		resp.UnlockAt = &unlockAt
	}

	c.AbortWithStatusJSON(StatusFor(kind), resp)
}

func respondInvalidPayload(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request payload"))
}
