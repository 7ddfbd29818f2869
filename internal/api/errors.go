package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nhle/hotel-ops/internal/assign"
	"github.com/nhle/hotel-ops/internal/board"
	"github.com/nhle/hotel-ops/internal/draft"
	"github.com/nhle/hotel-ops/internal/recurrence"
	"github.com/nhle/hotel-ops/internal/store"
)

// errBadRequest marks request decoding failures.
var errBadRequest = errors.New("bad request")

// statusFor maps a domain error to an HTTP status code.
func statusFor(err error) int {
	var verr *recurrence.ValidationError
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, store.ErrInvalidTask),
		errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, assign.ErrNoSelection),
		errors.Is(err, assign.ErrTooManyAssignees),
		errors.Is(err, assign.ErrUnknownUser):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, draft.ErrNotFound),
		errors.Is(err, board.ErrUnknownTask):
		return http.StatusNotFound
	case errors.Is(err, store.ErrVersionConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as a JSON error body. Server errors are logged and
// their detail is not exposed.
func (s *Server) fail(c *gin.Context, err error) {
	code := statusFor(err)
	_ = c.Error(err)

	body := gin.H{"error": err.Error()}
	var verr *recurrence.ValidationError
	if errors.As(err, &verr) {
		body["field"] = verr.Field
	}
	if code == http.StatusInternalServerError {
		s.logger.Errorw("request failed",
			"requestID", c.GetString(requestIDKey),
			"path", c.FullPath(),
			"error", err)
		body = gin.H{"error": "internal error"}
	}
	c.AbortWithStatusJSON(code, body)
}
