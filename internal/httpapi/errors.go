package httpapi

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/chris/tasky/internal/apperr"
	"github.com/chris/tasky/internal/db"
)

// writeError responds with {error, retry_after_seconds?} and the status
// matching the error's kind.
func writeError(c *gin.Context, err error) {
	if errors.Is(err, db.ErrNotFound) && apperr.KindOf(err) == apperr.KindInternal {
		err = apperr.NotFound("not found")
	}
	status := apperr.HTTPStatus(err)
	body := gin.H{"error": publicMessage(err)}

	var ae *apperr.Error
	if errors.As(err, &ae) && ae.Kind == apperr.KindRateLimited {
		secs := ae.RetryAfterSeconds()
		body["retry_after_seconds"] = secs
		c.Header("Retry-After", strconv.Itoa(secs))
	}
	if status >= http.StatusInternalServerError {
		log.Printf("http: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.AbortWithStatusJSON(status, body)
}

func publicMessage(err error) string {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		return "internal error"
	}
	switch {
	case ae.Kind == apperr.KindProvider:
		return "AI provider error"
	case ae.Message != "":
		return ae.Message
	default:
		return ae.Kind.String()
	}
}
