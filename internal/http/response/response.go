package response

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tenxcards/tenxcards-backend/internal/platform/apierr"
)

// ErrorBody is the JSON shape of every failed request.
type ErrorBody struct {
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Kind    string         `json:"kind,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// RespondError renders err through the error taxonomy. The original error is
// attached to the gin context so the request logger can record the cause.
func RespondError(c *gin.Context, err error) {
	ae := apierr.From(err)
	if ae == nil {
		ae = apierr.Unknown(nil)
	}
	_ = c.Error(err)
	if ae.Code == apierr.CodeRateLimitExceeded {
		if secs, ok := ae.Details["retry_after_seconds"].(int); ok && secs > 0 {
			c.Header("Retry-After", strconv.Itoa(secs))
		}
	}
	status := ae.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	c.AbortWithStatusJSON(status, ErrorBody{
		Error:   ae.PublicMessage(),
		Code:    ae.Code,
		Kind:    ae.Kind,
		Details: ae.Details,
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}

func RespondAccepted(c *gin.Context, payload any) {
	c.JSON(http.StatusAccepted, payload)
}

func RespondNoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
