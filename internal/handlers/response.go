package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kestrelworks/orgvault/internal/evcs"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondVersioningError maps the versioning error taxonomy onto HTTP.
// Conflicts come back 409 so clients know to re-read and retry themselves.
func RespondVersioningError(c *gin.Context, err error) {
	switch {
	case evcs.IsNotFound(err):
		RespondError(c, http.StatusNotFound, "not_found", err)
	case evcs.IsValidation(err):
		RespondError(c, http.StatusUnprocessableEntity, "validation_failed", err)
	case evcs.IsConflict(err):
		RespondError(c, http.StatusConflict, "conflict", err)
	default:
		RespondError(c, http.StatusInternalServerError, "internal", err)
	}
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
