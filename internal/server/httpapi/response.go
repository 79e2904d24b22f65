package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/cerberus/internal/common"
	"github.com/dmitrijs2005/cerberus/internal/server/auth"
	"github.com/gin-gonic/gin"
)

// envelope is the body of every response.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func success(data any) envelope   { return envelope{Success: true, Data: data} }
func failure(msg string) envelope { return envelope{Success: false, Error: msg} }

const (
	msgAuthRequired       = "Authentication required"
	msgInvalidCredentials = "Invalid username or password"
	msgDuplicate          = "Username or email already exists"
	msgUserNotFound       = "User not found"
	msgInternal           = "Internal server error"
)

// statusFor maps a service error to its HTTP status and client-facing message.
func statusFor(err error) (int, string) {
	var weak *auth.WeakPasswordError
	switch {
	case errors.As(err, &weak):
		return http.StatusBadRequest, weak.Message
	case errors.Is(err, common.ErrInvalidCredentials), errors.Is(err, common.ErrAccountLocked):
		return http.StatusUnauthorized, msgInvalidCredentials
	case errors.Is(err, common.ErrDuplicateAccount):
		return http.StatusConflict, msgDuplicate
	case errors.Is(err, common.ErrTokenMalformed), errors.Is(err, common.ErrTokenInvalid):
		return http.StatusUnauthorized, msgAuthRequired
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, msgUserNotFound
	}
	return http.StatusInternalServerError, msgInternal
}

func (s *Server) fail(c *gin.Context, err error) {
	code, msg := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error(c.Request.Context(), "request failed", "path", c.Request.URL.Path, "error", err)
	}
	c.JSON(code, failure(msg))
}
