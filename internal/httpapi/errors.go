package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nhle/mail-integration/internal/mailerr"
)

const (
	typeInvalidRequest    = "invalid_request"
	typeInternal          = "internal_error"
	typeAccessLogDisabled = "access_log_disabled"
)

type errorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error     errorBody `json:"error"`
	RequestID string    `json:"request_id"`
}

// statusOf maps an error onto an HTTP status and a response body.
func statusOf(err error) (int, errorBody) {
	var me *mailerr.Error
	if !errors.As(err, &me) {
		return http.StatusInternalServerError, errorBody{
			Type:    typeInternal,
			Message: "internal error",
		}
	}

	body := errorBody{Type: string(me.Kind), Message: me.Text()}
	switch {
	case errors.Is(err, mailerr.ErrInvalidAccessToken):
		body.Message = "Re-auth required"
		return http.StatusUnauthorized, body
	case errors.Is(err, mailerr.ErrAttachmentTooLarge):
		return http.StatusRequestEntityTooLarge, body
	case errors.Is(err, mailerr.ErrFilter), errors.Is(err, mailerr.ErrUnsupportedProvider):
		return http.StatusBadRequest, body
	case errors.Is(err, mailerr.ErrNetworkTimeout):
		return http.StatusGatewayTimeout, body
	default:
		return http.StatusInternalServerError, body
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status, body := statusOf(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, errorResponse{
		Error:     body,
		RequestID: c.GetString(requestIDKey),
	})
}

func (s *Server) badRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{
		Error:     errorBody{Type: typeInvalidRequest, Message: err.Error()},
		RequestID: c.GetString(requestIDKey),
	})
}
