package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/internal/service"
	"github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/response"
)

// respondError writes err with the status its domain kind maps to. Unclassified
// errors are logged and answered with fallback.
func respondError(c *gin.Context, err error, fallback string) {
	msg := fallback
	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		msg = svcErr.Message
	} else if errors.Is(err, domain.ErrValidation) {
		msg = err.Error()
	}

	switch {
	case errors.Is(err, domain.ErrAuthentication):
		response.Unauthorized(c, msg)
	case errors.Is(err, domain.ErrAuthorization):
		response.Forbidden(c, msg)
	case errors.Is(err, domain.ErrNotFound):
		response.NotFound(c, msg)
	case errors.Is(err, domain.ErrValidation):
		response.BadRequest(c, msg)
	case errors.Is(err, domain.ErrConflict):
		response.Conflict(c, msg)
	default:
		l := log.Ctx(c.Request.Context())
		l.Error().Err(err).Msg(fallback)
		response.InternalError(c, fallback)
	}
}
