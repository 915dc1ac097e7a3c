package portal

import (
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/saiset-co/b2b-portal/client"
	"github.com/saiset-co/b2b-portal/middleware"
	"github.com/saiset-co/b2b-portal/types"
	"github.com/saiset-co/b2b-portal/utils"
)

// statusFor maps an error to the portal's response status: 400 for bad
// input, 404 for unknown resources, 502 for anything the upstream broke.
func statusFor(err error) int {
	switch {
	case types.IsError(err, types.ErrInvalidParameter):
		return fasthttp.StatusBadRequest
	case types.IsError(err, types.ErrResourceNotFound):
		return fasthttp.StatusNotFound
	}

	switch client.StatusCode(err) {
	case fasthttp.StatusNotFound:
		return fasthttp.StatusNotFound
	case fasthttp.StatusBadRequest, fasthttp.StatusUnprocessableEntity:
		return fasthttp.StatusBadRequest
	}

	return fasthttp.StatusBadGateway
}

func (h *Handlers) writeError(ctx *fasthttp.RequestCtx, err error) {
	status := statusFor(err)

	message := err.Error()
	switch status {
	case fasthttp.StatusNotFound:
		message = types.ErrResourceNotFound.Error()
	case fasthttp.StatusBadGateway:
		message = "upstream request failed"
	}

	log := h.requestLogger(ctx)

	if status >= fasthttp.StatusInternalServerError {
		log.ErrorWithErrStack("Portal request failed", err, zap.Int("status", status))
	} else {
		log.Debug("Portal request rejected", zap.Int("status", status), zap.Error(err))
	}

	utils.WriteError(ctx, status, message)
}

// requestLogger scopes the handler logger to one request.
func (h *Handlers) requestLogger(ctx *fasthttp.RequestCtx) types.Logger {
	fields := []zap.Field{
		zap.ByteString("method", ctx.Method()),
		zap.ByteString("path", ctx.Path()),
	}
	if id := middleware.RequestID(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	return h.logger.With(fields...)
}

func invalidParam(format string, args ...interface{}) error {
	return types.Errorf(types.ErrInvalidParameter, format, args...)
}
