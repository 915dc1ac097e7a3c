package middleware

import (
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/saiset-co/b2b-portal/types"
	"github.com/saiset-co/b2b-portal/utils"
)

const (
	requestIDKey           = "request_id"
	DefaultRequestIDHeader = "X-Request-ID"
)

type RequestIDMiddleware struct {
	logger          types.Logger
	requestIDConfig *RequestIDConfig
	weight          int
}

type RequestIDConfig struct {
	Header string `json:"header"`
}

func NewRequestIDMiddleware(config *types.MiddlewareItemConfig, logger types.Logger) *RequestIDMiddleware {
	var requestIDConfig = &RequestIDConfig{
		Header: DefaultRequestIDHeader,
	}

	if config.Params != nil {
		err := utils.UnmarshalConfig(config.Params, requestIDConfig)
		if err != nil {
			logger.Error("Failed to unmarshal RequestID middleware config", zap.Error(err))
		}
	}

	if requestIDConfig.Header == "" {
		requestIDConfig.Header = DefaultRequestIDHeader
	}

	return &RequestIDMiddleware{
		logger:          logger,
		requestIDConfig: requestIDConfig,
		weight:          config.Weight,
	}
}

func (m *RequestIDMiddleware) Name() string { return "request_id" }
func (m *RequestIDMiddleware) Weight() int  { return m.weight }

// Handle keeps an incoming id or generates a UUID, and echoes it back.
func (m *RequestIDMiddleware) Handle(ctx *fasthttp.RequestCtx, next func(*fasthttp.RequestCtx)) {
	header := m.requestIDConfig.Header

	id := string(ctx.Request.Header.Peek(header))
	if id == "" {
		id = uuid.NewString()
		ctx.Request.Header.Set(header, id)
	}

	ctx.SetUserValue(requestIDKey, id)

	next(ctx)

	ctx.Response.Header.Set(header, id)
}

// RequestID returns the id assigned to the request, or "".
func RequestID(ctx *fasthttp.RequestCtx) string {
	if id, ok := ctx.UserValue(requestIDKey).(string); ok {
		return id
	}
	return string(ctx.Request.Header.Peek(DefaultRequestIDHeader))
}
