package types

import (
	"github.com/valyala/fasthttp"
)

type FastHTTPHandler func(ctx *fasthttp.RequestCtx)

type HTTPServer interface {
	LifecycleManager
}

type HTTPRouter interface {
	Add(method, path string, handler FastHTTPHandler)
	GET(path string, handler FastHTTPHandler)
	POST(path string, handler FastHTTPHandler)
	PUT(path string, handler FastHTTPHandler)
	DELETE(path string, handler FastHTTPHandler)
	Group(prefix string) HTTPRouter
	Lookup(method, path string) (FastHTTPHandler, map[string]string, bool)
	Routes() []RouteInfo
}

type RouteInfo struct {
	Method string
	Path   string
}

type MiddlewareManager interface {
	Register(middleware Middleware) error
	Execute(ctx *fasthttp.RequestCtx, handler FastHTTPHandler)
}

type Middleware interface {
	Handle(ctx *fasthttp.RequestCtx, next func(*fasthttp.RequestCtx))
	Name() string
	Weight() int
}
