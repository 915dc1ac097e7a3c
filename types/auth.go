package types

import (
	"github.com/valyala/fasthttp"
)

type AuthProvider interface {
	Type() string
	Authenticate(ctx *fasthttp.RequestCtx) error
}

type AuthProviderManager interface {
	LifecycleManager
	Register(name string, provider AuthProvider) error
	GetProvider(name string) (AuthProvider, error)
	Guard(handler FastHTTPHandler) FastHTTPHandler
}
