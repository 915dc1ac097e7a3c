package server

import (
	"github.com/saiset-co/b2b-portal/types"
)

// RouteGroup registers routes under a shared path prefix.
type RouteGroup struct {
	router *FastHTTPRouter
	prefix string
}

func (g *RouteGroup) Add(method, path string, handler types.FastHTTPHandler) {
	g.router.Add(method, g.join(path), handler)
}

func (g *RouteGroup) GET(path string, handler types.FastHTTPHandler) {
	g.Add("GET", path, handler)
}

func (g *RouteGroup) POST(path string, handler types.FastHTTPHandler) {
	g.Add("POST", path, handler)
}

func (g *RouteGroup) PUT(path string, handler types.FastHTTPHandler) {
	g.Add("PUT", path, handler)
}

func (g *RouteGroup) DELETE(path string, handler types.FastHTTPHandler) {
	g.Add("DELETE", path, handler)
}

func (g *RouteGroup) Group(prefix string) types.HTTPRouter {
	return &RouteGroup{router: g.router, prefix: g.join(prefix)}
}

func (g *RouteGroup) Lookup(method, path string) (types.FastHTTPHandler, map[string]string, bool) {
	return g.router.Lookup(method, g.join(path))
}

func (g *RouteGroup) Routes() []types.RouteInfo {
	return g.router.Routes()
}

func (g *RouteGroup) join(path string) string {
	if g.prefix == "/" {
		return normalizePath(path)
	}
	return normalizePath(g.prefix + normalizePath(path))
}
