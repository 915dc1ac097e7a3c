package server

import (
	"sort"
	"strings"
	"sync"

	"github.com/saiset-co/b2b-portal/types"
)

// FastHTTPRouter resolves routes in two steps: an exact map for static paths,
// then a segment trie for paths with {param} or :param segments. Static
// segments win over parameters at the same depth.
type FastHTTPRouter struct {
	root         *RouteNode
	staticRoutes map[string]types.FastHTTPHandler
	routes       []types.RouteInfo
	mu           sync.RWMutex
}

type RouteNode struct {
	staticChildren map[string]*RouteNode
	paramChild     *RouteNode
	paramName      string
	handlers       map[string]types.FastHTTPHandler
}

func newRouteNode() *RouteNode {
	return &RouteNode{
		staticChildren: make(map[string]*RouteNode),
		handlers:       make(map[string]types.FastHTTPHandler),
	}
}

func NewFastHTTPRouter() *FastHTTPRouter {
	return &FastHTTPRouter{
		root:         newRouteNode(),
		staticRoutes: make(map[string]types.FastHTTPHandler),
	}
}

// Add registers a handler. Registering the same method and path twice
// replaces the earlier handler.
func (r *FastHTTPRouter) Add(method, path string, handler types.FastHTTPHandler) {
	method = strings.ToUpper(method)
	path = normalizePath(path)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.routes = append(r.routes, types.RouteInfo{Method: method, Path: path})

	if !isDynamic(path) {
		r.staticRoutes[method+" "+path] = handler
		return
	}

	node := r.root
	for _, segment := range splitPath(path) {
		name, isParam := paramName(segment)
		if !isParam {
			child, exists := node.staticChildren[segment]
			if !exists {
				child = newRouteNode()
				node.staticChildren[segment] = child
			}
			node = child
			continue
		}

		if node.paramChild == nil {
			node.paramChild = newRouteNode()
			node.paramChild.paramName = name
		}
		node = node.paramChild
	}

	node.handlers[method] = handler
}

func (r *FastHTTPRouter) GET(path string, handler types.FastHTTPHandler) {
	r.Add("GET", path, handler)
}

func (r *FastHTTPRouter) POST(path string, handler types.FastHTTPHandler) {
	r.Add("POST", path, handler)
}

func (r *FastHTTPRouter) PUT(path string, handler types.FastHTTPHandler) {
	r.Add("PUT", path, handler)
}

func (r *FastHTTPRouter) DELETE(path string, handler types.FastHTTPHandler) {
	r.Add("DELETE", path, handler)
}

func (r *FastHTTPRouter) Group(prefix string) types.HTTPRouter {
	return &RouteGroup{router: r, prefix: normalizePath(prefix)}
}

func (r *FastHTTPRouter) Lookup(method, path string) (types.FastHTTPHandler, map[string]string, bool) {
	path = normalizePath(path)

	r.mu.RLock()
	defer r.mu.RUnlock()

	if handler, ok := r.staticRoutes[method+" "+path]; ok {
		return handler, nil, true
	}

	node, params := r.match(path)
	if node == nil {
		return nil, nil, false
	}

	handler, ok := node.handlers[method]
	if !ok {
		return nil, nil, false
	}

	return handler, params, true
}

// Methods lists the methods registered for path, used to tell 404 from 405.
func (r *FastHTTPRouter) Methods(path string) []string {
	path = normalizePath(path)

	r.mu.RLock()
	defer r.mu.RUnlock()

	methods := make([]string, 0)
	for key := range r.staticRoutes {
		method, routePath, _ := strings.Cut(key, " ")
		if routePath == path {
			methods = append(methods, method)
		}
	}

	if node, _ := r.match(path); node != nil {
		for method := range node.handlers {
			methods = append(methods, method)
		}
	}

	sort.Strings(methods)
	return methods
}

func (r *FastHTTPRouter) Routes() []types.RouteInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	routes := make([]types.RouteInfo, len(r.routes))
	copy(routes, r.routes)
	return routes
}

func (r *FastHTTPRouter) match(path string) (*RouteNode, map[string]string) {
	var params map[string]string

	node := r.root
	for _, segment := range splitPath(path) {
		if child, ok := node.staticChildren[segment]; ok {
			node = child
			continue
		}

		if node.paramChild == nil {
			return nil, nil
		}

		node = node.paramChild
		if params == nil {
			params = make(map[string]string, 2)
		}
		params[node.paramName] = segment
	}

	if len(node.handlers) == 0 {
		return nil, nil
	}

	return node, params
}

func normalizePath(path string) string {
	if path == "" || path == "/" {
		return "/"
	}
	if path[0] != '/' {
		path = "/" + path
	}
	return strings.TrimRight(path, "/")
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func isDynamic(path string) bool {
	return strings.ContainsAny(path, "{:")
}

func paramName(segment string) (string, bool) {
	switch {
	case len(segment) > 2 && segment[0] == '{' && segment[len(segment)-1] == '}':
		return segment[1 : len(segment)-1], true
	case len(segment) > 1 && segment[0] == ':':
		return segment[1:], true
	default:
		return "", false
	}
}
