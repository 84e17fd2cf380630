// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ringhttp

import (
	"code.hybscloud.com/ringhttp/httpx"
	"code.hybscloud.com/ringhttp/logx"
	"code.hybscloud.com/ringhttp/router"
)

// Handler serves a static route.
type Handler func(*httpx.Request) Response

// DynHandler serves a parameterized route with its extracted bindings.
type DynHandler func(*httpx.Request, map[string]string) Response

var (
	staticRoutes [httpx.MethodCount]map[string]Handler
	dynRoutes    [httpx.MethodCount]*router.Tree[DynHandler]
)

func init() {
	for m := range staticRoutes {
		staticRoutes[m] = make(map[string]Handler)
		dynRoutes[m] = router.New[DynHandler]()
	}
	// Server-wide OPTIONS is built in.
	staticRoutes[httpx.OPTIONS]["*"] = func(*httpx.Request) Response {
		return Msg(httpx.ResponseMsg{
			Status: httpx.StatusOK,
			Header: map[string]string{
				"Content-Length": "0",
				"Allow":          "GET, HEAD, POST, PUT, DELETE, OPTIONS",
			},
		})
	}
}

func handle(m httpx.Method, path string, h Handler) {
	staticRoutes[m][path] = h
}

func handleDyn(m httpx.Method, tpl string, h DynHandler) {
	dynRoutes[m].Insert(router.ParseTemplate(tpl), h)
}

// Get registers a static GET route.
func Get(path string, h Handler) { handle(httpx.GET, path, h) }

// Head registers a static HEAD route.
func Head(path string, h Handler) { handle(httpx.HEAD, path, h) }

// Post registers a static POST route.
func Post(path string, h Handler) { handle(httpx.POST, path, h) }

// Put registers a static PUT route.
func Put(path string, h Handler) { handle(httpx.PUT, path, h) }

// Delete registers a static DELETE route.
func Delete(path string, h Handler) { handle(httpx.DELETE, path, h) }

// GetDyn registers a parameterized GET route.
func GetDyn(tpl string, h DynHandler) { handleDyn(httpx.GET, tpl, h) }

// HeadDyn registers a parameterized HEAD route.
func HeadDyn(tpl string, h DynHandler) { handleDyn(httpx.HEAD, tpl, h) }

// PostDyn registers a parameterized POST route.
func PostDyn(tpl string, h DynHandler) { handleDyn(httpx.POST, tpl, h) }

// PutDyn registers a parameterized PUT route.
func PutDyn(tpl string, h DynHandler) { handleDyn(httpx.PUT, tpl, h) }

// DeleteDyn registers a parameterized DELETE route.
func DeleteDyn(tpl string, h DynHandler) { handleDyn(httpx.DELETE, tpl, h) }

// route resolves req to a response task: decoded static lookup first, the
// radix tree second, then 405 if another method owns the path, else 404.
func route(req *httpx.Request) Response {
	switch req.Target.Form {
	case httpx.OriginForm:
		path, err := httpx.PctDecode(req.Target.Path)
		if err != nil {
			logx.Async().Error().
				Str("target", req.Target.Path).
				Err(err).
				Msg("failed to decode request target")
			return Error(httpx.StatusBadRequest)
		}
		if h, ok := staticRoutes[req.Method][path]; ok {
			return h(req)
		}
		if h, params, ok := dynRoutes[req.Method].Route(path); ok {
			return h(req, params)
		}
		if methodMismatch(req.Method, path) {
			return Error(httpx.StatusMethodNotAllowed)
		}
		return Error(httpx.StatusNotFound)

	case httpx.AsteriskForm:
		if h, ok := staticRoutes[req.Method]["*"]; ok {
			return h(req)
		}
		return Error(httpx.StatusNotFound)
	}

	// Absolute and authority forms are not routed.
	return Error(httpx.StatusBadRequest)
}

// methodMismatch reports whether path is registered under any other
// method.
func methodMismatch(m httpx.Method, path string) bool {
	for other := range httpx.Method(httpx.MethodCount) {
		if other == m {
			continue
		}
		if _, ok := staticRoutes[other][path]; ok {
			return true
		}
		if _, _, ok := dynRoutes[other].Route(path); ok {
			return true
		}
	}
	return false
}
