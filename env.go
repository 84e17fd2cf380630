// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ringhttp

import (
	"net/netip"

	"code.hybscloud.com/ringhttp/httpx"
)

// ErrorPageProvider renders the body of an error response.
type ErrorPageProvider func(httpx.Status) string

type env struct {
	listenAddr        netip.AddrPort
	rootPath          string
	workerCount       int
	maxWorkerConn     int
	errorPageProvider ErrorPageProvider
}

var serverEnv = env{
	rootPath:      "./www",
	workerCount:   4,
	maxWorkerConn: 128,
	errorPageProvider: func(code httpx.Status) string {
		return code.Phrase()
	},
}

// Chain is the configuration builder. Settings take effect at Run.
type Chain struct{}

// Env returns the configuration chain.
func Env() *Chain {
	return &Chain{}
}

// SetListenAddr sets the TCP address the server listens on. Required.
func (e *Chain) SetListenAddr(addr netip.AddrPort) *Chain {
	serverEnv.listenAddr = addr
	return e
}

// SetRootPath sets the static-file document root. Default "./www".
func (e *Chain) SetRootPath(path string) *Chain {
	serverEnv.rootPath = path
	return e
}

// SetWorkerCount sets the worker pool size and the number of REUSEPORT
// accepter sockets. Default 4.
func (e *Chain) SetWorkerCount(n int) *Chain {
	serverEnv.workerCount = n
	return e
}

// SetMaxWorkerConn sets the listen backlog per accepter socket.
// Default 128.
func (e *Chain) SetMaxWorkerConn(n int) *Chain {
	serverEnv.maxWorkerConn = n
	return e
}

// SetErrorPageProvider overrides the error-response body renderer.
func (e *Chain) SetErrorPageProvider(p ErrorPageProvider) *Chain {
	serverEnv.errorPageProvider = p
	return e
}
