// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ringhttp is an experimental high-concurrency HTTP/1.1 server
// built directly on io_uring.
//
// The HTTP surface is ordinary; the engine underneath is the point. Each
// connection is a cooperative task (package coro) that awaits kernel I/O
// through the submission/completion broker (package aio); suspended
// tasks resume on a small worker pool fed by a bounded lock-free ring,
// and every queue in the path — submissions, ready handles, log lines,
// per-op user data — is one of the lock-free containers in package
// queue, reclaimed through hazard pointers (package hazard).
//
// Minimal use:
//
//	ringhttp.Env().
//	    SetListenAddr(netip.MustParseAddrPort("127.0.0.1:8080")).
//	    SetRootPath("www")
//
//	ringhttp.Get("/hello", func(req *httpx.Request) ringhttp.Response {
//	    return ringhttp.Msg(ringhttp.TextMsg("text/plain", []byte("Hello, World!")))
//	})
//
//	ringhttp.GetDyn("/user/{id}", func(req *httpx.Request, params map[string]string) ringhttp.Response {
//	    return ringhttp.Msg(ringhttp.TextMsg("text/plain", []byte("User ID: "+params["id"])))
//	})
//
//	ringhttp.Run() // blocks; SIGINT shuts down gracefully
//
// Run scans the document root and serves its files as static routes with
// MIME types resolved by extension. The server is Linux-only by
// construction: the I/O engine is the kernel ring.
package ringhttp
