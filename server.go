// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ringhttp

import (
	"errors"
	"net/netip"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"code.hybscloud.com/ringhttp/aio"
	"code.hybscloud.com/ringhttp/coro"
	"code.hybscloud.com/ringhttp/httpx"
	"code.hybscloud.com/ringhttp/logx"
)

const (
	readBufferSize = 8192

	// Per-read link-timeouts; keep-alive connections get the longer one.
	readTimeout      = 200 * time.Millisecond
	keepAliveTimeout = 1000 * time.Millisecond
)

var (
	accepterFDs []int
	stopOnce    sync.Once
)

// handleConn is the per-connection fire-and-forget task.
func handleConn(c *coro.Coroutine, fd int, peer netip.AddrPort, connID uuid.UUID) {
	defer unix.Close(fd)
	coro.Dispatch(c)

	x := aio.Get()
	buf := make([]byte, readBufferSize)
	timeout := readTimeout
	parser := httpx.NewParser()
	defer parser.Close()

	for {
		for parser.Empty() {
			n, err := x.ReadTimeout(c, fd, buf, 0, timeout)
			if err != nil || n == 0 {
				logx.Async().Debug().
					Str("conn", connID.String()).
					Str("peer", peer.String()).
					Err(err).
					Msg("connection read ended")
				return
			}
			parser.Feed(buf[:n])
		}

		req, ok := parser.PopFront()
		if !ok {
			logx.Async().Error().
				Str("conn", connID.String()).
				Str("peer", peer.String()).
				Msg("failed to parse request")
			Error(httpx.StatusBadRequest).Send(c, Settings{fd, peer, timeout})
			return
		}

		closing := false
		switch req.Header["Connection"] {
		case "close":
			closing = true
		case "keep-alive":
			timeout = keepAliveTimeout
		}

		route(req).Send(c, Settings{fd, peer, timeout})
		if closing {
			return
		}
	}
}

// accepterLoop owns one REUSEPORT listen socket.
func accepterLoop(c *coro.Coroutine, fd int) {
	coro.Dispatch(c)
	x := aio.Get()
	for {
		nfd, peer, err := x.Accept(c, fd)
		if err != nil {
			if errors.Is(err, aio.ErrTimeout) {
				logx.Async().Debug().Int("fd", fd).Msg("accept timed out, retrying")
				continue
			}
			logx.Async().Error().Int("fd", fd).Err(err).Msg("accept failed")
			return
		}
		connID := uuid.New()
		logx.Async().Info().
			Int("fd", fd).
			Str("conn", connID.String()).
			Str("peer", peer.String()).
			Msg("accepted connection")
		coro.Go(func(cc *coro.Coroutine) {
			handleConn(cc, nfd, peer, connID)
		})
	}
}

func listenSocket(addr netip.AddrPort, backlog int) int {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		logx.Sync().Fatal().Err(err).Msg("socket failed")
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
		logx.Sync().Fatal().Err(err).Msg("SO_REUSEPORT failed")
	}
	sa := &unix.SockaddrInet4{Port: int(addr.Port()), Addr: addr.Addr().As4()}
	if err := unix.Bind(fd, sa); err != nil {
		logx.Sync().Fatal().Str("addr", addr.String()).Err(err).Msg("bind failed")
	}
	if err := unix.Listen(fd, backlog); err != nil {
		logx.Sync().Fatal().Err(err).Msg("listen failed")
	}
	return fd
}

// Run starts the server and blocks until graceful shutdown completes.
// The calling goroutine becomes the I/O context's listener.
func Run() {
	if !serverEnv.listenAddr.IsValid() {
		logx.Sync().Fatal().Msg("listen address is not set")
	}

	configureStaticRoutes()
	coro.InitPool(serverEnv.workerCount)
	x := aio.Get()

	for range serverEnv.workerCount {
		accepterFDs = append(accepterFDs, listenSocket(serverEnv.listenAddr, serverEnv.maxWorkerConn))
	}
	for _, fd := range accepterFDs {
		coro.Go(func(c *coro.Coroutine) {
			accepterLoop(c, fd)
		})
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		if _, ok := <-sigCh; ok {
			logx.Sync().Info().Msg("received SIGINT, stopping server")
			Stop()
		}
	}()

	logx.Sync().Info().
		Str("addr", serverEnv.listenAddr.String()).
		Int("workers", serverEnv.workerCount).
		Msg("server running")

	x.Run()

	signal.Stop(sigCh)
	close(sigCh)
	coro.ShutdownPool()
	for _, fd := range accepterFDs {
		_ = unix.Close(fd)
	}
	accepterFDs = nil
	logx.Close()
}

// Stop triggers the SIGINT shutdown path: cancel the accepters' in-flight
// ops, then stop the I/O context.
func Stop() {
	stopOnce.Do(func() {
		x := aio.Get()
		for _, fd := range accepterFDs {
			coro.Go(func(c *coro.Coroutine) {
				if ret, err := x.CancelFD(c, fd); err != nil {
					logx.Async().Error().
						Int("fd", fd).Int("ret", ret).Err(err).
						Msg("failed to cancel accepter")
				}
			})
		}
		x.RequestStop()
	})
}
