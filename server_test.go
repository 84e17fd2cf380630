// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ringhttp_test

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"code.hybscloud.com/ringhttp"
	"code.hybscloud.com/ringhttp/httpx"
)

const listenAddr = "127.0.0.1:18273"

type response struct {
	status int
	header map[string]string
	body   string
}

func readResponse(t *testing.T, r *bufio.Reader) response {
	t.Helper()
	statusLine, err := r.ReadString('\n')
	require.NoError(t, err, "reading status line")
	parts := strings.SplitN(strings.TrimRight(statusLine, "\r\n"), " ", 3)
	require.GreaterOrEqual(t, len(parts), 2, "status line %q", statusLine)
	status, err := strconv.Atoi(parts[1])
	require.NoError(t, err)

	header := make(map[string]string)
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err, "reading header line")
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		key, value, found := strings.Cut(line, ":")
		require.True(t, found, "header line %q", line)
		header[key] = strings.TrimSpace(value)
	}

	body := ""
	if cl, ok := header["Content-Length"]; ok {
		n, err := strconv.Atoi(cl)
		require.NoError(t, err)
		buf := make([]byte, n)
		_, err = io.ReadFull(r, buf)
		require.NoError(t, err, "reading body")
		body = string(buf)
	}
	return response{status, header, body}
}

func dial(t *testing.T) net.Conn {
	t.Helper()
	var conn net.Conn
	var err error
	for range 50 {
		conn, err = net.Dial("tcp", listenAddr)
		if err == nil {
			return conn
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("dial %s: %v", listenAddr, err)
	return nil
}

func roundTrip(t *testing.T, wire string) response {
	t.Helper()
	conn := dial(t)
	defer conn.Close()
	_, err := conn.Write([]byte(wire))
	require.NoError(t, err)
	return readResponse(t, bufio.NewReader(conn))
}

// TestServer runs one server for every scenario; the I/O context and the
// worker pool are process singletons, so shutdown is terminal and comes
// last.
func TestServer(t *testing.T) {
	docroot := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(docroot, "index.html"),
		[]byte("<html>home</html>"), 0o644))

	ringhttp.Env().
		SetListenAddr(netip.MustParseAddrPort(listenAddr)).
		SetRootPath(docroot).
		SetWorkerCount(1). // keeps the pipelined scenario strictly ordered
		SetMaxWorkerConn(128)

	ringhttp.Get("/hello", func(*httpx.Request) ringhttp.Response {
		return ringhttp.Msg(ringhttp.TextMsg("text/plain", []byte("Hello, World!")))
	})
	ringhttp.GetDyn("/user/{id}", func(_ *httpx.Request, params map[string]string) ringhttp.Response {
		return ringhttp.Msg(ringhttp.TextMsg("text/plain", []byte("User ID: "+params["id"])))
	})
	ringhttp.Post("/submit", func(req *httpx.Request) ringhttp.Response {
		var obj map[string]any
		if err := sonic.Unmarshal(req.Body, &obj); err != nil {
			return ringhttp.Error(httpx.StatusBadRequest)
		}
		if obj == nil {
			obj = make(map[string]any)
		}
		obj["status"] = "received"
		body, err := sonic.Marshal(obj)
		if err != nil {
			return ringhttp.Error(httpx.StatusInternalServerError)
		}
		return ringhttp.Msg(ringhttp.TextMsg("application/json", body))
	})

	runDone := make(chan struct{})
	go func() {
		ringhttp.Run()
		close(runDone)
	}()

	t.Run("StaticRouteHello", func(t *testing.T) {
		resp := roundTrip(t, "GET /hello HTTP/1.1\r\nHost: x\r\n\r\n")
		assert.Equal(t, 200, resp.status)
		assert.Equal(t, "text/plain", resp.header["Content-Type"])
		assert.Equal(t, "Hello, World!", resp.body)
	})

	t.Run("DynamicRouteUserID", func(t *testing.T) {
		resp := roundTrip(t, "GET /user/42 HTTP/1.1\r\nHost: x\r\n\r\n")
		assert.Equal(t, 200, resp.status)
		assert.Equal(t, "User ID: 42", resp.body)
	})

	t.Run("PostSubmitJSON", func(t *testing.T) {
		resp := roundTrip(t, "POST /submit HTTP/1.1\r\nContent-Length: 2\r\n\r\n{}")
		assert.Equal(t, 200, resp.status)
		assert.Contains(t, resp.body, `"status":"received"`)
	})

	t.Run("OptionsAsterisk", func(t *testing.T) {
		resp := roundTrip(t, "OPTIONS * HTTP/1.1\r\nHost: x\r\n\r\n")
		assert.Equal(t, 200, resp.status)
		assert.Equal(t, "GET, HEAD, POST, PUT, DELETE, OPTIONS", resp.header["Allow"])
		assert.Equal(t, "0", resp.header["Content-Length"])
	})

	t.Run("BadContentLengthClosesConnection", func(t *testing.T) {
		conn := dial(t)
		defer conn.Close()
		_, err := conn.Write([]byte("POST /x HTTP/1.1\r\nContent-Length: abc\r\n\r\n"))
		require.NoError(t, err)
		r := bufio.NewReader(conn)
		resp := readResponse(t, r)
		assert.Equal(t, 400, resp.status)

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
		_, err = r.ReadByte()
		assert.ErrorIs(t, err, io.EOF, "server must close after 400")
	})

	t.Run("StaticFileFromDocroot", func(t *testing.T) {
		resp := roundTrip(t, "GET /index.html HTTP/1.1\r\nHost: x\r\n\r\n")
		assert.Equal(t, 200, resp.status)
		assert.Equal(t, "text/html", resp.header["Content-Type"])
		assert.Equal(t, "<html>home</html>", resp.body)

		resp = roundTrip(t, "GET / HTTP/1.1\r\nHost: x\r\n\r\n")
		assert.Equal(t, 200, resp.status)
		assert.Equal(t, "<html>home</html>", resp.body)
	})

	t.Run("NotFound", func(t *testing.T) {
		resp := roundTrip(t, "GET /nope HTTP/1.1\r\nHost: x\r\n\r\n")
		assert.Equal(t, 404, resp.status)
	})

	t.Run("MethodNotAllowed", func(t *testing.T) {
		resp := roundTrip(t, "DELETE /hello HTTP/1.1\r\nHost: x\r\n\r\n")
		assert.Equal(t, 405, resp.status)
	})

	t.Run("PipelinedKeepAliveOrdered", func(t *testing.T) {
		conn := dial(t)
		defer conn.Close()

		var wire strings.Builder
		const n = 100
		for i := range n {
			fmt.Fprintf(&wire,
				"GET /user/%d HTTP/1.1\r\nHost: x\r\nConnection: keep-alive\r\n\r\n", i)
		}
		_, err := conn.Write([]byte(wire.String()))
		require.NoError(t, err)

		r := bufio.NewReader(conn)
		for i := range n {
			resp := readResponse(t, r)
			require.Equal(t, 200, resp.status, "response %d", i)
			require.Equal(t, fmt.Sprintf("User ID: %d", i), resp.body, "response %d", i)
		}
	})

	t.Run("Shutdown", func(t *testing.T) {
		ringhttp.Stop()
		select {
		case <-runDone:
		case <-time.After(10 * time.Second):
			t.Fatal("server did not shut down")
		}
	})
}
