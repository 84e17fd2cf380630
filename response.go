// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ringhttp

import (
	"net/netip"
	"strconv"
	"time"

	"code.hybscloud.com/ringhttp/aio"
	"code.hybscloud.com/ringhttp/coro"
	"code.hybscloud.com/ringhttp/httpx"
	"code.hybscloud.com/ringhttp/logx"
)

// Settings carries the connection parameters a Response needs to send
// itself; the connection loop injects them after the handler has chosen
// what to send.
type Settings struct {
	FD      int
	Peer    netip.AddrPort
	Timeout time.Duration
}

// Response is a deferred send task: constructed by a handler, sent by the
// connection loop once it has attached the connection settings. Send
// returns the bytes written, or a negative aio code.
type Response struct {
	send func(*coro.Coroutine, Settings) int64
}

// Send runs the response task on the calling connection task.
func (r Response) Send(c *coro.Coroutine, s Settings) int64 {
	if r.send == nil {
		return 0
	}
	return r.send(c, s)
}

func writeAll(c *coro.Coroutine, s Settings, buf []byte) int64 {
	sent := int64(0)
	for len(buf) > 0 {
		n, err := aio.Get().Write(c, s.FD, buf, 0)
		if err != nil {
			logx.Async().Error().
				Err(err).
				Str("peer", s.Peer.String()).
				Msg("response write failed")
			return int64(aio.Code(err))
		}
		if n == 0 {
			break
		}
		sent += int64(n)
		buf = buf[n:]
	}
	return sent
}

// Msg builds a response that renders m and writes it out.
func Msg(m httpx.ResponseMsg) Response {
	return Response{send: func(c *coro.Coroutine, s Settings) int64 {
		return writeAll(c, s, m.AppendTo(nil))
	}}
}

// TextMsg is the common 200 with an explicit content type.
func TextMsg(contentType string, body []byte) httpx.ResponseMsg {
	return httpx.ResponseMsg{
		Status: httpx.StatusOK,
		Header: map[string]string{
			"Content-Type":   contentType,
			"Content-Length": strconv.Itoa(len(body)),
		},
		Body: body,
	}
}

// Error builds an error response through the configured error-page
// provider.
func Error(code httpx.Status) Response {
	body := []byte(serverEnv.errorPageProvider(code))
	return Msg(httpx.ResponseMsg{
		Status: code,
		Header: map[string]string{
			"Content-Type":   "text/html",
			"Content-Length": strconv.Itoa(len(body)),
		},
		Body: body,
	})
}

// File builds a response serving mapped file content; the header and the
// content go out as one vectored write.
func File(contentType string, content []byte) Response {
	return Response{send: func(c *coro.Coroutine, s Settings) int64 {
		head := (&httpx.ResponseMsg{
			Status: httpx.StatusOK,
			Header: map[string]string{
				"Content-Type":   contentType,
				"Content-Length": strconv.Itoa(len(content)),
			},
		}).AppendTo(nil)
		n, err := aio.Get().Writev(c, s.FD, [][]byte{head, content}, 0)
		if err != nil {
			logx.Async().Error().
				Err(err).
				Str("peer", s.Peer.String()).
				Msg("file write failed")
			return int64(aio.Code(err))
		}
		if n < len(head)+len(content) {
			// Short vectored write: finish with plain writes.
			var rest []byte
			if n < len(head) {
				rest = append(rest, head[n:]...)
				rest = append(rest, content...)
			} else {
				rest = content[n-len(head):]
			}
			return int64(n) + writeAll(c, s, rest)
		}
		return int64(n)
	}}
}

// FileHead builds the HEAD counterpart of File.
func FileHead(contentType string, size int) Response {
	return Msg(httpx.ResponseMsg{
		Status: httpx.StatusOK,
		Header: map[string]string{
			"Content-Type":   contentType,
			"Content-Length": strconv.Itoa(size),
		},
	})
}
