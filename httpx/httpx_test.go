// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package httpx_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"code.hybscloud.com/ringhttp/httpx"
)

func feedAll(p *httpx.Parser, wire string) {
	p.Feed([]byte(wire))
}

func TestParseSimpleGet(t *testing.T) {
	p := httpx.NewParser()
	defer p.Close()

	feedAll(p, "GET /hello HTTP/1.1\r\nHost: x\r\n\r\n")
	require.False(t, p.Empty())

	req, ok := p.PopFront()
	require.True(t, ok)
	assert.Equal(t, httpx.GET, req.Method)
	assert.Equal(t, httpx.OriginForm, req.Target.Form)
	assert.Equal(t, "/hello", req.Target.Path)
	assert.Equal(t, "HTTP/1.1", req.Version)
	assert.Equal(t, "x", req.Header["Host"])
	assert.Empty(t, req.Body)
	assert.True(t, p.Empty())
}

func TestParseQueryTarget(t *testing.T) {
	p := httpx.NewParser()
	defer p.Close()

	feedAll(p, "GET /search?q=hayabusa&page=2 HTTP/1.1\r\n\r\n")
	req, ok := p.PopFront()
	require.True(t, ok)
	assert.Equal(t, "/search", req.Target.Path)
	assert.Equal(t, "q=hayabusa&page=2", req.Target.Query)
}

func TestParseBody(t *testing.T) {
	p := httpx.NewParser()
	defer p.Close()

	feedAll(p, "POST /submit HTTP/1.1\r\nContent-Length: 2\r\n\r\n{}")
	req, ok := p.PopFront()
	require.True(t, ok)
	assert.Equal(t, httpx.POST, req.Method)
	assert.Equal(t, "{}", string(req.Body))
}

func TestParseSplitFeeds(t *testing.T) {
	p := httpx.NewParser()
	defer p.Close()

	wire := "POST /a HTTP/1.1\r\nContent-Length: 5\r\nHost: y\r\n\r\nhello"
	for _, chunk := range []string{wire[:7], wire[7:19], wire[19:40], wire[40:]} {
		p.Feed([]byte(chunk))
	}
	req, ok := p.PopFront()
	require.True(t, ok)
	assert.Equal(t, "/a", req.Target.Path)
	assert.Equal(t, "y", req.Header["Host"])
	assert.Equal(t, "hello", string(req.Body))
}

func TestParsePipelined(t *testing.T) {
	p := httpx.NewParser()
	defer p.Close()

	var wire strings.Builder
	for range 3 {
		wire.WriteString("GET /hello HTTP/1.1\r\nHost: x\r\n\r\n")
	}
	feedAll(p, wire.String())

	for i := range 3 {
		require.False(t, p.Empty(), "request %d missing", i)
		req, ok := p.PopFront()
		require.True(t, ok)
		assert.Equal(t, "/hello", req.Target.Path)
	}
	assert.True(t, p.Empty())
}

func TestParseInvalidContentLength(t *testing.T) {
	p := httpx.NewParser()
	defer p.Close()

	feedAll(p, "POST /x HTTP/1.1\r\nContent-Length: abc\r\n\r\n")
	require.False(t, p.Empty())
	req, ok := p.PopFront()
	assert.False(t, ok, "invalid Content-Length must fail the parse")
	assert.Nil(t, req)
}

func TestParseBadRequestLine(t *testing.T) {
	p := httpx.NewParser()
	defer p.Close()

	feedAll(p, "FROB /x HTTP/1.1\r\n\r\n")
	require.False(t, p.Empty())
	_, ok := p.PopFront()
	assert.False(t, ok)

	feedAll(p, "GET /x\r\n\r\n")
	require.False(t, p.Empty())
	_, ok = p.PopFront()
	assert.False(t, ok)
}

func TestParseAsteriskForm(t *testing.T) {
	p := httpx.NewParser()
	defer p.Close()

	feedAll(p, "OPTIONS * HTTP/1.1\r\nHost: x\r\n\r\n")
	req, ok := p.PopFront()
	require.True(t, ok)
	assert.Equal(t, httpx.OPTIONS, req.Method)
	assert.Equal(t, httpx.AsteriskForm, req.Target.Form)
}

func TestParseHeaderOWS(t *testing.T) {
	p := httpx.NewParser()
	defer p.Close()

	feedAll(p, "GET / HTTP/1.1\r\nHost:\t  spaced.example \t\r\n\r\n")
	req, ok := p.PopFront()
	require.True(t, ok)
	assert.Equal(t, "spaced.example", req.Header["Host"])
}

func TestPctDecode(t *testing.T) {
	got, err := httpx.PctDecode("/a%20b%2Fc")
	require.NoError(t, err)
	assert.Equal(t, "/a b/c", got)

	_, err = httpx.PctDecode("/bad%2")
	assert.ErrorIs(t, err, httpx.ErrBadEscape)

	_, err = httpx.PctDecode("/bad%zz")
	assert.ErrorIs(t, err, httpx.ErrBadEscape)

	got, err = httpx.PctDecode("/plain")
	require.NoError(t, err)
	assert.Equal(t, "/plain", got)
}

func TestResponseAppendTo(t *testing.T) {
	m := &httpx.ResponseMsg{
		Status: httpx.StatusOK,
		Header: map[string]string{"Content-Length": "2"},
		Body:   []byte("hi"),
	}
	wire := string(m.AppendTo(nil))
	assert.True(t, strings.HasPrefix(wire, "HTTP/1.1 200 OK\r\n"))
	assert.Contains(t, wire, "Content-Length: 2\r\n")
	assert.True(t, strings.HasSuffix(wire, "\r\n\r\nhi"))
}

func TestMethodRoundTrip(t *testing.T) {
	for m := range httpx.Method(httpx.MethodCount) {
		got, ok := httpx.ParseMethod(m.String())
		require.True(t, ok)
		assert.Equal(t, m, got)
	}
	_, ok := httpx.ParseMethod("FROB")
	assert.False(t, ok)
}
