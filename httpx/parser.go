// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package httpx

import (
	"strconv"
	"strings"

	"code.hybscloud.com/ringhttp/coro"
)

const crlf = "\r\n"

// Parser is the incremental request parser. The parse state machine runs
// as a message-bearing task that suspends whenever it needs more bytes;
// Feed resumes it with the next read's data and returns once every fed
// byte has been consumed or copied, so the caller may reuse its read
// buffer immediately.
//
// Parsed messages queue up in arrival order; a parse failure queues a nil
// message (PopFront reports it as ok=false), discards any unconsumed
// bytes of the current feed, and the machine restarts with the next Feed.
type Parser struct {
	lineBuffer []byte
	data       string
	msgs       []*Request
	task       *coro.Sendable[string]
}

// NewParser starts the parse task.
func NewParser() *Parser {
	p := &Parser{}
	p.task = coro.NewSendable(func(t *coro.Sendable[string], _ *coro.Coroutine) {
		p.run(t)
	})
	return p
}

// Feed hands one chunk of wire data to the parse task.
func (p *Parser) Feed(data []byte) {
	p.task.Send(string(data))
}

// Empty reports whether no message (or failure marker) is queued.
func (p *Parser) Empty() bool {
	return len(p.msgs) == 0
}

// PopFront removes the first queued message. ok is false for a parse
// failure marker.
func (p *Parser) PopFront() (*Request, bool) {
	msg := p.msgs[0]
	p.msgs = p.msgs[1:]
	return msg, msg != nil
}

// Close releases the parse task's goroutine.
func (p *Parser) Close() {
	p.task.Close()
}

func (p *Parser) failParse() {
	p.msgs = append(p.msgs, nil)
	p.lineBuffer = p.lineBuffer[:0]
	p.data = ""
}

// getLine returns the next CRLF-terminated line, buffering partial lines
// across feeds.
func (p *Parser) getLine() (string, bool) {
	end := strings.Index(p.data, crlf)
	if end < 0 {
		p.lineBuffer = append(p.lineBuffer, p.data...)
		p.data = ""
		return "", false
	}
	line := p.data[:end]
	p.data = p.data[end+len(crlf):]
	if len(p.lineBuffer) > 0 {
		p.lineBuffer = append(p.lineBuffer, line...)
		line = string(p.lineBuffer)
		p.lineBuffer = p.lineBuffer[:0]
	}
	return line, true
}

// more suspends until the next Feed. Returns false when the parser is
// closed.
func (p *Parser) more(t *coro.Sendable[string]) bool {
	data, ok := t.WaitMessage()
	if !ok {
		return false
	}
	p.data = data
	return true
}

func parseTarget(s string) (Target, bool) {
	if strings.HasPrefix(s, "/") {
		path := s
		query := ""
		if pos := strings.IndexByte(s, '?'); pos >= 0 {
			path = s[:pos]
			query = s[pos+1:]
		}
		if !ValidAbsolutePath(path) || !ValidQuery(query) {
			return Target{}, false
		}
		return Target{Form: OriginForm, Path: path, Query: query}, true
	}
	if s == "*" {
		return Target{Form: AsteriskForm}, true
	}
	return Target{Form: AbsoluteForm}, true
}

func trimOWS(s string) string {
	return strings.Trim(s, " \t")
}

func (p *Parser) run(t *coro.Sendable[string]) {
	if !p.more(t) {
		return
	}

restart:
	for {
		req := &Request{Header: make(map[string]string)}

		// Request line.
		var line string
		for {
			l, ok := p.getLine()
			if ok {
				line = l
				break
			}
			if !p.more(t) {
				return
			}
		}
		parts := strings.Split(line, " ")
		if len(parts) != 3 {
			p.failParse()
			continue restart
		}
		method, ok := ParseMethod(parts[0])
		if !ok {
			p.failParse()
			continue restart
		}
		target, ok := parseTarget(parts[1])
		if !ok {
			p.failParse()
			continue restart
		}
		req.Method = method
		req.Target = target
		req.Version = parts[2]

		// Headers.
		for !strings.HasPrefix(p.data, crlf) {
			var hline string
			for {
				l, ok := p.getLine()
				if ok {
					hline = l
					break
				}
				if !p.more(t) {
					return
				}
			}
			keyEnd := 0
			for keyEnd < len(hline) && isTchar(hline[keyEnd]) {
				keyEnd++
			}
			if keyEnd == 0 {
				p.failParse()
				continue restart
			}
			if keyEnd >= len(hline) || hline[keyEnd] != ':' {
				p.failParse()
				continue restart
			}
			req.Header[hline[:keyEnd]] = trimOWS(hline[keyEnd+1:])

			if len(p.data) == 0 {
				if !p.more(t) {
					return
				}
			}
		}
		p.data = p.data[len(crlf):]

		// Body, delimited by Content-Length.
		if clv, found := req.Header["Content-Length"]; found {
			contentLength, err := strconv.ParseUint(clv, 10, 63)
			if err != nil {
				p.failParse()
				continue restart
			}
			body := make([]byte, 0, contentLength)
			for uint64(len(body)) < contentLength {
				need := contentLength - uint64(len(body))
				if need > uint64(len(p.data)) {
					body = append(body, p.data...)
					if !p.more(t) {
						return
					}
				} else {
					body = append(body, p.data[:need]...)
					p.data = p.data[need:]
				}
			}
			req.Body = body
		}

		p.msgs = append(p.msgs, req)
	}
}
