// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package httpx

import "errors"

// ErrBadEscape reports a truncated or non-hex percent escape.
var ErrBadEscape = errors.New("httpx: invalid percent escape")

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// PctDecode decodes %XX escapes in s.
func PctDecode(s string) (string, error) {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '%' {
			out = append(out, s[i])
			continue
		}
		if i+2 >= len(s) {
			return "", ErrBadEscape
		}
		hi, ok1 := hexVal(s[i+1])
		lo, ok2 := hexVal(s[i+2])
		if !ok1 || !ok2 {
			return "", ErrBadEscape
		}
		out = append(out, hi<<4|lo)
		i += 2
	}
	return string(out), nil
}

// tchar is the header field-name alphabet.
var tcharTable = makeTable("0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz!#$%&'*+-.^_`|~")

// pchar (minus pct-escapes, handled separately) is the path alphabet.
var pcharTable = makeTable("0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-._~!$&'()*+,;=:@")

func makeTable(chars string) [256]bool {
	var t [256]bool
	for i := 0; i < len(chars); i++ {
		t[chars[i]] = true
	}
	return t
}

func isTchar(c byte) bool { return tcharTable[c] }

// validEscaped walks a pchar string allowing extra literal characters,
// checking well-formed escapes.
func validEscaped(s string, extra ...byte) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if pcharTable[c] {
			continue
		}
		if c == '%' {
			if i+2 >= len(s) {
				return false
			}
			if _, ok := hexVal(s[i+1]); !ok {
				return false
			}
			if _, ok := hexVal(s[i+2]); !ok {
				return false
			}
			i += 2
			continue
		}
		allowed := false
		for _, e := range extra {
			if c == e {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}
	return true
}

// ValidAbsolutePath reports whether s is a valid absolute-path.
func ValidAbsolutePath(s string) bool {
	return validEscaped(s, '/')
}

// ValidQuery reports whether s is a valid query component.
func ValidQuery(s string) bool {
	return validEscaped(s, '/', '?')
}
