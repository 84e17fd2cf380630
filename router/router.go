// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package router matches request paths against parameterized templates.
//
// A template is a `/`-separated sequence of segments; a segment is either
// a literal or a parameter `{name}` with name in [a-z0-9_]+. Templates
// are validated at registration, and a malformed one panics — it is a
// programming error surfaced at startup, not a runtime condition.
//
// The tree is generic over the handler type so the HTTP layer can store
// whatever task constructor it likes; matching prefers a literal child
// over the parameter child at every step and records parameter bindings
// as it descends.
package router

import (
	"fmt"
	"strings"
)

type segmentKind uint8

const (
	segmentStatic segmentKind = iota
	segmentParam
)

type segment struct {
	kind segmentKind
	str  string // literal text, or the parameter name
}

// Template is a parsed, validated path template.
type Template struct {
	raw      string
	segments []segment
}

// ParseTemplate validates and parses tpl. Invalid parameter names are
// fatal.
func ParseTemplate(tpl string) Template {
	t := Template{raw: tpl}
	for part := range strings.SplitSeq(tpl, "/") {
		if strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}") {
			name := part[1 : len(part)-1]
			for i := 0; i < len(name); i++ {
				c := name[i]
				if !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '_') {
					panic(fmt.Sprintf("router: invalid character %q in parameter name %q", c, tpl))
				}
			}
			t.segments = append(t.segments, segment{segmentParam, name})
			continue
		}
		t.segments = append(t.segments, segment{segmentStatic, part})
	}
	return t
}

// String returns the original template text.
func (t Template) String() string {
	return t.raw
}

type paramChild[H any] struct {
	name  string
	child *node[H]
}

type node[H any] struct {
	children map[string]*node[H]
	param    *paramChild[H]
	handler  *H
}

// Tree is the radix tree over one method's dynamic routes.
type Tree[H any] struct {
	root node[H]
}

// New creates an empty tree.
func New[H any]() *Tree[H] {
	return &Tree[H]{}
}

// Insert registers handler under tpl. A later insert on the same template
// replaces the handler; a parameter segment reuses the existing parameter
// child regardless of its registered name.
func (t *Tree[H]) Insert(tpl Template, handler H) {
	curr := &t.root
	for _, seg := range tpl.segments {
		switch seg.kind {
		case segmentStatic:
			if curr.children == nil {
				curr.children = make(map[string]*node[H])
			}
			child, ok := curr.children[seg.str]
			if !ok {
				child = &node[H]{}
				curr.children[seg.str] = child
			}
			curr = child
		case segmentParam:
			if curr.param == nil {
				curr.param = &paramChild[H]{name: seg.str, child: &node[H]{}}
			}
			curr = curr.param.child
		}
	}
	curr.handler = &handler
}

// Route matches the `/`-split segments of a decoded path. Literal match
// wins over parameter match at every step; parameter values are returned
// in params. The second return is false when no handler matches.
func (t *Tree[H]) Route(path string) (H, map[string]string, bool) {
	curr := &t.root
	var params map[string]string
	for part := range strings.SplitSeq(path, "/") {
		if child, ok := curr.children[part]; ok {
			curr = child
			continue
		}
		if curr.param != nil {
			if params == nil {
				params = make(map[string]string)
			}
			params[curr.param.name] = part
			curr = curr.param.child
			continue
		}
		var zero H
		return zero, nil, false
	}
	if curr.handler == nil {
		var zero H
		return zero, nil, false
	}
	return *curr.handler, params, true
}

// Clear drops every route. Only for testing.
func (t *Tree[H]) Clear() {
	t.root = node[H]{}
}
