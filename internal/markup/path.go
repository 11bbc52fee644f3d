package markup

import (
	"fmt"
	"strconv"
	"strings"
)

// PathOf returns the canonical positional path of e, e.g.
// /html[1]/body[1]/div[2]/p[1]. Indexes count same-tag siblings from 1.
func PathOf(e *Element) string {
	var segments []string
	for cur := e; cur != nil && cur.Parent != nil; cur = cur.Parent {
		n := 0
		for _, sib := range cur.Parent.Children {
			if sib.Tag == cur.Tag {
				n++
			}
			if sib == cur {
				break
			}
		}
		segments = append(segments, fmt.Sprintf("%s[%d]", cur.Tag, n))
	}
	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}
	return "/" + strings.Join(segments, "/")
}

type pathSegment struct {
	tag   string
	index int
}

func parsePath(path string) ([]pathSegment, error) {
	trimmed := strings.Trim(strings.TrimSpace(path), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("empty path")
	}

	parts := strings.Split(trimmed, "/")
	segments := make([]pathSegment, 0, len(parts))
	for _, part := range parts {
		seg := pathSegment{tag: strings.ToLower(part), index: 1}
		if open := strings.IndexByte(part, '['); open >= 0 {
			if !strings.HasSuffix(part, "]") {
				return nil, fmt.Errorf("bad path segment %q", part)
			}
			n, err := strconv.Atoi(part[open+1 : len(part)-1])
			if err != nil || n < 1 {
				return nil, fmt.Errorf("bad index in path segment %q", part)
			}
			seg.tag = strings.ToLower(part[:open])
			seg.index = n
		}
		if seg.tag == "" {
			return nil, fmt.Errorf("bad path segment %q", part)
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

// FindByPath resolves a positional path. Documents without explicit html or
// body tags still resolve paths that name them: a leading html/head/body
// segment that has no matching element is skipped.
func (ix *Index) FindByPath(path string) (*Element, error) {
	segments, err := parsePath(path)
	if err != nil {
		return nil, err
	}

	cur := ix.Root
	for _, seg := range segments {
		next := childByTag(cur, seg)
		if next == nil && seg.index == 1 && isImplied(seg.tag) {
			continue
		}
		if next == nil {
			return nil, nil
		}
		cur = next
	}
	if cur == ix.Root {
		return nil, nil
	}
	return cur, nil
}

func childByTag(parent *Element, seg pathSegment) *Element {
	n := 0
	for _, c := range parent.Children {
		if c.Tag != seg.tag {
			continue
		}
		n++
		if n == seg.index {
			return c
		}
	}
	return nil
}

func isImplied(tag string) bool {
	return tag == "html" || tag == "head" || tag == "body"
}
