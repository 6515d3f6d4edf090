// Package jsonpath pulls a scalar out of a decoded JSON document using a
// small dot/index path syntax such as "results[0].alternatives[0].transcript".
package jsonpath

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type step struct {
	key   string
	index int
	isIdx bool
}

// Path is a compiled lookup path.
type Path struct {
	raw   string
	steps []step
}

func (p Path) String() string { return p.raw }

// Empty reports whether p selects nothing.
func (p Path) Empty() bool { return len(p.steps) == 0 }

// Compile parses a path. An empty string compiles to the empty path.
func Compile(path string) (Path, error) {
	p := Path{raw: path}
	if path == "" {
		return p, nil
	}
	for _, seg := range strings.Split(path, ".") {
		if seg == "" {
			return Path{}, fmt.Errorf("empty segment in %q", path)
		}
		key, rest, _ := strings.Cut(seg, "[")
		if key != "" {
			p.steps = append(p.steps, step{key: key})
		}
		if rest == "" && !strings.Contains(seg, "[") {
			continue
		}
		rest = "[" + rest
		for rest != "" {
			if rest[0] != '[' {
				return Path{}, fmt.Errorf("unexpected %q in %q", rest, seg)
			}
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				return Path{}, fmt.Errorf("missing ] in %q", seg)
			}
			n, err := strconv.Atoi(rest[1:end])
			if err != nil || n < 0 {
				return Path{}, fmt.Errorf("invalid index %q in %q", rest[1:end], seg)
			}
			p.steps = append(p.steps, step{index: n, isIdx: true})
			rest = rest[end+1:]
		}
	}
	return p, nil
}

// MustCompile is Compile that panics on error.
func MustCompile(path string) Path {
	p, err := Compile(path)
	if err != nil {
		panic(err)
	}
	return p
}

// Lookup walks root, a value produced by encoding/json into any.
func (p Path) Lookup(root any) (any, bool) {
	if p.Empty() {
		return nil, false
	}
	cur := root
	for _, s := range p.steps {
		if s.isIdx {
			arr, ok := cur.([]any)
			if !ok || s.index >= len(arr) {
				return nil, false
			}
			cur = arr[s.index]
			continue
		}
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[s.key]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// Scalar formats strings, numbers and booleans. Integral numbers print
// without a fraction.
func Scalar(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case float64:
		if x == float64(int64(x)) {
			return strconv.FormatInt(int64(x), 10), true
		}
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(x), true
	}
	return "", false
}

// ExtractText decodes body and returns the scalar at p. When p does not
// resolve it falls back to a top-level "text" field and then to any
// non-empty top-level string.
func ExtractText(body []byte, p Path) (string, error) {
	var root any
	if err := json.Unmarshal(body, &root); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if v, ok := p.Lookup(root); ok {
		if s, ok := Scalar(v); ok {
			return s, nil
		}
	}
	m, ok := root.(map[string]any)
	if !ok {
		return "", fmt.Errorf("no text at %q", p.raw)
	}
	if s, ok := Scalar(m["text"]); ok {
		return s, nil
	}
	for _, v := range m {
		if s, ok := v.(string); ok && s != "" {
			return s, nil
		}
	}
	return "", fmt.Errorf("no text at %q", p.raw)
}
