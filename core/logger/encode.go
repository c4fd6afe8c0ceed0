package logger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

type encoder interface {
	encode(fields map[string]any) ([]byte, error)
}

func newEncoder(format logFormat, order []string) encoder {
	k := newKeyRank(order)
	if format == formatJSON {
		return jsonEncoder{keys: k}
	}
	return kvEncoder{keys: k}
}

// keyRank orders keys by the configured list; unlisted keys follow
// alphabetically.
type keyRank map[string]int

func newKeyRank(order []string) keyRank {
	r := make(keyRank, len(order))
	for i, k := range order {
		if _, dup := r[k]; !dup {
			r[k] = i
		}
	}
	return r
}

func (r keyRank) sorted(fields map[string]any) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	rank := func(k string) int {
		if i, ok := r[k]; ok {
			return i
		}
		return len(r)
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, rj := rank(keys[i]), rank(keys[j])
		if ri != rj {
			return ri < rj
		}
		return keys[i] < keys[j]
	})
	return keys
}

type kvEncoder struct{ keys keyRank }

func (e kvEncoder) encode(fields map[string]any) ([]byte, error) {
	var b bytes.Buffer
	for i, k := range e.keys.sorted(fields) {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(kvValue(fields[k]))
	}
	return b.Bytes(), nil
}

type jsonEncoder struct{ keys keyRank }

func (e jsonEncoder) encode(fields map[string]any) ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, k := range e.keys.sorted(fields) {
		v, err := json.Marshal(fields[k])
		if err != nil {
			return nil, fmt.Errorf("logger: encode %s: %w", k, err)
		}
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(k))
		b.WriteByte(':')
		b.Write(v)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

func kvValue(v any) string {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		s = fmt.Sprint(x)
	}
	if strings.IndexFunc(s, needsQuote) >= 0 {
		return strconv.Quote(s)
	}
	return s
}

func needsQuote(r rune) bool {
	return r <= ' ' || r == '=' || r == '"'
}
