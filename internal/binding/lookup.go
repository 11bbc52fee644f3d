package binding

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Lookup resolves a bound key against data scoped under alias. It tries
// alias.key as a dot path, then key itself as a path when it has dots, then
// data[key]. Numeric path segments index arrays. The first hit wins.
func Lookup(data map[string]any, alias, key string) (any, bool) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, false
	}
	if alias != "" {
		if v, ok := Path(data, alias+"."+key); ok {
			return v, true
		}
	}
	if strings.Contains(key, ".") {
		if v, ok := Path(data, key); ok {
			return v, true
		}
	}
	v, ok := data[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Path walks a dot path through decoded JSON.
func Path(data any, path string) (any, bool) {
	cur := data
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	if cur == nil {
		return nil, false
	}
	return cur, true
}

// Display renders a resolved value as text.
func Display(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case json.Number:
		return val.String()
	case nil:
		return ""
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(data)
	}
}
