package cms

import (
	"strconv"
	"strings"
)

// Entry is a raw CMS entry. Schemas differ between content type versions,
// so values are read through the accessor helpers below.
type Entry map[string]any

// Lookup resolves a dotted path such as "course_details.title".
func (e Entry) Lookup(path string) (any, bool) {
	var cur any = map[string]any(e)
	for _, key := range strings.Split(path, ".") {
		m, ok := asObject(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func (e Entry) UID() string {
	return e.String("uid")
}

// String returns the trimmed string at path, or "".
func (e Entry) String(path string) string {
	v, ok := e.Lookup(path)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// FirstString returns the first non-empty string among the candidate paths.
func (e Entry) FirstString(paths []string) string {
	for _, p := range paths {
		if s := e.String(p); s != "" {
			return s
		}
	}
	return ""
}

// FirstValue returns the first present, non-empty value among the candidate paths.
func (e Entry) FirstValue(paths []string) (any, bool) {
	for _, p := range paths {
		v, ok := e.Lookup(p)
		if ok && !isEmpty(v) {
			return v, true
		}
	}
	return nil, false
}

// FirstNumber returns the first candidate that parses as a number.
func (e Entry) FirstNumber(paths []string) (float64, bool) {
	for _, p := range paths {
		v, ok := e.Lookup(p)
		if !ok {
			continue
		}
		if n, ok := toNumber(v); ok {
			return n, true
		}
	}
	return 0, false
}

// FirstList returns the first candidate whose value is a list, as entries.
func (e Entry) FirstList(paths []string) ([]Entry, string, bool) {
	for _, p := range paths {
		v, ok := e.Lookup(p)
		if !ok {
			continue
		}
		list, ok := v.([]any)
		if !ok {
			continue
		}
		entries := make([]Entry, 0, len(list))
		for _, item := range list {
			if m, ok := asObject(item); ok {
				entries = append(entries, Entry(m))
			}
		}
		return entries, p, true
	}
	return nil, "", false
}

// Object returns the nested object at path. A single-element list is unwrapped,
// matching how reference fields are delivered for single references.
func (e Entry) Object(path string) (Entry, bool) {
	v, ok := e.Lookup(path)
	if !ok {
		return nil, false
	}
	if list, ok := v.([]any); ok {
		if len(list) == 0 {
			return nil, false
		}
		v = list[0]
	}
	m, ok := asObject(v)
	if !ok {
		return nil, false
	}
	return Entry(m), true
}

func asObject(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Entry:
		return m, true
	}
	return nil, false
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
