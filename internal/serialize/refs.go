package serialize

import (
	"sort"
	"strings"
)

// References returns the sorted, de-duplicated logical IDs that a
// serialized value points at through Ref, Fn::GetAtt or Fn::Sub
// placeholders. Pseudo parameters (AWS::*) are skipped.
func References(v any) []string {
	seen := make(map[string]bool)
	collect(v, seen)
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func collect(v any, seen map[string]bool) {
	switch t := v.(type) {
	case map[string]any:
		if len(t) == 1 {
			if handled := intrinsic(t, seen); handled {
				return
			}
		}
		for _, elem := range t {
			collect(elem, seen)
		}
	case []any:
		for _, elem := range t {
			collect(elem, seen)
		}
	}
}

func intrinsic(m map[string]any, seen map[string]bool) bool {
	if ref, ok := m["Ref"].(string); ok {
		add(ref, seen)
		return true
	}
	if att, ok := m["Fn::GetAtt"]; ok {
		switch a := att.(type) {
		case []any:
			if len(a) > 0 {
				if name, ok := a[0].(string); ok {
					add(name, seen)
				}
			}
		case string:
			name, _, _ := strings.Cut(a, ".")
			add(name, seen)
		}
		return true
	}
	if sub, ok := m["Fn::Sub"]; ok {
		switch s := sub.(type) {
		case string:
			for _, name := range SubPlaceholders(s) {
				add(name, seen)
			}
		case []any:
			var local map[string]any
			if len(s) > 1 {
				local, _ = s[1].(map[string]any)
				collect(s[1], seen)
			}
			if len(s) > 0 {
				if str, ok := s[0].(string); ok {
					for _, name := range SubPlaceholders(str) {
						if _, bound := local[name]; !bound {
							add(name, seen)
						}
					}
				}
			}
		}
		return true
	}
	return false
}

// SubPlaceholders returns the logical IDs named by ${Name} or ${Name.Attr}
// placeholders of an Fn::Sub string, in order of appearance. Escaped
// literals (${!Literal}) and pseudo parameters are skipped.
func SubPlaceholders(s string) []string {
	var out []string
	for {
		start := strings.Index(s, "${")
		if start < 0 {
			return out
		}
		s = s[start+2:]
		end := strings.IndexByte(s, '}')
		if end < 0 {
			return out
		}
		body := s[:end]
		s = s[end+1:]
		if body == "" || body[0] == '!' || strings.HasPrefix(body, "AWS::") {
			continue
		}
		name, _, _ := strings.Cut(body, ".")
		out = append(out, name)
	}
}

func add(name string, seen map[string]bool) {
	if name == "" || strings.HasPrefix(name, "AWS::") {
		return
	}
	seen[name] = true
}
