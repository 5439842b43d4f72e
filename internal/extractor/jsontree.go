package extractor

import "sort"

// findAll walks a decoded JSON value and collects every object for which
// match returns true. Matched objects are not descended into. Object keys
// are visited in sorted order so results are deterministic.
func findAll(root any, match func(map[string]any) bool) []map[string]any {
	var out []map[string]any
	walk(root, match, &out)
	return out
}

func walk(node any, match func(map[string]any) bool, out *[]map[string]any) {
	switch v := node.(type) {
	case map[string]any:
		if match(v) {
			*out = append(*out, v)
			return
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			walk(v[k], match, out)
		}
	case []any:
		for _, item := range v {
			walk(item, match, out)
		}
	}
}
