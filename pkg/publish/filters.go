package publish

import "path"

// MatchesFilters reports whether an item type matches any of the given
// filter patterns. Patterns use path.Match glob semantics with "." treated
// as a separator, so "cache.*" matches "cache.alembic" but not
// "cache.alembic.frame".
func MatchesFilters(filters []string, itemType string) bool {
	for _, filter := range filters {
		if matchFilter(filter, itemType) {
			return true
		}
	}
	return false
}

func matchFilter(filter, itemType string) bool {
	if filter == itemType {
		return true
	}
	ok, err := path.Match(dotsToSlashes(filter), dotsToSlashes(itemType))
	return err == nil && ok
}

func dotsToSlashes(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			out[i] = '/'
		} else {
			out[i] = s[i]
		}
	}
	return string(out)
}
