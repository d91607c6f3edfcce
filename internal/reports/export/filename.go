package export

import (
	"strings"
)

// Filename builds "<name>_<from>_to_<to>.csv", falling back to the single
// bound that is set, or to today when the window is open.
func Filename(name, from, to, today string) string {
	var suffix string
	switch {
	case from != "" && to != "":
		suffix = from + "_to_" + to
	case from != "":
		suffix = from
	case to != "":
		suffix = to
	default:
		suffix = today
	}
	return sanitize(name) + "_" + suffix + ".csv"
}

// LevelFilename names a level report export of root.
func LevelFilename(root, selector, today string) string {
	name := "level-report_" + sanitize(root)
	if selector != "" && selector != "all" {
		name += "_level-" + sanitize(selector)
	}
	return name + "_" + today + ".csv"
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, strings.TrimSpace(s))
}
