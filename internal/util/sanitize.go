package util

import (
	"strings"
)

// MaxNameLen caps sanitized file name length. Long enough for real subjects,
// short enough to stay under path limits once the output root is prepended.
const MaxNameLen = 120

// reservedNames are Windows device names that cannot be used as file names
// regardless of extension. Compared case-insensitively.
var reservedNames = map[string]struct{}{
	"con": {}, "prn": {}, "aux": {}, "nul": {},
	"com1": {}, "com2": {}, "com3": {}, "com4": {}, "com5": {},
	"com6": {}, "com7": {}, "com8": {}, "com9": {},
	"lpt1": {}, "lpt2": {}, "lpt3": {}, "lpt4": {}, "lpt5": {},
	"lpt6": {}, "lpt7": {}, "lpt8": {}, "lpt9": {},
}

// SanitizeName maps an arbitrary remote string (folder name, subject) to a
// safe file name component. The result is never empty, contains only
// [A-Za-z0-9._-], is at most MaxNameLen bytes, and is deterministic.
// Runs of disallowed characters collapse to a single underscore; leading and
// trailing separators are trimmed; Windows reserved device names get an
// underscore prefix.
func SanitizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	lastSep := true // swallow leading separators
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-':
			b.WriteRune(r)
			lastSep = false
		default:
			if !lastSep {
				b.WriteByte('_')
				lastSep = true
			}
		}
	}
	out := strings.Trim(b.String(), "._-")
	if out == "" {
		return "untitled"
	}

	if _, ok := reservedNames[strings.ToLower(strings.TrimSuffix(out, extOf(out)))]; ok {
		out = "_" + out
	}

	if len(out) > MaxNameLen {
		out = strings.Trim(out[:MaxNameLen], "._-")
		if out == "" {
			return "untitled"
		}
	}
	return out
}

func extOf(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i:]
	}
	return ""
}
