package util

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var slugCaser = cases.Lower(language.Und)

// Slugify lowercases s and collapses every run of non-alphanumeric
// characters into a single hyphen, producing a string safe to use in a git
// branch name or a filesystem path component.
func Slugify(s string) string {
	s = slugCaser.String(s)
	var b strings.Builder
	prevHyphen := true // suppress a leading hyphen
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			prevHyphen = false
		default:
			if !prevHyphen {
				b.WriteByte('-')
				prevHyphen = true
			}
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if len(out) > 48 {
		out = strings.TrimSuffix(out[:48], "-")
	}
	if out == "" {
		out = "goal"
	}
	return out
}
