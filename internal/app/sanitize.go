package app

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

const maxCommentLen = 4000

var strictPolicy = bluemonday.StrictPolicy()

// SanitizeText strips all markup from user-submitted text and bounds its length.
func SanitizeText(s string) string {
	out := strictPolicy.Sanitize(s)
	// StrictPolicy entity-encodes what it keeps; store plain text
	out = strings.TrimSpace(html.UnescapeString(out))
	if r := []rune(out); len(r) > maxCommentLen {
		out = string(r[:maxCommentLen])
	}
	return out
}
