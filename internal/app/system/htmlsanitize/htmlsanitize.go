// Package htmlsanitize cleans reviewer-supplied free text before it is stored.
//
// Feedback notes are plain text. Markup is stripped with bluemonday's strict
// policy and the entities it escapes are decoded again, so "A & B" is stored
// as typed while "<script>" never reaches the database.
package htmlsanitize

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strictOnce sync.Once
	strict     *bluemonday.Policy
)

func policy() *bluemonday.Policy {
	strictOnce.Do(func() {
		strict = bluemonday.StrictPolicy()
	})
	return strict
}

// StripTags removes all markup from s and trims surrounding whitespace.
func StripTags(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(policy().Sanitize(s)))
}

// StripTagsList applies StripTags to each entry and drops entries that end up
// empty. A nil result is returned when nothing remains.
func StripTagsList(items []string) []string {
	var out []string
	for _, it := range items {
		if v := StripTags(it); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// IsPlainText reports whether s contains no tag-like markup.
func IsPlainText(s string) bool {
	return !(strings.Contains(s, "<") && strings.Contains(s, ">"))
}
