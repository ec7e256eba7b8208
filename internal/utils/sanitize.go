package utils

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	richTextPolicy  = bluemonday.UGCPolicy()
	plainTextPolicy = bluemonday.StrictPolicy()
)

// SanitizeRichText keeps the safe subset of user HTML used in notices.
func SanitizeRichText(s string) string {
	return strings.TrimSpace(richTextPolicy.Sanitize(s))
}

// SanitizePlainText strips all markup from chat messages, join messages and
// display names. Entities escaped by the policy are decoded again because
// the result is rendered as text, not HTML.
func SanitizePlainText(s string) string {
	return strings.TrimSpace(html.UnescapeString(plainTextPolicy.Sanitize(s)))
}
