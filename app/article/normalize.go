package article

import (
	"html"
	"strings"
)

// Normalize decodes HTML entities in the text fields of a record. Image and
// publish timestamp pass through unchanged.
func Normalize(rec Record) Record {
	rec.Title = decode(rec.Title)
	rec.Content = decode(rec.Content)
	rec.Summary = decode(rec.Summary)
	return rec
}

func decode(s string) string {
	return strings.TrimSpace(html.UnescapeString(s))
}
