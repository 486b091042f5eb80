package projects

import (
	"regexp"
	"strings"
)

var nonAlnumRun = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lower-cases the name, collapses every non-alphanumeric run into a
// single hyphen and trims hyphens at the edges. Slugs are immutable once a
// project is created; they are part of the webhook URL.
func Slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = nonAlnumRun.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}
