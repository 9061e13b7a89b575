package utils

import (
	"net/url"
	"regexp"
	"strings"
)

var invalidFileChars = regexp.MustCompile(`[<>:"/\\|?*\s]+`)

// IsValidURL checks if a string is an absolute URL
func IsValidURL(str string) bool {
	u, err := url.Parse(str)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// CleanFileName replaces characters that are unsafe in file names with
// underscores and trims leading/trailing separators.
func CleanFileName(name string) string {
	cleaned := invalidFileChars.ReplaceAllString(strings.TrimSpace(name), "_")
	cleaned = strings.Trim(cleaned, "._")
	if cleaned == "" {
		return "unnamed"
	}
	return cleaned
}

// ResolveReference resolves href against base. Absolute hrefs are returned
// unchanged; an unparsable base leaves href untouched.
func ResolveReference(base, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	if ref.IsAbs() {
		return ref.String()
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}
