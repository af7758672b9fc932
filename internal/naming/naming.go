// Package naming переводит имена схем в имена коллекций.
package naming

import (
	"regexp"
	"strings"
)

var (
	firstCapRe = regexp.MustCompile(`(.)([A-Z][a-z]+)`)
	allCapRe   = regexp.MustCompile(`([a-z0-9])([A-Z])`)
)

// SnakeCase: "CamelCase" -> "camel_case", "HTTPServer" -> "http_server".
func SnakeCase(s string) string {
	s = firstCapRe.ReplaceAllString(s, "${1}_${2}")
	s = allCapRe.ReplaceAllString(s, "${1}_${2}")
	return strings.ToLower(s)
}
