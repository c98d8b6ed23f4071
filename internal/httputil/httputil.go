// Package httputil holds HTTP method and status-code helpers shared by the
// engine and the command-line tools.
package httputil

import (
	"mime"
	"strconv"
	"strings"
)

// HTTP Status Code Constants
const (
	StatusCodeLength = 3   // Standard length of HTTP status codes (e.g., "200", "404")
	MinStatusCode    = 100 // Minimum valid HTTP status code
	MaxStatusCode    = 599 // Maximum valid HTTP status code
	WildcardChar     = 'X' // Wildcard character used in status code patterns (e.g., "2XX")
	DefaultStatusKey = "default"
)

// Contract method keys, lower case as they appear in a path item.
const (
	MethodGet     = "get"
	MethodPut     = "put"
	MethodPost    = "post"
	MethodDelete  = "delete"
	MethodOptions = "options"
	MethodHead    = "head"
	MethodPatch   = "patch"
	MethodTrace   = "trace"
)

// Methods lists the contract method keys in the order used for Allow headers
// and route listings.
var Methods = []string{
	MethodGet,
	MethodPut,
	MethodPost,
	MethodDelete,
	MethodOptions,
	MethodHead,
	MethodPatch,
	MethodTrace,
}

// AllowHeader renders an Allow header value for the given method keys,
// upper-cased and ordered as in Methods.
func AllowHeader(methods map[string]bool) string {
	var parts []string
	for _, m := range Methods {
		if methods[m] {
			parts = append(parts, strings.ToUpper(m))
		}
	}
	return strings.Join(parts, ", ")
}

// ValidateStatusCode checks if a responses key is valid.
// Valid values are:
//   - "default" for default response
//   - Extension fields starting with "x-"
//   - Wildcard patterns: 1XX, 2XX, 3XX, 4XX, 5XX
//   - Numeric codes: 100-599
func ValidateStatusCode(code string) bool {
	if code == DefaultStatusKey {
		return true
	}

	if strings.HasPrefix(code, "x-") {
		return true
	}

	if len(code) == StatusCodeLength {
		if isWildcard(code) {
			return true
		}
		if code[0] >= '0' && code[0] <= '9' &&
			code[1] >= '0' && code[1] <= '9' &&
			code[2] >= '0' && code[2] <= '9' {
			statusCode, err := strconv.Atoi(code)
			if err == nil && statusCode >= MinStatusCode && statusCode <= MaxStatusCode {
				return true
			}
		}
	}

	return false
}

func isWildcard(code string) bool {
	upper := strings.ToUpper(code)
	return len(upper) == StatusCodeLength &&
		upper[1] == WildcardChar && upper[2] == WildcardChar &&
		upper[0] >= '1' && upper[0] <= '5'
}

// MatchStatus picks the responses key that describes status: the exact code
// first, then its "NXX" range, then "default". ok is false when none apply.
func MatchStatus(keys map[string]bool, status int) (key string, ok bool) {
	exact := strconv.Itoa(status)
	if keys[exact] {
		return exact, true
	}
	for k := range keys {
		if isWildcard(k) && k[0] == exact[0] {
			return k, true
		}
	}
	if keys[DefaultStatusKey] {
		return DefaultStatusKey, true
	}
	return "", false
}

// IsValidMediaType validates a media type string according to RFC 2045/2046.
// Wildcards are accepted as */* and type/*; a wildcard type with a concrete
// subtype (*/json) is not.
func IsValidMediaType(mediaType string) bool {
	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return false
	}
	typ, sub, ok := strings.Cut(mt, "/")
	if !ok || typ == "" || sub == "" {
		return false
	}
	return typ != "*" || sub == "*"
}
