// Package pathtemplate matches request paths against OpenAPI path templates
// such as "/pets/{petId}".
package pathtemplate

import (
	"fmt"
	"regexp"
	"strings"
)

// Options controls how a template is compiled.
type Options struct {
	// OpenEnded matches only a prefix of the input, ending at a "/" boundary.
	// Server base paths use this mode.
	OpenEnded bool
	// CaseInsensitive folds case when matching literal text (host names).
	CaseInsensitive bool
}

// Matcher matches one compiled template.
type Matcher struct {
	template   string
	regex      *regexp.Regexp
	paramNames []string
	opts       Options
}

// Match is a successful match.
type Match struct {
	// Prefix is the part of the input consumed by the template.
	Prefix string
	// Params holds the raw (still percent-encoded) captured values.
	Params map[string]string
	// Remainder is the unmatched suffix; always empty unless OpenEnded.
	Remainder string
}

// Compile builds a matcher for template. Each {name} placeholder captures a
// non-empty run of characters other than "/". Adjacent placeholders are
// greedy from the left: "/{a}{b}" gives a every character but the last.
func Compile(template string, opts Options) (*Matcher, error) {
	if template == "" && !opts.OpenEnded {
		return nil, fmt.Errorf("path template cannot be empty")
	}

	var regexBuf strings.Builder
	if opts.CaseInsensitive {
		regexBuf.WriteString("(?i)")
	}
	regexBuf.WriteString("^")

	paramNames := []string{}
	rest := template
	for len(rest) > 0 {
		open := strings.IndexByte(rest, '{')
		if open == -1 {
			regexBuf.WriteString(regexp.QuoteMeta(rest))
			break
		}
		regexBuf.WriteString(regexp.QuoteMeta(rest[:open]))

		end := strings.IndexByte(rest[open:], '}')
		if end == -1 {
			return nil, fmt.Errorf("unclosed path parameter at position %d in template %q", len(template)-len(rest)+open, template)
		}
		name := rest[open+1 : open+end]
		if name == "" {
			return nil, fmt.Errorf("empty path parameter at position %d in template %q", len(template)-len(rest)+open, template)
		}
		for _, existing := range paramNames {
			if existing == name {
				return nil, fmt.Errorf("duplicate path parameter %q in template %q", name, template)
			}
		}
		paramNames = append(paramNames, name)
		regexBuf.WriteString("([^/]+)")
		rest = rest[open+end+1:]
	}
	if !opts.OpenEnded {
		regexBuf.WriteString("$")
	}

	regex, err := regexp.Compile(regexBuf.String())
	if err != nil {
		return nil, fmt.Errorf("failed to compile path pattern for template %q: %w", template, err)
	}
	return &Matcher{
		template:   template,
		regex:      regex,
		paramNames: paramNames,
		opts:       opts,
	}, nil
}

// Match reports whether path matches the template.
func (m *Matcher) Match(path string) (Match, bool) {
	loc := m.regex.FindStringSubmatchIndex(path)
	if loc == nil {
		return Match{}, false
	}
	end := loc[1]
	prefix := path[:end]
	if m.opts.OpenEnded && end < len(path) && path[end] != '/' && !strings.HasSuffix(prefix, "/") {
		// "/api" must not match "/apiv2"
		return Match{}, false
	}

	params := make(map[string]string, len(m.paramNames))
	for i, name := range m.paramNames {
		params[name] = path[loc[2*i+2]:loc[2*i+3]]
	}
	return Match{Prefix: prefix, Params: params, Remainder: path[end:]}, true
}

// Template returns the original template.
func (m *Matcher) Template() string {
	return m.template
}

// ParamNames returns the placeholder names in order of appearance.
func (m *Matcher) ParamNames() []string {
	return m.paramNames
}

// IsStatic reports whether the template has no placeholders.
func (m *Matcher) IsStatic() bool {
	return len(m.paramNames) == 0
}
