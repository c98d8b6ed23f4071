package engine

import (
	"net"
	"strconv"
	"strings"

	"github.com/erraggy/oasengine/internal/pathtemplate"
	"github.com/erraggy/oasengine/oaserrors"
	"github.com/erraggy/oasengine/parser"
)

// serverMatcher matches requests against one declared server URL.
type serverMatcher struct {
	url string
	// host is nil when the server URL names no host
	host *pathtemplate.Matcher
	// hostPort is true when the host template includes a port
	hostPort bool
	// path is nil when the server matches every path
	path *pathtemplate.Matcher
}

// serverMatch is a request matched against a server.
type serverMatch struct {
	server *serverMatcher
	// params holds the raw values of the server URL variables
	params map[string]string
	// remainder is the request path below the server's base path
	remainder string
}

// compileServers builds matchers for the declared servers in order. With no
// servers (or when ignored) a single root server matches everything.
func compileServers(servers []*parser.Server, ignore bool) ([]*serverMatcher, error) {
	if ignore || len(servers) == 0 {
		return []*serverMatcher{{url: "/"}}, nil
	}
	out := make([]*serverMatcher, 0, len(servers))
	for i, s := range servers {
		if s == nil {
			continue
		}
		m, err := compileServer(s.URL)
		if err != nil {
			return nil, &oaserrors.ConfigError{Option: parser.JoinPointer("#/servers", strconv.Itoa(i), "url"), Value: s.URL, Cause: err}
		}
		out = append(out, m)
	}
	return out, nil
}

func compileServer(raw string) (*serverMatcher, error) {
	m := &serverMatcher{url: raw}

	var host, path string
	switch {
	case strings.Contains(raw, "://"):
		_, rest, _ := strings.Cut(raw, "://")
		host, path = splitHostPath(rest)
	case strings.HasPrefix(raw, "//"):
		host, path = splitHostPath(raw[2:])
	case strings.HasPrefix(raw, "/"):
		path = raw
	default:
		// relative server URLs match every request
		return m, nil
	}

	if host != "" {
		hm, err := pathtemplate.Compile(host, pathtemplate.Options{CaseInsensitive: true})
		if err != nil {
			return nil, err
		}
		m.host = hm
		m.hostPort = hasPort(host)
	}

	path = strings.TrimRight(path, "/")
	if path != "" {
		pm, err := pathtemplate.Compile(path, pathtemplate.Options{OpenEnded: true})
		if err != nil {
			return nil, err
		}
		m.path = pm
	}
	return m, nil
}

func splitHostPath(s string) (host, path string) {
	if i := strings.IndexByte(s, '/'); i >= 0 {
		return s[:i], s[i:]
	}
	return s, ""
}

func hasPort(host string) bool {
	// a colon after the last closing brace (or anywhere, if no templates)
	if i := strings.LastIndexByte(host, '}'); i >= 0 {
		host = host[i+1:]
	}
	return strings.Contains(host, ":")
}

// match reports whether the request host and escaped path fall under s.
func (s *serverMatcher) match(host, path string) (serverMatch, bool) {
	params := make(map[string]string)
	if s.host != nil {
		if !s.hostPort {
			if h, _, err := net.SplitHostPort(host); err == nil {
				host = h
			}
		}
		hm, ok := s.host.Match(host)
		if !ok {
			return serverMatch{}, false
		}
		for k, v := range hm.Params {
			params[k] = v
		}
	}

	remainder := path
	if s.path != nil {
		pm, ok := s.path.Match(path)
		if !ok {
			return serverMatch{}, false
		}
		for k, v := range pm.Params {
			params[k] = v
		}
		remainder = pm.Remainder
	}
	if remainder == "" {
		remainder = "/"
	}
	return serverMatch{server: s, params: params, remainder: remainder}, true
}

// resolveServer returns the first server, in declaration order, that
// matches the request.
func resolveServer(servers []*serverMatcher, host, path string) (serverMatch, bool) {
	for _, s := range servers {
		if m, ok := s.match(host, path); ok {
			return m, true
		}
	}
	return serverMatch{}, false
}
