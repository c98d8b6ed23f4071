package schema

import (
	"math"
	"net/mail"
	"net/netip"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FormatFunc reports whether value satisfies a format. It is called for
// every value whose schema names the format, whatever its type.
type FormatFunc func(value any) bool

// Formats is a set of named format checks. Unknown formats are ignored.
type Formats struct {
	checks map[string]FormatFunc
}

// DefaultFormats returns the built-in formats: bounded int32 and int64,
// date, date-time, email, uuid, uri, ipv4, ipv6 and hostname, plus no-op
// float, double, binary, byte and password.
func DefaultFormats() *Formats {
	f := &Formats{checks: make(map[string]FormatFunc)}
	f.checks["int32"] = integerRange(math.MinInt32, math.MaxInt32)
	f.checks["int64"] = integerRange(math.MinInt64, math.MaxInt64)
	for _, name := range []string{"float", "double", "binary", "byte", "password"} {
		f.checks[name] = func(any) bool { return true }
	}
	f.checks["date"] = stringFormat(isValidDate)
	f.checks["date-time"] = stringFormat(isValidDateTime)
	f.checks["email"] = stringFormat(isValidEmail)
	f.checks["uuid"] = stringFormat(isValidUUID)
	f.checks["uri"] = stringFormat(isValidURI)
	f.checks["ipv4"] = stringFormat(func(s string) bool {
		addr, err := netip.ParseAddr(s)
		return err == nil && addr.Is4()
	})
	f.checks["ipv6"] = stringFormat(func(s string) bool {
		addr, err := netip.ParseAddr(s)
		return err == nil && addr.Is6()
	})
	f.checks["hostname"] = stringFormat(isValidHostname)
	return f
}

// Clone returns an independent copy of f.
func (f *Formats) Clone() *Formats {
	c := &Formats{checks: make(map[string]FormatFunc, len(f.checks))}
	for k, v := range f.checks {
		c.checks[k] = v
	}
	return c
}

// Add installs or replaces a format check.
func (f *Formats) Add(name string, fn FormatFunc) {
	f.checks[name] = fn
}

// Lookup returns the check for name.
func (f *Formats) Lookup(name string) (FormatFunc, bool) {
	fn, ok := f.checks[name]
	return fn, ok
}

// stringFormat applies check to strings and accepts every other type.
func stringFormat(check func(string) bool) FormatFunc {
	return func(v any) bool {
		s, ok := v.(string)
		return !ok || check(s)
	}
}

// integerRange accepts numbers that are whole and inside [lo, hi]. Other
// types pass; the type keyword rejects them.
func integerRange(lo, hi float64) FormatFunc {
	return func(v any) bool {
		n, ok := v.(float64)
		if !ok {
			return true
		}
		return n == math.Trunc(n) && n >= lo && n <= hi
	}
}

var hostnameLabel = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9-]{0,61}[A-Za-z0-9])?$`)

func isValidDate(s string) bool {
	_, err := time.Parse(time.DateOnly, s)
	return err == nil
}

func isValidDateTime(s string) bool {
	_, err := time.Parse(time.RFC3339Nano, s)
	return err == nil
}

func isValidEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

func isValidUUID(s string) bool {
	return len(s) == 36 && uuid.Validate(s) == nil
}

func isValidURI(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.IsAbs()
}

func isValidHostname(s string) bool {
	if s == "" || len(s) > 253 {
		return false
	}
	for _, label := range strings.Split(strings.TrimSuffix(s, "."), ".") {
		if !hostnameLabel.MatchString(label) {
			return false
		}
	}
	return true
}
