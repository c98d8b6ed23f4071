package parser

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is the parsed value of a document's openapi field.
type Version struct {
	Major      int
	Minor      int
	Patch      int
	Prerelease string
}

// ParseVersion parses "major.minor[.patch][-prerelease]".
func ParseVersion(s string) (Version, error) {
	var v Version
	if idx := strings.IndexByte(s, '-'); idx >= 0 {
		v.Prerelease = s[idx+1:]
		s = s[:idx]
	}
	parts := strings.Split(s, ".")
	if len(parts) < 2 || len(parts) > 3 {
		return Version{}, fmt.Errorf("invalid version format: %q", s)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Version{}, fmt.Errorf("invalid version segment %q in %q", p, s)
		}
		nums[i] = n
	}
	v.Major, v.Minor, v.Patch = nums[0], nums[1], nums[2]
	return v, nil
}

// IsSupported reports whether the engine can compile documents of this version.
// The 3.0 and 3.1 series are supported.
func (v Version) IsSupported() bool {
	return v.Major == 3 && (v.Minor == 0 || v.Minor == 1)
}

// Is31 reports whether the document uses the 3.1 series, where schemas are
// full JSON Schema (type arrays, numeric exclusive bounds).
func (v Version) Is31() bool {
	return v.Major == 3 && v.Minor >= 1
}

func (v Version) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Prerelease != "" {
		s += "-" + v.Prerelease
	}
	return s
}
