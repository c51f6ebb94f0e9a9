package release

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/BaSui01/releaseflow/types"
)

// BumpKind is the size of a version increment.
type BumpKind string

const (
	BumpNone  BumpKind = "none"
	BumpPatch BumpKind = "patch"
	BumpMinor BumpKind = "minor"
	BumpMajor BumpKind = "major"
)

var bumpRank = map[BumpKind]int{BumpNone: 0, BumpPatch: 1, BumpMinor: 2, BumpMajor: 3}

// ParseBumpKind parses a bump kind. The empty string means "derive from commits".
func ParseBumpKind(s string) (BumpKind, error) {
	if s == "" {
		return "", nil
	}
	k := BumpKind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := bumpRank[k]; !ok {
		return "", types.Invalid("unknown bump kind %q", s)
	}
	return k, nil
}

// Max returns the larger of two bump kinds.
func (k BumpKind) Max(other BumpKind) BumpKind {
	if bumpRank[other] > bumpRank[k] {
		return other
	}
	return k
}

// ParseVersion validates a semantic version and returns it without the
// leading "v". Shorthand forms such as "1.2" are rejected.
func ParseVersion(s string) (string, error) {
	v := strings.TrimSpace(s)
	v = strings.TrimPrefix(v, "v")
	sv := "v" + v
	if !semver.IsValid(sv) {
		return "", types.Invalid("invalid semantic version %q", s)
	}
	core := strings.TrimSuffix(strings.TrimSuffix(sv, semver.Build(sv)), semver.Prerelease(sv))
	if strings.Count(core, ".") != 2 {
		return "", types.Invalid("version %q must have major, minor and patch components", s)
	}
	return v, nil
}

// Bump increments version by kind. Prerelease and build suffixes are dropped.
func Bump(version string, kind BumpKind) (string, error) {
	v, err := ParseVersion(version)
	if err != nil {
		return "", err
	}
	core := strings.TrimPrefix(semver.Canonical("v"+v), "v")
	core = strings.TrimSuffix(core, semver.Prerelease("v"+v))

	parts := strings.SplitN(core, ".", 3)
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return "", types.Invalid("invalid version component %q in %q", p, version).WithCause(err)
		}
		nums[i] = n
	}

	switch kind {
	case BumpMajor:
		nums[0], nums[1], nums[2] = nums[0]+1, 0, 0
	case BumpMinor:
		nums[1], nums[2] = nums[1]+1, 0
	case BumpPatch:
		nums[2]++
	case BumpNone:
		return v, nil
	default:
		return "", types.Invalid("unknown bump kind %q", kind)
	}
	return fmt.Sprintf("%d.%d.%d", nums[0], nums[1], nums[2]), nil
}

// CompareVersions compares two versions like strings.Compare.
func CompareVersions(a, b string) int {
	return semver.Compare("v"+strings.TrimPrefix(a, "v"), "v"+strings.TrimPrefix(b, "v"))
}

// TagName formats the tag for a version.
func TagName(prefix, version string) string {
	return prefix + version
}

// VersionFromTag extracts the version from a tag created with prefix.
func VersionFromTag(prefix, tag string) (string, error) {
	if !strings.HasPrefix(tag, prefix) {
		return "", types.Invalid("tag %q does not start with prefix %q", tag, prefix)
	}
	return ParseVersion(strings.TrimPrefix(tag, prefix))
}
