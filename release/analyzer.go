package release

import (
	"regexp"
	"strings"
)

// conventionalHeader matches "type(scope)!: description".
var conventionalHeader = regexp.MustCompile(`^(\w+)(?:\(([^)]*)\))?(!)?:\s*(.+)$`)

// ConventionalCommit is a parsed conventional commit subject.
type ConventionalCommit struct {
	Type        string
	Scope       string
	Breaking    bool
	Description string
}

// ParseConventional parses a commit. ok is false for non-conventional subjects.
func ParseConventional(c Commit) (cc ConventionalCommit, ok bool) {
	m := conventionalHeader.FindStringSubmatch(strings.TrimSpace(c.Subject))
	if m == nil {
		return ConventionalCommit{}, false
	}
	return ConventionalCommit{
		Type:        strings.ToLower(m[1]),
		Scope:       m[2],
		Breaking:    m[3] == "!" || strings.Contains(c.Body, "BREAKING CHANGE"),
		Description: m[4],
	}, true
}

// ConventionalAnalyzer maps conventional commits to a bump kind: breaking
// changes bump major, feat bumps minor, fix and perf bump patch.
type ConventionalAnalyzer struct{}

// NewConventionalAnalyzer creates a conventional commit analyzer.
func NewConventionalAnalyzer() *ConventionalAnalyzer {
	return &ConventionalAnalyzer{}
}

// AnalyzeForVersion returns the largest bump any commit calls for.
func (a *ConventionalAnalyzer) AnalyzeForVersion(commits []Commit) BumpKind {
	kind := BumpNone
	for _, c := range commits {
		cc, ok := ParseConventional(c)
		if !ok {
			continue
		}
		switch {
		case cc.Breaking:
			return BumpMajor
		case cc.Type == "feat":
			kind = kind.Max(BumpMinor)
		case cc.Type == "fix" || cc.Type == "perf":
			kind = kind.Max(BumpPatch)
		}
	}
	return kind
}
