package release

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func commits(subjects ...string) []Commit {
	out := make([]Commit, len(subjects))
	for i, s := range subjects {
		out[i] = Commit{SHA: "abcdef1234567890", Subject: s}
	}
	return out
}

func TestParseConventional(t *testing.T) {
	t.Parallel()

	cc, ok := ParseConventional(Commit{Subject: "feat(cli)!: drop the legacy flag"})
	assert.True(t, ok)
	assert.Equal(t, ConventionalCommit{Type: "feat", Scope: "cli", Breaking: true, Description: "drop the legacy flag"}, cc)

	cc, ok = ParseConventional(Commit{Subject: "Fix: handle empty tags", Body: "BREAKING CHANGE: tags are required"})
	assert.True(t, ok)
	assert.Equal(t, "fix", cc.Type)
	assert.True(t, cc.Breaking)

	_, ok = ParseConventional(Commit{Subject: "Merge branch 'main'"})
	assert.False(t, ok)
}

func TestConventionalAnalyzer(t *testing.T) {
	t.Parallel()

	a := NewConventionalAnalyzer()

	tests := []struct {
		name     string
		subjects []string
		want     BumpKind
	}{
		{name: "empty", want: BumpNone},
		{name: "chores only", subjects: []string{"chore: tidy", "docs: readme"}, want: BumpNone},
		{name: "fix", subjects: []string{"chore: tidy", "fix: off by one"}, want: BumpPatch},
		{name: "perf", subjects: []string{"perf: cache lookups"}, want: BumpPatch},
		{name: "feat beats fix", subjects: []string{"fix: a", "feat: b", "fix: c"}, want: BumpMinor},
		{name: "breaking wins", subjects: []string{"feat: b", "refactor!: rename api"}, want: BumpMajor},
		{name: "not conventional", subjects: []string{"update stuff"}, want: BumpNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.AnalyzeForVersion(commits(tt.subjects...)))
		})
	}
}

func TestRenderChangelog(t *testing.T) {
	t.Parallel()

	date := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	got := RenderChangelog("1.3.0", date, commits(
		"feat(cli): add --report flag",
		"fix: handle missing tags",
		"chore: bump deps",
		"update readme",
	))

	want := "## [1.3.0] - 2026-10-19\n" +
		"\n### Features\n\n- **cli:** add --report flag (abcdef1)\n" +
		"\n### Bug Fixes\n\n- handle missing tags (abcdef1)\n" +
		"\n### Other Changes\n\n- update readme (abcdef1)\n"
	assert.Equal(t, want, got)
}

func TestPrependChangelog(t *testing.T) {
	t.Parallel()

	section := "## [1.1.0] - 2026-10-19\n\n### Features\n\n- x\n"

	assert.Equal(t, "# Changelog\n\n"+section, PrependChangelog("", section))

	existing := "# Changelog\n\nAll notable changes.\n\n## [1.0.0] - 2026-01-01\n\n- first\n"
	got := PrependChangelog(existing, section)
	assert.Equal(t, "# Changelog\n\nAll notable changes.\n\n"+section+"\n## [1.0.0] - 2026-01-01\n\n- first\n", got)

	assert.Equal(t, section+"\nnotes\n", PrependChangelog("notes\n", section))
	assert.Equal(t, "# Changelog\n\n"+section, PrependChangelog("# Changelog\n", section))
}
