package release

import (
	"fmt"
	"strings"
	"time"
)

const changelogTitle = "# Changelog"

type changelogSection struct {
	title string
	match func(cc ConventionalCommit) bool
}

var changelogSections = []changelogSection{
	{title: "Breaking Changes", match: func(cc ConventionalCommit) bool { return cc.Breaking }},
	{title: "Features", match: func(cc ConventionalCommit) bool { return !cc.Breaking && cc.Type == "feat" }},
	{title: "Bug Fixes", match: func(cc ConventionalCommit) bool { return !cc.Breaking && cc.Type == "fix" }},
	{title: "Performance", match: func(cc ConventionalCommit) bool { return !cc.Breaking && cc.Type == "perf" }},
}

// RenderChangelog renders the changelog section for one release. Commits of
// other conventional types are omitted; non-conventional subjects are listed
// under "Other Changes".
func RenderChangelog(version string, date time.Time, commits []Commit) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## [%s] - %s\n", version, date.Format("2006-01-02"))

	buckets := make([][]string, len(changelogSections))
	var other []string
	for _, c := range commits {
		cc, ok := ParseConventional(c)
		if !ok {
			other = append(other, changelogLine(c.Subject, "", c.SHA))
			continue
		}
		for i, s := range changelogSections {
			if s.match(cc) {
				buckets[i] = append(buckets[i], changelogLine(cc.Description, cc.Scope, c.SHA))
				break
			}
		}
	}

	for i, s := range changelogSections {
		writeChangelogGroup(&sb, s.title, buckets[i])
	}
	writeChangelogGroup(&sb, "Other Changes", other)
	return sb.String()
}

func changelogLine(desc, scope, sha string) string {
	line := "- "
	if scope != "" {
		line += "**" + scope + ":** "
	}
	line += desc
	if len(sha) >= 7 {
		line += " (" + sha[:7] + ")"
	}
	return line
}

func writeChangelogGroup(sb *strings.Builder, title string, lines []string) {
	if len(lines) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n### %s\n\n", title)
	for _, l := range lines {
		sb.WriteString(l)
		sb.WriteByte('\n')
	}
}

// PrependChangelog inserts section below the changelog title, creating the
// title when existing is empty.
func PrependChangelog(existing, section string) string {
	if strings.TrimSpace(existing) == "" {
		return changelogTitle + "\n\n" + section
	}
	if !strings.HasPrefix(existing, changelogTitle) {
		return section + "\n" + existing
	}

	rest := strings.TrimPrefix(existing, changelogTitle)
	// Keep any preamble paragraph that follows the title.
	idx := strings.Index(rest, "\n## ")
	if idx < 0 {
		return changelogTitle + strings.TrimRight(rest, "\n") + "\n\n" + section
	}
	return changelogTitle + rest[:idx+1] + section + "\n" + rest[idx+1:]
}
