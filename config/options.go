package config

import (
	"fmt"
	"os"

	"github.com/BaSui01/releaseflow/release"
)

// ReleaseOptions 转换为 release.Options
func (r ReleaseConfig) ReleaseOptions() (release.Options, error) {
	bump, err := release.ParseBumpKind(r.Bump)
	if err != nil {
		return release.Options{}, err
	}
	return release.Options{
		Branch:        r.Branch,
		Remote:        r.Remote,
		TagPrefix:     r.TagPrefix,
		VersionFile:   r.VersionFile,
		VersionField:  r.VersionField,
		ChangelogFile: r.ChangelogFile,
		CommitMessage: r.CommitMessage,
		Bump:          bump,
		AllowDirty:    r.AllowDirty,
		SkipGit:       r.SkipGit,
		SkipChangelog: r.SkipChangelog,
		SkipRelease:   r.SkipRelease,
		DryRun:        r.DryRun,
		Draft:         r.Draft,
		Prerelease:    r.Prerelease,
	}, nil
}

// GitHubOptions 转换为 release.GitHubOptions，按需读取 App 私钥
func (g GitHubConfig) GitHubOptions() (release.GitHubOptions, error) {
	opts := release.GitHubOptions{
		APIURL:            g.APIURL,
		Owner:             g.Owner,
		Repo:              g.Repo,
		Token:             g.Token,
		AppID:             g.AppID,
		InstallationID:    g.InstallationID,
		RequestsPerSecond: g.RequestsPerSecond,
		Timeout:           g.Timeout,
	}
	if g.Token == "" && g.PrivateKeyPath != "" {
		key, err := os.ReadFile(g.PrivateKeyPath)
		if err != nil {
			return release.GitHubOptions{}, fmt.Errorf("read github app private key: %w", err)
		}
		opts.PrivateKeyPEM = key
	}
	if g.CAFile != "" {
		ca, err := os.ReadFile(g.CAFile)
		if err != nil {
			return release.GitHubOptions{}, fmt.Errorf("read github ca file: %w", err)
		}
		opts.CACertPEM = ca
	}
	return opts, nil
}
