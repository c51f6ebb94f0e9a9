// Copyright (c) ReleaseFlow Authors.
// Licensed under the MIT License.

/*
Package release 在 workflow 引擎之上实现具体的发布流程。

# 概述

release 包定义发布任务所依赖的外部协作者接口（FileSystem、SourceControl、
CommitAnalyzer、ReleaseHost）及其真实实现，并把版本计算、变更日志生成、
git 提交/打标签/推送、托管平台发布组织成三个任务组：

  - prepare：preflight → determine-version → bump-version → changelog
  - git：commit → tag → push
  - publish：release-gate → create-release → done

# 核心类型

  - [Options]：发布运行的只读配置（分支、远端、标签前缀、跳过开关、dry-run）
  - [Services]：注入给每个任务的协作者集合
  - [VersionFile]：纯文本 VERSION 文件或 JSON 清单中的版本字段
  - [ConventionalAnalyzer]：按 Conventional Commits 推导版本增量
  - [GitCLI]、[GitHubHost]、[NoopHost]、[OSFileSystem]：协作者的默认实现

# 回滚

所有改变外部状态的任务都带有 undo：恢复版本文件、恢复变更日志、
重置提交、删除本地与远端标签、删除托管发布。undo 只依赖上下文中
已发布的数据，不持有任务局部状态。
*/
package release
