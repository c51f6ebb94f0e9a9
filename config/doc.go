// Copyright (c) ReleaseFlow Authors.
// Licensed under the MIT License.

// Package config 提供 ReleaseFlow 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → 环境变量（RELEASEFLOW_ 前缀）的顺序叠加，
// 加载后通过 Validate 校验，并可转换为 release 包使用的选项。
package config
