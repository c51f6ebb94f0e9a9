// Copyright (c) ReleaseFlow Authors.
// Licensed under the MIT License.

// Package tlsutil 为访问发布托管服务的 HTTP 客户端提供安全加固的 TLS 设置，
// 并支持追加自定义 CA 证书。
package tlsutil
