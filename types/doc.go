// Copyright (c) ReleaseFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 ReleaseFlow 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 workflow、release、config
等上层模块提供统一的错误体系与上下文键。

# 核心接口与类型

  - Error / ErrorCode: 结构化错误体系，分类为 NOT_FOUND、INVALID、CONFLICT、
    FAILED、UNEXPECTED、INVALID_OPERATION
  - Normalize: 将任意错误归一到上述分类（取消 → FAILED，其余 → UNEXPECTED）

# 主要能力

  - Context 传播：WithRunID / WithTaskID / WithDryRun
  - 错误工具链：GetErrorCode / IsCode / IsRetryable
*/
package types
