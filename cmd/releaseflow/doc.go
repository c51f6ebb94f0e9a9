// Copyright (c) ReleaseFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 ReleaseFlow 命令行程序入口。

# 概述

cmd/releaseflow 加载配置（默认值、YAML 文件、RELEASEFLOW_ 环境变量），
组装文件系统、git、提交分析器与发布托管服务，然后通过 workflow.Executor
运行标准发布图，并以 text、json 或 yaml 输出执行报告。

# 子命令

  - release: 执行发布，支持 --dry-run、--skip-git、--skip-changelog、
    --skip-release 与 --report
  - plan: 输出按执行顺序排列的任务定义
  - version / help

# 退出码

进程退出码取自 Report.ExitCode()：成功为 0，失败并完成回滚为 1，
回滚本身失败为 2。收到 SIGINT/SIGTERM 或超过 release.timeout 时，
运行被取消并按失败处理，已执行的任务会被回滚。

# 可观测性

  - 日志: zap，按 log 配置选择 json 或 console 编码
  - 追踪: telemetry.Init 初始化 OTLP 导出，执行器 span 使用其 Tracer
  - 指标: metrics.enabled 时记录任务、回滚与 GitHub 请求指标，
    可选写入 node_exporter textfile
*/
package main
