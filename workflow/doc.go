// Copyright (c) ReleaseFlow Authors.
// Licensed under the MIT License.

/*
Package workflow 提供任务图执行引擎。

# 概述

workflow 包把一组任务（静态依赖 + 运行时跳过谓词 + 可选的运行时后继选择）
转换为一次确定性的顺序执行。不可变的 Context 贯穿每个任务；任务失败时，
已完成任务的撤销操作按逆序执行（补偿式回滚）。执行严格串行，同一时刻只有
一个 execute / shouldSkip / undo 在运行。

# 核心接口与类型

  - Context[C, S]     : 不可变快照：配置、累积数据、协作服务；Fork 产生新快照
  - Task[C, S]        : 任务：依赖、元数据、SkipFunc、ExecuteFunc、UndoFunc、NextFunc
  - TaskBuilder       : Fluent API 构建任务（缺少 id / 描述 / execute 时构建失败）
  - TaskGroup[C, S]   : 有序任务组，组级跳过谓词为全有或全无
  - GraphBuilder      : 引用完整性校验、三色 DFS 环检测（报告完整环路径）、拓扑排序
  - Plan[C, S]        : 已校验、已排序的任务集合；Definition 导出为 JSON / YAML
  - Executor[C, S]    : 顺序执行、跳过评估、动态分支、失败时触发回滚
  - RollbackManager   : 撤销栈；逆序执行，单个撤销失败不会中断其余撤销
  - Report            : 执行 / 跳过 / 失败任务、回滚结果、审计轨迹

# 主要能力

  - 排序规则：依赖优先；同层按 Priority 降序，再按声明顺序升序
  - 动态分支：SkipTo(reason, ids...) 或 NextFunc 替换剩余遍历；被越过的任务
    以分支原因记录为跳过
  - 错误分类：所有错误经 types.Normalize 归一后进入失败路径
  - 可观测性：zap 日志、MetricsRecorder（Prometheus 实现见 internal/metrics）、
    OpenTelemetry span
*/
package workflow
