// Copyright (c) ReleaseFlow Authors.
// Licensed under the MIT License.

/*
包 metrics 提供基于 Prometheus 的发布流程指标采集能力，覆盖
任务、回滚、整次运行与托管服务请求四个维度。

# 概述

Collector 实现 workflow.MetricsRecorder，通过 workflow.WithMetrics
注入执行器。指标注册到 Collector 自有的 Registry（promauto.With），
按 namespace 隔离，同一进程可创建多个互不冲突的 Collector。

# 主要能力

  - 任务指标：按 task_id/status 计数与耗时分布。
  - 回滚指标：按 task_id 记录撤销成功与失败。
  - 运行指标：运行次数、耗时、最近一次结果与完成时间。
  - 托管服务指标：API 请求按 method 与状态码分组（2xx/3xx/4xx/5xx）。
  - 导出：WriteTextfile 以 node_exporter textfile 格式写出，适合
    一次性运行的 CLI 场景。
*/
package metrics
