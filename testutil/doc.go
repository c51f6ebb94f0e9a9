// Copyright (c) ReleaseFlow Authors.
// Licensed under the MIT License.

/*
Package testutil 提供 ReleaseFlow 测试的共享工具和辅助函数。

# 概述

testutil 包为 release、config、cmd 等包的测试提供统一的辅助能力，
避免各包重复实现相似的测试基础设施。workflow 包的内部测试不依赖本包。

# 核心能力

  - 上下文辅助: TestContext / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 日志辅助: ObservedLogger / AssertLogged，基于 zaptest/observer
  - 报告断言: AssertSkipped / AssertRolledBack / AssertFailedAt
  - 数据工具: MustParseJSON

# 子包

  - testutil/mocks: 发布协作者的内存实现，包括 MockFileSystem、
    MockSourceControl、MockReleaseHost，均支持 Builder 模式与错误注入

# 使用示例

	rs := mocks.NewReleaseServices("1.2.3", "feat: add flag")
	logger, logs := testutil.ObservedLogger()
	res, err := exec.RunGraph(testutil.TestContext(t), graph, release.NewContext(opts, rs.Services(logger)))
	testutil.AssertLogged(t, logs, "release finished")
*/
package testutil
