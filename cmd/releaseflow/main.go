// =============================================================================
// ReleaseFlow 主入口
// =============================================================================
// 发布自动化命令行入口，驱动 release 工作流并输出执行报告
//
// 使用方法:
//
//	releaseflow release                       # 执行发布
//	releaseflow release --config release.yaml # 指定配置文件
//	releaseflow release --dry-run             # 仅演练，不产生副作用
//	releaseflow plan --format yaml            # 输出执行计划
//	releaseflow version                       # 显示版本信息
// =============================================================================

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/BaSui01/releaseflow/config"
	"github.com/BaSui01/releaseflow/internal/metrics"
	"github.com/BaSui01/releaseflow/internal/telemetry"
	"github.com/BaSui01/releaseflow/release"
	"github.com/BaSui01/releaseflow/workflow"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const (
	exitOK    = 0
	exitError = 1
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return exitError
	}

	switch args[0] {
	case "release":
		return runRelease(args[1:], stdout, stderr)
	case "plan":
		return runPlan(args[1:], stdout, stderr)
	case "version":
		printVersion(stdout)
		return exitOK
	case "help", "-h", "--help":
		printUsage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		printUsage(stderr)
		return exitError
	}
}

// =============================================================================
// 🚀 release 命令
// =============================================================================

type releaseFlags struct {
	configPath    string
	dryRun        bool
	skipGit       bool
	skipChangelog bool
	skipRelease   bool
	report        string
}

func runRelease(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("release", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var f releaseFlags
	fs.StringVar(&f.configPath, "config", "", "Path to config file")
	fs.BoolVar(&f.dryRun, "dry-run", false, "Log every step without side effects")
	fs.BoolVar(&f.skipGit, "skip-git", false, "Skip commit, tag and push")
	fs.BoolVar(&f.skipChangelog, "skip-changelog", false, "Do not update the changelog")
	fs.BoolVar(&f.skipRelease, "skip-release", false, "Do not create a hosted release")
	fs.StringVar(&f.report, "report", "text", "Report format: text, json or yaml")
	if err := fs.Parse(args); err != nil {
		return exitError
	}
	if !validFormat(f.report, "text", "json", "yaml") {
		fmt.Fprintf(stderr, "Invalid report format: %s\n", f.report)
		return exitError
	}

	cfg, err := loadConfig(f.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return exitError
	}
	// 命令行开关只会打开，不会关闭配置中的开关
	cfg.Release.DryRun = cfg.Release.DryRun || f.dryRun
	cfg.Release.SkipGit = cfg.Release.SkipGit || f.skipGit
	cfg.Release.SkipChangelog = cfg.Release.SkipChangelog || f.skipChangelog
	cfg.Release.SkipRelease = cfg.Release.SkipRelease || f.skipRelease

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("Starting ReleaseFlow",
		zap.String("version", Version),
		zap.String("git_commit", GitCommit),
		zap.Bool("dry_run", cfg.Release.DryRun),
	)

	opts, err := cfg.Release.ReleaseOptions()
	if err != nil {
		logger.Error("invalid release options", zap.Error(err))
		return exitError
	}

	otelProviders, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}
	defer shutdownTelemetry(otelProviders, logger)

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector(cfg.Metrics.Namespace, prometheus.NewRegistry(), logger)
	}

	svc, err := buildServices(cfg, logger, collector)
	if err != nil {
		logger.Error("failed to set up release services", zap.Error(err))
		return exitError
	}

	graph, err := release.NewGraph(logger)
	if err != nil {
		logger.Error("failed to build release graph", zap.Error(err))
		return exitError
	}

	execOpts := []workflow.ExecutorOption{
		workflow.WithExecutorLogger(logger),
		workflow.WithTracer(otelProviders.Tracer()),
	}
	if collector != nil {
		execOpts = append(execOpts, workflow.WithMetrics(collector))
	}
	exec := workflow.NewExecutor[release.Options, *release.Services](execOpts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.Release.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Release.Timeout)
		defer cancel()
	}

	res, runErr := exec.RunGraph(ctx, graph, release.NewContext(opts, svc))
	if collector != nil && cfg.Metrics.TextfilePath != "" {
		if err := collector.WriteTextfile(cfg.Metrics.TextfilePath); err != nil {
			logger.Warn("failed to write metrics textfile", zap.Error(err))
		}
	}
	if res == nil || res.Report == nil {
		logger.Error("release did not run", zap.Error(runErr))
		return exitError
	}
	if runErr != nil {
		logger.Error("release failed", zap.Error(runErr))
	}

	if err := writeReport(stdout, res.Report, f.report); err != nil {
		logger.Error("failed to render report", zap.Error(err))
		return exitError
	}
	return res.Report.ExitCode()
}

// buildServices 组装真实的发布协作者，测试中可替换
var buildServices = func(cfg *config.Config, logger *zap.Logger, collector *metrics.Collector) (*release.Services, error) {
	var host release.ReleaseHost
	if cfg.GitHub.Enabled() && !cfg.Release.SkipRelease {
		ghOpts, err := cfg.GitHub.GitHubOptions()
		if err != nil {
			return nil, err
		}
		gh, err := release.NewGitHubHost(ghOpts, logger)
		if err != nil {
			return nil, err
		}
		if collector != nil {
			gh.WithRequestObserver(collector.RecordHostRequest)
		}
		host = gh
	} else {
		host = release.NewNoopHost(logger)
	}

	return &release.Services{
		FS:       release.NewOSFileSystem(cfg.Release.WorkDir),
		Git:      release.NewGitCLI(cfg.Release.WorkDir, logger),
		Analyzer: release.NewConventionalAnalyzer(),
		Host:     host,
		Logger:   logger,
		Now:      time.Now,
	}, nil
}

func writeReport(w io.Writer, r *workflow.Report, format string) error {
	var (
		out string
		err error
	)
	switch format {
	case "json":
		out, err = r.ToJSON()
	case "yaml":
		out, err = r.ToYAML()
	default:
		out = r.Summary()
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, out)
	return err
}

func shutdownTelemetry(p *telemetry.Providers, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Shutdown(ctx); err != nil {
		logger.Warn("telemetry shutdown failed", zap.Error(err))
	}
}

// =============================================================================
// 🗺️ plan 命令
// =============================================================================

func runPlan(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("plan", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to config file")
	format := fs.String("format", "yaml", "Output format: json or yaml")
	if err := fs.Parse(args); err != nil {
		return exitError
	}
	if !validFormat(*format, "json", "yaml") {
		fmt.Fprintf(stderr, "Invalid plan format: %s\n", *format)
		return exitError
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return exitError
	}
	logger := initLogger(cfg.Log)
	defer logger.Sync()

	plan, err := release.NewPlan(logger)
	if err != nil {
		logger.Error("failed to build release plan", zap.Error(err))
		return exitError
	}

	def := plan.Definition("release")
	var out string
	if *format == "json" {
		out, err = def.ToJSON()
	} else {
		out, err = def.ToYAML()
	}
	if err != nil {
		logger.Error("failed to render plan", zap.Error(err))
		return exitError
	}
	fmt.Fprintln(stdout, out)
	return exitOK
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	if path != "" {
		loader = loader.WithConfigPath(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validFormat(format string, allowed ...string) bool {
	for _, a := range allowed {
		if format == a {
			return true
		}
	}
	return false
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "ReleaseFlow %s\n", Version)
	fmt.Fprintf(w, "  Build Time: %s\n", BuildTime)
	fmt.Fprintf(w, "  Git Commit: %s\n", GitCommit)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `ReleaseFlow - Release Automation

Usage:
  releaseflow <command> [options]

Commands:
  release   Bump the version, update the changelog, tag, push and publish
  plan      Print the release plan without running it
  version   Show version information
  help      Show this help message

Options for 'release':
  --config <path>     Path to configuration file (YAML)
  --dry-run           Log every step without side effects
  --skip-git          Skip commit, tag and push
  --skip-changelog    Do not update the changelog
  --skip-release      Do not create a hosted release
  --report <format>   Report format: text, json or yaml (default text)

Options for 'plan':
  --config <path>     Path to configuration file (YAML)
  --format <format>   Output format: json or yaml (default yaml)

Exit codes:
  0  release succeeded
  1  release failed and was rolled back
  2  release failed and rollback was incomplete

Examples:
  releaseflow release --dry-run
  releaseflow release --config .releaseflow.yaml --report json
  releaseflow plan --format json`)
}
