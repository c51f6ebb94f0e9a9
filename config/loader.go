// =============================================================================
// 📦 ReleaseFlow 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("releaseflow.yaml").
//	    WithEnvPrefix("RELEASEFLOW").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultEnvPrefix 是环境变量的默认前缀
const DefaultEnvPrefix = "RELEASEFLOW"

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 ReleaseFlow 的完整配置结构
type Config struct {
	// Release 发布流程配置
	Release ReleaseConfig `yaml:"release" env:"RELEASE"`

	// GitHub 托管发布配置
	GitHub GitHubConfig `yaml:"github" env:"GITHUB"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`

	// Metrics 指标配置
	Metrics MetricsConfig `yaml:"metrics" env:"METRICS"`
}

// ReleaseConfig 发布流程配置（与 release.Options 对应）
type ReleaseConfig struct {
	// 仓库根目录
	WorkDir string `yaml:"work_dir" env:"WORK_DIR"`
	// 允许发布的分支，为空表示任意分支
	Branch string `yaml:"branch" env:"BRANCH"`
	// 推送的远端
	Remote string `yaml:"remote" env:"REMOTE"`
	// 标签前缀
	TagPrefix string `yaml:"tag_prefix" env:"TAG_PREFIX"`
	// 版本文件路径，.json 结尾时按清单文件处理
	VersionFile string `yaml:"version_file" env:"VERSION_FILE"`
	// 清单文件中的版本字段
	VersionField string `yaml:"version_field" env:"VERSION_FIELD"`
	// 变更日志路径
	ChangelogFile string `yaml:"changelog_file" env:"CHANGELOG_FILE"`
	// 提交信息模板，%s 替换为新版本号
	CommitMessage string `yaml:"commit_message" env:"COMMIT_MESSAGE"`
	// 强制的升级类型: major, minor, patch；为空时由提交推导
	Bump string `yaml:"bump" env:"BUMP"`

	AllowDirty    bool `yaml:"allow_dirty" env:"ALLOW_DIRTY"`
	SkipGit       bool `yaml:"skip_git" env:"SKIP_GIT"`
	SkipChangelog bool `yaml:"skip_changelog" env:"SKIP_CHANGELOG"`
	SkipRelease   bool `yaml:"skip_release" env:"SKIP_RELEASE"`
	DryRun        bool `yaml:"dry_run" env:"DRY_RUN"`

	// 托管发布选项
	Draft      bool `yaml:"draft" env:"DRAFT"`
	Prerelease bool `yaml:"prerelease" env:"PRERELEASE"`

	// 整次运行的超时时间，0 表示不限制
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// GitHubConfig GitHub 托管发布配置
type GitHubConfig struct {
	// API 地址（GitHub Enterprise 可修改）
	APIURL string `yaml:"api_url" env:"API_URL"`
	// 仓库所有者，为空时不创建托管发布
	Owner string `yaml:"owner" env:"OWNER"`
	// 仓库名称
	Repo string `yaml:"repo" env:"REPO"`
	// 个人访问令牌
	Token string `yaml:"token" env:"TOKEN"`
	// GitHub App 认证
	AppID          string `yaml:"app_id" env:"APP_ID"`
	InstallationID int64  `yaml:"installation_id" env:"INSTALLATION_ID"`
	PrivateKeyPath string `yaml:"private_key_path" env:"PRIVATE_KEY_PATH"`
	// 额外信任的 CA 证书（PEM），用于自建 GitHub Enterprise
	CAFile string `yaml:"ca_file" env:"CA_FILE"`
	// 每秒请求数，0 表示不限速
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"REQUESTS_PER_SECOND"`
	// 单次请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 是否使用明文连接
	Insecure bool `yaml:"insecure" env:"INSECURE"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// MetricsConfig Prometheus 指标配置
type MetricsConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 指标命名空间
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
	// 运行结束后写入的 textfile 路径（node_exporter textfile collector）
	TextfilePath string `yaml:"textfile_path" env:"TEXTFILE_PATH"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	lookupEnv  func(string) (string, bool)
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  DefaultEnvPrefix,
		lookupEnv:  os.LookupEnv,
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithEnvLookup 替换环境变量读取函数（测试使用）
func (l *Loader) WithEnvLookup(lookup func(string) (string, bool)) *Loader {
	if lookup != nil {
		l.lookupEnv = lookup
	}
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	// 1. 从默认值开始
	cfg := DefaultConfig()

	// 2. 如果指定了配置文件，从文件加载
	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// 3. 从环境变量覆盖
	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// 4. 运行验证器
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		// 空文件保持默认值
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		// 获取 env tag
		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		// 如果是结构体，递归处理
		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		// 获取环境变量值
		envValue, ok := l.lookupEnv(envKey)
		if !ok || envValue == "" {
			continue
		}

		// 设置字段值
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 支持逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// Load 从文件和默认前缀的环境变量加载并校验配置
func Load(path string) (*Config, error) {
	return NewLoader().
		WithConfigPath(path).
		WithValidator(func(c *Config) error { return c.Validate() }).
		Load()
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	// 验证发布配置
	r := c.Release
	if r.VersionFile == "" {
		errs = append(errs, "release.version_file is required")
	}
	if r.ChangelogFile == "" && !r.SkipChangelog {
		errs = append(errs, "release.changelog_file is required unless skip_changelog is set")
	}
	if r.Remote == "" && !r.SkipGit {
		errs = append(errs, "release.remote is required unless skip_git is set")
	}
	if strings.Count(r.CommitMessage, "%s") != 1 {
		errs = append(errs, "release.commit_message must contain exactly one %s")
	}
	switch strings.ToLower(strings.TrimSpace(r.Bump)) {
	case "", "major", "minor", "patch":
	default:
		errs = append(errs, fmt.Sprintf("release.bump %q must be major, minor or patch", r.Bump))
	}
	if r.Timeout < 0 {
		errs = append(errs, "release.timeout must not be negative")
	}

	// 验证 GitHub 配置
	g := c.GitHub
	if g.Enabled() {
		if g.Repo == "" {
			errs = append(errs, "github.repo is required when github.owner is set")
		}
		hasApp := g.AppID != "" || g.InstallationID != 0 || g.PrivateKeyPath != ""
		switch {
		case g.Token == "" && !hasApp:
			errs = append(errs, "github.token or github app credentials are required")
		case g.Token == "" && (g.AppID == "" || g.InstallationID == 0 || g.PrivateKeyPath == ""):
			errs = append(errs, "github app auth needs app_id, installation_id and private_key_path")
		}
		if g.RequestsPerSecond < 0 {
			errs = append(errs, "github.requests_per_second must not be negative")
		}
	}

	// 验证日志配置
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("log.level %q is not supported", c.Log.Level))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Sprintf("log.format %q is not supported", c.Log.Format))
	}

	// 验证遥测配置
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		errs = append(errs, "telemetry.sample_rate must be between 0 and 1")
	}
	if c.Telemetry.Enabled && c.Telemetry.OTLPEndpoint == "" {
		errs = append(errs, "telemetry.otlp_endpoint is required when telemetry is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Enabled 报告是否配置了托管发布
func (g GitHubConfig) Enabled() bool {
	return g.Owner != ""
}
