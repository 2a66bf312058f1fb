// Package config 提供定价引擎配置的加载、校验与热更新能力.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/wyfcoding/derivkit/logging"
	"github.com/wyfcoding/derivkit/xerrors"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config 全局顶级配置结构.
type Config struct {
	Version    string           `mapstructure:"version"     toml:"version"`
	Log        LogConfig        `mapstructure:"log"         toml:"log"`
	Metrics    MetricsConfig    `mapstructure:"metrics"     toml:"metrics"`
	Tracing    TracingConfig    `mapstructure:"tracing"     toml:"tracing"`
	Cache      CacheConfig      `mapstructure:"cache"       toml:"cache"`
	Lattice    LatticeConfig    `mapstructure:"lattice"     toml:"lattice"`
	MonteCarlo MonteCarloConfig `mapstructure:"monte_carlo" toml:"monte_carlo"`
	Bumps      BumpConfig       `mapstructure:"bumps"       toml:"bumps"`
	Greeks     GreeksConfig     `mapstructure:"greeks"      toml:"greeks"`
	Profile    ProfileConfig    `mapstructure:"profile"     toml:"profile"`
}

// LogConfig 定义日志输出、级别与切割策略.
type LogConfig struct {
	Level      string `mapstructure:"level"       toml:"level"       validate:"omitempty,oneof=debug info warn error"`
	File       string `mapstructure:"file"        toml:"file"`
	Console    bool   `mapstructure:"console"     toml:"console"`
	MaxSize    int    `mapstructure:"max_size"    toml:"max_size"    validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" toml:"max_backups" validate:"gte=0"`
	MaxAge     int    `mapstructure:"max_age"     toml:"max_age"     validate:"gte=0"`
	Compress   bool   `mapstructure:"compress"    toml:"compress"`
}

// MetricsConfig 指标暴露配置.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" toml:"enabled"`
	Port    string `mapstructure:"port"    toml:"port"    validate:"required_if=Enabled true"`
}

// TracingConfig 链路追踪配置，Endpoint 为空时不安装导出器.
type TracingConfig struct {
	ServiceName    string  `mapstructure:"service_name"    toml:"service_name"`
	ServiceVersion string  `mapstructure:"service_version" toml:"service_version"`
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint"   toml:"otlp_endpoint"`
	SampleRatio    float64 `mapstructure:"sample_ratio"    toml:"sample_ratio"    validate:"gte=0,lte=1"`
}

// CacheConfig 定价结果缓存配置.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled" toml:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"     toml:"ttl"     validate:"required_if=Enabled true"`
	MaxMB   int           `mapstructure:"max_mb"  toml:"max_mb"  validate:"gte=0"`
}

// LatticeConfig 二叉树步数.
type LatticeConfig struct {
	Steps      int `mapstructure:"steps"       toml:"steps"       validate:"gt=0"`
	GreekSteps int `mapstructure:"greek_steps" toml:"greek_steps" validate:"gt=0"`
}

// MonteCarloConfig 蒙特卡洛参数. Seed 为 0 表示每次调用使用独立随机种子.
type MonteCarloConfig struct {
	Paths      int    `mapstructure:"paths"       toml:"paths"       validate:"gt=0"`
	Steps      int    `mapstructure:"steps"       toml:"steps"       validate:"gt=0"`
	GreekPaths int    `mapstructure:"greek_paths" toml:"greek_paths" validate:"gt=0"`
	GreekSteps int    `mapstructure:"greek_steps" toml:"greek_steps" validate:"gt=0"`
	BatchSize  int    `mapstructure:"batch_size"  toml:"batch_size"  validate:"gt=0"`
	Seed       uint64 `mapstructure:"seed"        toml:"seed"`
	LSMDegree  int    `mapstructure:"lsm_degree"  toml:"lsm_degree"  validate:"gte=1,lte=8"`
}

// BumpConfig 有限差分扰动幅度：相对比例与绝对下限.
type BumpConfig struct {
	SpotRel   float64 `mapstructure:"spot_rel"   toml:"spot_rel"   validate:"gt=0,lt=1"`
	SpotFloor float64 `mapstructure:"spot_floor" toml:"spot_floor" validate:"gt=0"`
	VolRel    float64 `mapstructure:"vol_rel"    toml:"vol_rel"    validate:"gt=0,lt=1"`
	VolFloor  float64 `mapstructure:"vol_floor"  toml:"vol_floor"  validate:"gt=0"`
	RateRel   float64 `mapstructure:"rate_rel"   toml:"rate_rel"   validate:"gt=0,lt=1"`
	RateFloor float64 `mapstructure:"rate_floor" toml:"rate_floor" validate:"gt=0"`
}

// GreeksConfig Parallelism 大于 1 时并发执行互相独立的扰动重定价.
type GreeksConfig struct {
	Parallelism int `mapstructure:"parallelism" toml:"parallelism" validate:"gte=1"`
}

// ProfileConfig 敏感度曲线扫描与拟合参数.
type ProfileConfig struct {
	Points        int     `mapstructure:"points"         toml:"points"         validate:"gte=8"`
	SpotRange     float64 `mapstructure:"spot_range"     toml:"spot_range"     validate:"gt=0,lt=1"`
	MaturityRange float64 `mapstructure:"maturity_range" toml:"maturity_range" validate:"gt=0,lt=1"`
	Degree        int     `mapstructure:"degree"         toml:"degree"         validate:"gte=2,lte=10"`
	FlatTolerance float64 `mapstructure:"flat_tolerance" toml:"flat_tolerance" validate:"gt=0"`
}

// Default 返回内置默认配置.
func Default() *Config {
	return &Config{
		Version: "dev",
		Log:     LogConfig{Level: "info", MaxSize: 100, MaxBackups: 3, MaxAge: 7},
		Metrics: MetricsConfig{Port: "9090"},
		Tracing: TracingConfig{ServiceName: "derivkit", SampleRatio: 1},
		Cache:   CacheConfig{TTL: 10 * time.Minute, MaxMB: 64},
		Lattice: LatticeConfig{Steps: 200, GreekSteps: 100},
		MonteCarlo: MonteCarloConfig{
			Paths:      20000,
			Steps:      100,
			GreekPaths: 20000,
			GreekSteps: 50,
			BatchSize:  5000,
			LSMDegree:  3,
		},
		Bumps: BumpConfig{
			SpotRel: 0.01, SpotFloor: 1e-4,
			VolRel: 0.01, VolFloor: 1e-4,
			RateRel: 0.01, RateFloor: 1e-4,
		},
		Greeks:  GreeksConfig{Parallelism: 1},
		Profile: ProfileConfig{Points: 50, SpotRange: 0.5, MaturityRange: 0.5, Degree: 6, FlatTolerance: 1e-5},
	}
}

var (
	vInstance = viper.New()
	validate  = validator.New()

	hooksMu  sync.Mutex
	onReload []func(*Config)
)

// RegisterReloadHook 注册配置热更新回调。
func RegisterReloadHook(hook func(*Config)) {
	if hook == nil {
		return
	}
	hooksMu.Lock()
	defer hooksMu.Unlock()
	onReload = append(onReload, hook)
}

// Validate 校验配置的结构约束.
func Validate(conf *Config) error {
	if err := validate.Struct(conf); err != nil {
		return xerrors.ErrInvalidConfig.Derive("%v", err)
	}
	return nil
}

// Load 读取 TOML 配置文件并叠加 DERIVKIT_ 前缀的环境变量. path 为空时只使用默认值与环境变量.
func Load(path string) (*Config, error) {
	setDefaults(vInstance, Default())

	vInstance.SetEnvPrefix("DERIVKIT")
	vInstance.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vInstance.AutomaticEnv()

	if path != "" {
		vInstance.SetConfigFile(path)
		vInstance.SetConfigType("toml")
		if err := vInstance.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config error: %w", err)
		}
	}

	conf := &Config{}
	if err := vInstance.Unmarshal(conf); err != nil {
		return nil, fmt.Errorf("unmarshal config error: %w", err)
	}
	if err := Validate(conf); err != nil {
		return nil, err
	}

	return conf, nil
}

// Watch 监听配置文件变更，重新解析并校验通过后通知所有回调. 必须在 Load 之后调用.
func Watch() {
	vInstance.OnConfigChange(func(event fsnotify.Event) {
		slog.Info("detecting config change", "file", event.Name, "op", event.Op.String())
		const debounceTimeout = 500 * time.Millisecond
		time.Sleep(debounceTimeout)

		conf := &Config{}
		if err := vInstance.Unmarshal(conf); err != nil {
			slog.Error("reload config unmarshal failed", "error", err)
			return
		}
		if err := Validate(conf); err != nil {
			slog.Error("reload config validation failed", "error", err)
			return
		}

		logging.SetLevel(conf.Log.Level)
		slog.Info("config hot-reloaded and validated successfully")

		hooksMu.Lock()
		hooks := append([]func(*Config){}, onReload...)
		hooksMu.Unlock()
		for _, hook := range hooks {
			hook(conf)
		}
	})
	vInstance.WatchConfig()
}

// setDefaults 以点分键注册默认值，使环境变量可以覆盖未出现在文件中的字段.
func setDefaults(v *viper.Viper, def *Config) {
	keys := map[string]any{
		"version":                 def.Version,
		"log.level":               def.Log.Level,
		"log.max_size":            def.Log.MaxSize,
		"log.max_backups":         def.Log.MaxBackups,
		"log.max_age":             def.Log.MaxAge,
		"metrics.port":            def.Metrics.Port,
		"tracing.service_name":    def.Tracing.ServiceName,
		"cache.ttl":               def.Cache.TTL,
		"cache.max_mb":            def.Cache.MaxMB,
		"lattice.steps":           def.Lattice.Steps,
		"lattice.greek_steps":     def.Lattice.GreekSteps,
		"monte_carlo.paths":       def.MonteCarlo.Paths,
		"monte_carlo.steps":       def.MonteCarlo.Steps,
		"monte_carlo.greek_paths": def.MonteCarlo.GreekPaths,
		"monte_carlo.greek_steps": def.MonteCarlo.GreekSteps,
		"monte_carlo.batch_size":  def.MonteCarlo.BatchSize,
		"monte_carlo.seed":        def.MonteCarlo.Seed,
		"monte_carlo.lsm_degree":  def.MonteCarlo.LSMDegree,
		"bumps.spot_rel":          def.Bumps.SpotRel,
		"bumps.spot_floor":        def.Bumps.SpotFloor,
		"bumps.vol_rel":           def.Bumps.VolRel,
		"bumps.vol_floor":         def.Bumps.VolFloor,
		"bumps.rate_rel":          def.Bumps.RateRel,
		"bumps.rate_floor":        def.Bumps.RateFloor,
		"greeks.parallelism":      def.Greeks.Parallelism,
		"profile.points":          def.Profile.Points,
		"profile.spot_range":      def.Profile.SpotRange,
		"profile.maturity_range":  def.Profile.MaturityRange,
		"profile.degree":          def.Profile.Degree,
		"profile.flat_tolerance":  def.Profile.FlatTolerance,
	}
	for k, val := range keys {
		v.SetDefault(k, val)
	}
}

// Print 打印当前生效配置.
func Print(conf *Config) {
	data, err := json.MarshalIndent(conf, "  ", "  ")
	if err != nil {
		slog.Error("failed to marshal config for printing", "error", err)
		return
	}
	slog.Info("Current effective configuration", "config", string(data))
}

// GetViper 返回底层的 Viper 实例.
func GetViper() *viper.Viper {
	return vInstance
}
