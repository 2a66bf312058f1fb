// Package engine 是定价与敏感度计算的统一入口：先校验合约，再按类别路由到定价器或敏感度引擎，
// 并负责结果缓存、指标、链路追踪与日志。
package engine

import (
	"sync/atomic"

	"github.com/wyfcoding/derivkit/algorithm/sim"
	"github.com/wyfcoding/derivkit/cache"
	"github.com/wyfcoding/derivkit/config"
	"github.com/wyfcoding/derivkit/contract"
	"github.com/wyfcoding/derivkit/greeks"
	"github.com/wyfcoding/derivkit/logging"
	"github.com/wyfcoding/derivkit/metrics"
	"github.com/wyfcoding/derivkit/pricer"
)

// Engine 定价引擎。并发安全：每次调用只读取一份配置快照，调用之间不共享可变状态。
type Engine struct {
	settings atomic.Pointer[config.Config]
	cache    cache.Cache
	metrics  *metrics.Metrics
	logger   *logging.Logger
}

// Option 引擎构造选项。
type Option func(*Engine)

// WithMetrics 使用给定的指标采集器。
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithCache 使用给定的结果缓存，忽略配置中的缓存开关。
func WithCache(c cache.Cache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithLogger 使用给定的日志记录器。
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New 校验配置并创建引擎。配置开启缓存且未通过选项注入时创建 bigcache 实例。
func New(conf *config.Config, opts ...Option) (*Engine, error) {
	if conf == nil {
		conf = config.Default()
	}
	if err := config.Validate(conf); err != nil {
		return nil, err
	}

	e := &Engine{}
	e.settings.Store(conf)
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logging.NewLogger("derivkit", "engine", conf.Log.Level)
	}
	if e.cache == nil && conf.Cache.Enabled {
		c, err := cache.NewBigCache(conf.Cache.TTL, conf.Cache.MaxMB)
		if err != nil {
			return nil, err
		}
		e.cache = c
	}
	return e, nil
}

// Reload 校验并原子替换配置，正在进行的调用继续使用旧快照。可直接注册为 config.RegisterReloadHook 的回调。
func (e *Engine) Reload(conf *config.Config) {
	if err := config.Validate(conf); err != nil {
		e.logger.Error("engine config reload rejected", "error", err)
		return
	}
	e.settings.Store(conf)
	// 旧配置下的键不会再被命中
	if e.cache != nil {
		if err := e.cache.Reset(); err != nil {
			e.logger.Warn("cache reset after reload failed", "error", err)
		}
	}
	e.logger.Info("engine config reloaded", "mc_paths", conf.MonteCarlo.Paths, "lattice_steps", conf.Lattice.Steps)
}

// Settings 返回当前配置快照。
func (e *Engine) Settings() *config.Config { return e.settings.Load() }

// Metrics 返回指标采集器，可能为 nil。
func (e *Engine) Metrics() *metrics.Metrics { return e.metrics }

// Close 释放缓存资源。
func (e *Engine) Close() error {
	if e.cache == nil {
		return nil
	}
	return e.cache.Close()
}

// pricerFor 按配置快照构造定价器。
func pricerFor(conf *config.Config, m pricer.Method) pricer.Pricer {
	switch m {
	case pricer.Lattice:
		return pricer.NewLattice(conf.Lattice.Steps)
	case pricer.MonteCarlo:
		mc := conf.MonteCarlo
		return &pricer.MonteCarloPricer{
			Paths: mc.Paths, Steps: mc.Steps, BatchSize: mc.BatchSize, Seed: mc.Seed, LSMDegree: mc.LSMDegree,
		}
	default:
		return pricer.NewAnalytic()
	}
}

// greeksFor 按配置快照构造敏感度引擎。
// 二叉树与美式蒙特卡洛使用扰动重定价，后者在所有扰动间共用同一个种子。
func greeksFor(conf *config.Config, m pricer.Method, c contract.Contract) greeks.Engine {
	mc := conf.MonteCarlo
	switch m {
	case pricer.Lattice:
		return greeks.NewFiniteDifference(pricer.NewLattice(conf.Lattice.GreekSteps), conf.Bumps, conf.Greeks.Parallelism)
	case pricer.MonteCarlo:
		if c.Exercise == contract.American {
			p := &pricer.MonteCarloPricer{
				Paths: mc.GreekPaths, Steps: mc.GreekSteps, BatchSize: mc.BatchSize,
				Seed: commonSeed(mc.Seed), LSMDegree: mc.LSMDegree,
			}
			return greeks.NewFiniteDifference(p, conf.Bumps, conf.Greeks.Parallelism)
		}
		return &greeks.MonteCarlo{Paths: mc.GreekPaths, Steps: mc.GreekSteps, BatchSize: mc.BatchSize, Seed: mc.Seed}
	default:
		return greeks.Analytic{}
	}
}

// commonSeed 在未配置种子时抽取一个，供同一次调用内的多次重定价共用。
func commonSeed(seed uint64) uint64 {
	if seed == 0 {
		return sim.RandomSeed()
	}
	return seed
}

// deterministic 判断结果是否可缓存：解析与二叉树总是确定的，蒙特卡洛需固定种子。
func deterministic(conf *config.Config, m pricer.Method) bool {
	return m != pricer.MonteCarlo || conf.MonteCarlo.Seed != 0
}
