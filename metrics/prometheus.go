// Package metrics 提供基于 Prometheus 的定价引擎指标采集。
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 封装了独立的 Prometheus 注册表及定价引擎的标准指标。
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal     *prometheus.CounterVec   // 定价请求总量 (维度: category, method, operation, status)
	RequestDuration   *prometheus.HistogramVec // 定价耗时分布
	PathsSimulated    prometheus.Counter       // 已模拟的蒙特卡洛路径数
	CacheLookups      *prometheus.CounterVec   // 结果缓存查询 (维度: result=hit|miss)
	NumericalWarnings *prometheus.CounterVec   // 数值告警 (维度: kind, param)
	BuildInfo         *prometheus.GaugeVec
}

// NewMetrics 初始化并返回一个新的指标采集器，自动注册 Go 运行时指标和进程指标。
func NewMetrics(serviceName string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{registry: reg}

	m.RequestsTotal = m.NewCounterVec(prometheus.CounterOpts{
		Name: "pricing_requests_total",
		Help: "Total number of pricing engine requests",
	}, []string{"category", "method", "operation", "status"})

	m.RequestDuration = m.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pricing_duration_seconds",
		Help:    "Pricing engine request latency in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
	}, []string{"category", "method", "operation"})

	m.PathsSimulated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mc_paths_simulated_total",
		Help: "Total number of Monte Carlo paths simulated",
	})
	reg.MustRegister(m.PathsSimulated)

	m.CacheLookups = m.NewCounterVec(prometheus.CounterOpts{
		Name: "pricing_cache_lookups_total",
		Help: "Pricing result cache lookups by outcome",
	}, []string{"result"})

	m.NumericalWarnings = m.NewCounterVec(prometheus.CounterOpts{
		Name: "numerical_warnings_total",
		Help: "Non-fatal numerical warnings raised while pricing",
	}, []string{"kind", "param"})

	slog.Info("pricing metrics registry initialized", "service", serviceName)
	return m
}

// ObserveRequest 记录一次定价调用的结果与耗时。
func (m *Metrics) ObserveRequest(category, method, operation string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.RequestsTotal.WithLabelValues(category, method, operation, status).Inc()
	m.RequestDuration.WithLabelValues(category, method, operation).Observe(elapsed.Seconds())
}

// AddPaths 累加模拟路径数。
func (m *Metrics) AddPaths(n int) {
	if m == nil {
		return
	}
	m.PathsSimulated.Add(float64(n))
}

// CacheResult 记录缓存命中或未命中。
func (m *Metrics) CacheResult(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.CacheLookups.WithLabelValues("miss").Inc()
}

// Warning 记录一次数值告警。
func (m *Metrics) Warning(kind, param string) {
	if m == nil {
		return
	}
	m.NumericalWarnings.WithLabelValues(kind, param).Inc()
}

// NewCounterVec 创建并注册一个新的计数器指标。
func (m *Metrics) NewCounterVec(opts prometheus.CounterOpts, labelNames []string) *prometheus.CounterVec {
	cv := prometheus.NewCounterVec(opts, labelNames)
	m.registry.MustRegister(cv)
	return cv
}

// NewGaugeVec 创建并注册一个新的仪表盘指标。
func (m *Metrics) NewGaugeVec(opts prometheus.GaugeOpts, labelNames []string) *prometheus.GaugeVec {
	gv := prometheus.NewGaugeVec(opts, labelNames)
	m.registry.MustRegister(gv)
	return gv
}

// NewHistogramVec 创建并注册一个新的直方图指标。
func (m *Metrics) NewHistogramVec(opts prometheus.HistogramOpts, labelNames []string) *prometheus.HistogramVec {
	hv := prometheus.NewHistogramVec(opts, labelNames)
	m.registry.MustRegister(hv)
	return hv
}

// Registry 返回内部注册表，供测试收集指标。
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler 返回用于暴露指标的 HTTP 处理器。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Expose 在指定端口启动一个独立的 HTTP 服务器用于暴露指标数据，返回关闭函数。
func (m *Metrics) Expose(port string) func() {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown metrics server", "error", err)
		}
	}
}
