package engine

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/wyfcoding/derivkit/cache"
	"github.com/wyfcoding/derivkit/config"
	"github.com/wyfcoding/derivkit/contract"
	"github.com/wyfcoding/derivkit/pricer"
	"github.com/wyfcoding/derivkit/tracing"
)

// call 一次引擎调用的上下文。
type call struct {
	op     string
	method string
	c      contract.Contract
	conf   *config.Config
}

// observe 校验合约后执行 fn，并记录指标、链路与日志。校验失败同样计入指标。
func observe[T any](ctx context.Context, e *Engine, cl call, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, span := tracing.StartCall(ctx, cl.op, cl.c.Category.String(), cl.method)
	defer span.End()

	start := time.Now()
	out, err := func() (T, error) {
		if err := cl.c.Validate(); err != nil {
			var zero T
			return zero, err
		}
		return fn(ctx)
	}()
	elapsed := time.Since(start)
	e.metrics.ObserveRequest(cl.c.Category.String(), cl.method, cl.op, err, elapsed)

	e.logger.Call(ctx, cl.op, cl.c.Category.String(), cl.method, elapsed, err)
	if err != nil {
		tracing.SetError(ctx, err)
		var zero T
		return zero, err
	}
	return out, nil
}

// cacheKey 规范化的缓存键：操作、方法、合约与影响结果的配置项。
type cacheKey struct {
	Op         string                  `json:"op"`
	Method     string                  `json:"method"`
	Contract   contract.Contract       `json:"contract"`
	Lattice    config.LatticeConfig    `json:"lattice"`
	MonteCarlo config.MonteCarloConfig `json:"monte_carlo"`
	Bumps      config.BumpConfig       `json:"bumps"`
}

func (cl call) key() string {
	b, err := json.Marshal(cacheKey{
		Op: cl.op, Method: cl.method, Contract: cl.c,
		Lattice: cl.conf.Lattice, MonteCarlo: cl.conf.MonteCarlo, Bumps: cl.conf.Bumps,
	})
	if err != nil {
		return ""
	}
	return string(b)
}

// cached 对确定性结果做读穿缓存。缓存读写失败只记录日志，不影响计算结果。
func cached[T any](ctx context.Context, e *Engine, cl call, m pricer.Method, fn func(ctx context.Context) (T, error)) (T, error) {
	if e.cache == nil || !deterministic(cl.conf, m) {
		return fn(ctx)
	}
	key := cl.key()
	if key == "" {
		return fn(ctx)
	}

	var hit T
	err := e.cache.Get(ctx, key, &hit)
	switch {
	case err == nil:
		e.metrics.CacheResult(true)
		tracing.MarkCacheHit(ctx)
		return hit, nil
	case !errors.Is(err, cache.ErrMiss):
		e.logger.WarnContext(ctx, "cache read failed", "op", cl.op, "error", err)
	}
	e.metrics.CacheResult(false)

	out, err := fn(ctx)
	if err != nil {
		return out, err
	}
	if err := e.cache.Set(ctx, key, out); err != nil {
		e.logger.WarnContext(ctx, "cache write failed", "op", cl.op, "error", err)
	}
	return out, nil
}
