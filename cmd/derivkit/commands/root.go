// Package commands 实现 derivkit 命令行：读取合约文件，调用定价引擎并以 JSON 输出结果。
package commands

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/wyfcoding/derivkit/config"
	"github.com/wyfcoding/derivkit/engine"
	"github.com/wyfcoding/derivkit/logging"
	"github.com/wyfcoding/derivkit/metrics"
	"github.com/wyfcoding/derivkit/pricer"
	"github.com/wyfcoding/derivkit/tracing"
)

// version 构建时通过 -ldflags 注入。
var version = "dev"

var (
	configFile   string
	contractFile string
	methodName   string
	watchConfig  bool
	serveMetrics bool

	eng      *engine.Engine
	teardown []func(context.Context) error
)

var rootCmd = &cobra.Command{
	Use:   "derivkit",
	Short: "Option pricing and Greeks engine",
	Long: `derivkit prices option contracts and computes their sensitivities.

Contracts are read from a YAML, TOML or JSON file. Engine settings come from
an optional TOML config file and DERIVKIT_* environment variables.

Examples:
  derivkit price -f call.yaml
  derivkit price -f barrier.yaml --method lattice
  derivkit greeks -f quanto.json
  derivkit autocall -f phoenix.toml --config engine.toml
  derivkit profile -f call.yaml --param volatility --order first
  derivkit iv -f call.yaml --price 10.45`,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: shutdown,
}

// Execute 运行根命令。
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "engine config file (TOML)")
	rootCmd.PersistentFlags().StringVarP(&contractFile, "file", "f", "", "contract file (YAML, TOML or JSON)")
	rootCmd.PersistentFlags().StringVar(&methodName, "method", "", "pricing method: analytic, lattice, mc (default: routed by category)")
	rootCmd.PersistentFlags().BoolVar(&watchConfig, "watch", false, "hot-reload the engine config file")
	rootCmd.PersistentFlags().BoolVar(&serveMetrics, "metrics", false, "expose Prometheus metrics while the command runs")
}

func setup(cmd *cobra.Command, _ []string) error {
	conf, err := config.Load(configFile)
	if err != nil {
		return err
	}
	logging.InitLogger(logging.Config{
		Service:    "derivkit",
		Module:     cmd.Name(),
		Level:      conf.Log.Level,
		File:       conf.Log.File,
		Console:    conf.Log.Console,
		MaxSize:    conf.Log.MaxSize,
		MaxBackups: conf.Log.MaxBackups,
		MaxAge:     conf.Log.MaxAge,
		Compress:   conf.Log.Compress,
		Output:     cmd.ErrOrStderr(),
	})

	shutdownTracer, err := tracing.InitTracer(cmd.Context(), conf.Tracing)
	if err != nil {
		return err
	}
	teardown = append(teardown, shutdownTracer)

	m := metrics.NewMetrics(conf.Tracing.ServiceName)
	m.RegisterBuildInfo("derivkit", version)
	if serveMetrics || conf.Metrics.Enabled {
		stop := m.Expose(conf.Metrics.Port)
		teardown = append(teardown, func(context.Context) error { stop(); return nil })
	}

	eng, err = engine.New(conf, engine.WithMetrics(m), engine.WithLogger(logging.Default()))
	if err != nil {
		return err
	}
	teardown = append(teardown, func(context.Context) error { return eng.Close() })

	if watchConfig && configFile != "" {
		config.RegisterReloadHook(eng.Reload)
		config.Watch()
	}
	return nil
}

func shutdown(cmd *cobra.Command, _ []string) error {
	var first error
	for i := len(teardown) - 1; i >= 0; i-- {
		if err := teardown[i](cmd.Context()); err != nil && first == nil {
			first = err
		}
	}
	teardown = nil
	return first
}

// method 解析 --method，未指定时返回 ok=false，由引擎按类别路由。
func method() (m pricer.Method, ok bool, err error) {
	if methodName == "" {
		return 0, false, nil
	}
	m, err = pricer.ParseMethod(methodName)
	return m, err == nil, err
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
