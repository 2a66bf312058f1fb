package commands

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/derivkit/contract"
	"github.com/wyfcoding/derivkit/xerrors"
)

const engineTOML = `
[monte_carlo]
paths = 4000
steps = 40
greek_paths = 4000
greek_steps = 4
seed = 7
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func run(t *testing.T, args ...string) (map[string]any, error) {
	t.Helper()
	configFile, contractFile, methodName = "", "", ""
	watchConfig, serveMetrics = false, false

	out := new(bytes.Buffer)
	rootCmd.SetOut(out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(append(args, "--config", writeFile(t, "engine.toml", engineTOML)))
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	var v map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &v))
	return v, nil
}

const callYAML = `
category: vanilla
right: call
spot: 100
strike: 120
maturity: 1
rate: 0.05
dividend: 0.035
volatility: 0.2
`

func TestLoadContractFormats(t *testing.T) {
	yaml, err := loadContract(writeFile(t, "call.yaml", callYAML))
	require.NoError(t, err)
	assert.Equal(t, contract.Call, yaml.Right)
	assert.Equal(t, 120.0, yaml.Strike)

	js, err := loadContract(writeFile(t, "quanto.json", `{
		"category": "quanto", "right": "put", "spot": 100, "strike": 100, "maturity": 1,
		"rate": 0.05, "volatility": 0.2,
		"quanto": {"foreign_rate": 0.03, "fx_volatility": 0.1, "correlation": 0.3}
	}`))
	require.NoError(t, err)
	assert.Equal(t, contract.Quanto, js.Category)
	assert.Equal(t, 0.1, js.Quanto.FXVolatility)

	toml, err := loadContract(writeFile(t, "barrier.toml", `
category = "barrier"
right = "call"
spot = 100.0
strike = 100.0
maturity = 1.0
volatility = 0.2
[barrier]
level = 120.0
direction = "up"
knock = "out"
`))
	require.NoError(t, err)
	assert.Equal(t, contract.Out, toml.Barrier.Knock)
	assert.Equal(t, 120.0, toml.Barrier.Level)
}

func TestLoadContractRejectsUnknownEnum(t *testing.T) {
	_, err := loadContract(writeFile(t, "bad.yaml", "category: vanilla\nright: straddle\n"))
	require.Error(t, err)
	assert.True(t, xerrors.IsValidation(err))

	_, err = loadContract("")
	assert.True(t, xerrors.IsValidation(err))
}

func TestPriceCommand(t *testing.T) {
	out, err := run(t, "price", "-f", writeFile(t, "call.yaml", callYAML))
	require.NoError(t, err)
	assert.Equal(t, "2.358148", out["price"])
	assert.Equal(t, "analytic", out["method"])

	out, err = run(t, "price", "-f", writeFile(t, "call.yaml", callYAML), "--method", "mc")
	require.NoError(t, err)
	assert.Equal(t, "monte_carlo", out["method"])
	assert.Equal(t, 7.0, out["seed"])
}

func TestGreeksCommand(t *testing.T) {
	out, err := run(t, "greeks", "-f", writeFile(t, "call.yaml", callYAML))
	require.NoError(t, err)
	assert.InDelta(t, 0.222746, out["Delta"], 1e-6)

	out, err = run(t, "greeks", "-f", writeFile(t, "call.yaml", callYAML), "--method", "mc")
	require.NoError(t, err)
	assert.Contains(t, out, "std_err")
}

func TestPayoffAndIVCommands(t *testing.T) {
	out, err := run(t, "payoff", "-f", writeFile(t, "call.yaml", callYAML))
	require.NoError(t, err)
	assert.Equal(t, 0.0, out["payoff"])

	out, err = run(t, "iv", "-f", writeFile(t, "call.yaml", callYAML), "--price", "2.358148")
	require.NoError(t, err)
	assert.InDelta(t, 0.2, out["implied_volatility"], 1e-6)
}

func TestAutocallCommand(t *testing.T) {
	note := `
category: autocall
spot: 100
maturity: 3
rate: 0.02
volatility: 0.2
autocall:
  kind: phoenix
  coupon: 5
  capital_barrier: 65
  early_barrier: 120
  coupon_barrier: 90
  percent: true
  memory: true
  frequency: annual
`
	out, err := run(t, "autocall", "-f", writeFile(t, "note.yaml", note))
	require.NoError(t, err)
	assert.Len(t, out["observations"], 3)
	assert.Contains(t, out["summary"], "price")
	assert.Equal(t, 4000.0, out["paths"])
}

func TestProfileCommand(t *testing.T) {
	out, err := run(t, "profile", "-f", writeFile(t, "call.yaml", callYAML), "--param", "volatility", "--order", "value")
	require.NoError(t, err)
	assert.Len(t, out["points"], 50)
	assert.Equal(t, "volatility", out["param"])
}

func TestInvalidContractFails(t *testing.T) {
	_, err := run(t, "price", "-f", writeFile(t, "bad.yaml", "category: vanilla\nright: call\nspot: -1\nstrike: 100\nmaturity: 1\nvolatility: 0.2\n"))
	require.Error(t, err)
	assert.True(t, xerrors.IsValidation(err))
}
