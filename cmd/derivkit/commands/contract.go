package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/viper"

	"github.com/wyfcoding/derivkit/contract"
	"github.com/wyfcoding/derivkit/xerrors"
)

// loadContract 读取合约文件。viper 负责按扩展名解析 YAML/TOML/JSON，
// 再经 JSON 解码复用合约字段的 json 标签与枚举的文本解析。
func loadContract(path string) (contract.Contract, error) {
	if path == "" {
		return contract.Contract{}, xerrors.ErrMissingTerms.Derive("a contract file is required (--file)")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return contract.Contract{}, fmt.Errorf("read contract %s: %w", path, err)
	}

	raw, err := json.Marshal(v.AllSettings())
	if err != nil {
		return contract.Contract{}, fmt.Errorf("encode contract %s: %w", path, err)
	}
	var c contract.Contract
	if err := json.Unmarshal(raw, &c); err != nil {
		if xe, ok := xerrors.FromError(err); ok {
			return contract.Contract{}, xe
		}
		return contract.Contract{}, xerrors.ErrMissingTerms.Derive("decode contract %s: %v", path, err)
	}
	return c, nil
}
