package main

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/tidwall/jsonc"
)

// fileConfig 配置文件，允许注释和尾随逗号，命令行参数优先
type fileConfig struct {
	Verbose  *int           `json:"verbose"`
	Selftest selftestConfig `json:"selftest"`
	Decrypt  decryptConfig  `json:"decrypt"`
}

type selftestConfig struct {
	Key      string `json:"key"`
	Cert     string `json:"cert"`
	CA       string `json:"ca"`
	Group    string `json:"group"`
	Messages int    `json:"messages"`
	Record   string `json:"record"`
	Replay   string `json:"replay"`
	Pcap     string `json:"pcap"`
	KeyLog   string `json:"keylog"`
}

type decryptConfig struct {
	Pcap   string `json:"pcap"`
	KeyLog string `json:"keylog"`
	Port   uint16 `json:"port"`
}

func defaultConfig() *fileConfig {
	return &fileConfig{
		Selftest: selftestConfig{Group: "14", Messages: 1},
		Decrypt:  decryptConfig{Port: 443},
	}
}

func loadConfig(fs afero.Fs, path string) (*fileConfig, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	content, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	if err := json.Unmarshal(jsonc.ToJSON(content), cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	return cfg, nil
}
