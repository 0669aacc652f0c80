package main

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yly97/tlsfront/pkg/random"
)

func TestLoadConfig(t *testing.T) {
	fs := afero.NewMemMapFs()
	content := `{
	// 日志级别
	"verbose": 1,
	"selftest": {
		"group": "toy",
		"messages": 3, // 三次往返
	},
	"decrypt": {"port": 8443},
}`
	require.NoError(t, afero.WriteFile(fs, "/tlsfront.jsonc", []byte(content), 0o600))

	cfg, err := loadConfig(fs, "/tlsfront.jsonc")
	require.NoError(t, err)
	require.NotNil(t, cfg.Verbose)
	assert.Equal(t, 1, *cfg.Verbose)
	assert.Equal(t, "toy", cfg.Selftest.Group)
	assert.Equal(t, 3, cfg.Selftest.Messages)
	assert.Equal(t, uint16(8443), cfg.Decrypt.Port)

	cfg, err = loadConfig(fs, "")
	require.NoError(t, err)
	assert.Nil(t, cfg.Verbose)
	assert.Equal(t, "14", cfg.Selftest.Group)
	assert.Equal(t, uint16(443), cfg.Decrypt.Port)

	_, err = loadConfig(fs, "/missing.jsonc")
	assert.Error(t, err)
	require.NoError(t, afero.WriteFile(fs, "/bad.jsonc", []byte(`{"verbose": "x"}`), 0o600))
	_, err = loadConfig(fs, "/bad.jsonc")
	assert.Error(t, err)
}

func TestBuildLoopbackConfig(t *testing.T) {
	fs := afero.NewMemMapFs()

	_, _, err := buildLoopbackConfig(fs, &selftestConfig{Record: "/a", Replay: "/b"})
	assert.ErrorIs(t, err, errRecordAndReplay)
	_, _, err = buildLoopbackConfig(fs, &selftestConfig{Group: "15"})
	assert.Error(t, err)
	_, _, err = buildLoopbackConfig(fs, &selftestConfig{Key: "/missing.pem"})
	assert.Error(t, err)

	cfg, recorder, err := buildLoopbackConfig(fs, &selftestConfig{Group: "toy", Messages: 2, Record: "/tape.json"})
	require.NoError(t, err)
	assert.NotNil(t, recorder)
	assert.Len(t, cfg.Messages, 2)
	assert.Equal(t, int64(23), cfg.Group.P.Int64())
}

func TestSelftestAndDecrypt(t *testing.T) {
	fs := afero.NewMemMapFs()
	c := &selftestConfig{Group: "toy", Messages: 2}
	require.NoError(t, runSelftest(fs, c, []string{"-record", "/tape.json", "-pcap", "/out.pcap", "-keylog", "/keys.log"}))

	tape, err := random.LoadTape(fs, "/tape.json")
	require.NoError(t, err)
	assert.Greater(t, tape.Len(), 0)

	stats, err := decrypt(fs, &decryptConfig{Pcap: "/out.pcap", KeyLog: "/keys.log", Port: 443})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.failed)
	assert.Equal(t, 2, stats.verifiedFinished)
	// 两个Finished加上两个方向各两条应用数据
	assert.Equal(t, 6, stats.decrypted)

	// 换一个端口就看不到这条连接
	stats, err = decrypt(fs, &decryptConfig{Pcap: "/out.pcap", KeyLog: "/keys.log", Port: 8443})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.events)

	assert.ErrorIs(t, runDecrypt(fs, &decryptConfig{}, nil), errMissingInput)
}
