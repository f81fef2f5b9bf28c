package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRun_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"缺少命令", nil, 2},
		{"未知命令", []string{"dim"}, 2},
		{"未知参数", []string{"--speed", "1", "on1"}, 2},
		{"波特率非数字", []string{"baud", "x"}, 2},
		{"帮助", []string{"--help"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			assert.Equal(t, tt.want, run(tt.args, &stdout, &stderr))
			assert.Empty(t, stdout.String())
			assert.Contains(t, stderr.String(), "Usage: scrhat")
		})
	}
}

func TestRun_BadConfigFile(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"--config", t.TempDir() + "/missing.yaml", "on1"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "ERROR")
}

func TestRun_InvalidConfigValue(t *testing.T) {
	t.Setenv("SCRHAT_DEVICE_CHECKSUM", "crc8")
	t.Chdir(t.TempDir())
	var stdout, stderr bytes.Buffer
	code := run([]string{"on1"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "device.checksum")
}

func TestRun_SerialOpenFailure(t *testing.T) {
	t.Chdir(t.TempDir())
	var stdout, stderr bytes.Buffer
	code := run([]string{"--dev", "/nonexistent/ttyS99", "on1"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Empty(t, stdout.String())
}
