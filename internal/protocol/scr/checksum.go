package scr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrChecksumMismatch checksum校验失败
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrUnknownChecksum 未知的校验策略
	ErrUnknownChecksum = errors.New("unknown checksum policy")
)

// ChecksumPolicy 帧校验字节的计算策略
// 同一台设备只能使用一种策略，运行期间不允许切换
type ChecksumPolicy int

const (
	// ChecksumXOR 前5字节逐字节异或（Waveshare 驱动）
	ChecksumXOR ChecksumPolicy = iota
	// ChecksumSum 前5字节累加，取低8位（CLI 版本）
	ChecksumSum
)

// ParseChecksumPolicy 解析配置中的校验策略名称："xor" 或 "sum"
func ParseChecksumPolicy(s string) (ChecksumPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "xor", "":
		return ChecksumXOR, nil
	case "sum", "add", "additive":
		return ChecksumSum, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownChecksum, s)
	}
}

func (p ChecksumPolicy) String() string {
	switch p {
	case ChecksumXOR:
		return "xor"
	case ChecksumSum:
		return "sum"
	default:
		return "unknown"
	}
}

// Calculate 计算校验字节
func (p ChecksumPolicy) Calculate(data []byte) byte {
	var checksum byte
	for _, b := range data {
		if p == ChecksumSum {
			checksum += b
		} else {
			checksum ^= b
		}
	}
	return checksum
}

// Verify 验证校验和，最后一个字节是校验和
func (p ChecksumPolicy) Verify(dataWithChecksum []byte) error {
	if len(dataWithChecksum) < 1 {
		return errors.New("data too short for checksum verification")
	}

	checksumPos := len(dataWithChecksum) - 1
	if dataWithChecksum[checksumPos] != p.Calculate(dataWithChecksum[:checksumPos]) {
		return ErrChecksumMismatch
	}
	return nil
}
