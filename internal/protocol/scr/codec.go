package scr

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownBaudPolicy 未知的波特率发送策略
var ErrUnknownBaudPolicy = errors.New("unknown baud policy")

// 模块支持的波特率范围：参数 = bps/100，取值 [12, 9216)
const (
	MinBaudParam uint32 = 12
	MaxBaudParam uint32 = 9216
)

// BaudPolicy 超出范围时的处理方式
type BaudPolicy int

const (
	// BaudStrict 超出范围不发送
	BaudStrict BaudPolicy = iota
	// BaudAlways 总是发送，参数截断到16位
	BaudAlways
)

// ParseBaudPolicy 解析配置中的波特率策略："strict" 或 "always"
func ParseBaudPolicy(s string) (BaudPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict", "":
		return BaudStrict, nil
	case "always":
		return BaudAlways, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownBaudPolicy, s)
	}
}

func (p BaudPolicy) String() string {
	if p == BaudAlways {
		return "always"
	}
	return "strict"
}

// BaudrateEncoding 波特率寄存器参数编码
type BaudrateEncoding struct {
	Policy BaudPolicy
}

// Supported 判断波特率是否在模块支持范围内
func (e BaudrateEncoding) Supported(bps uint32) bool {
	p := bps / 100
	return p >= MinBaudParam && p < MaxBaudParam
}

// Encode 返回寄存器参数；ok=false 表示按策略不应发送
func (e BaudrateEncoding) Encode(bps uint32) (param uint16, ok bool) {
	p := bps / 100
	if e.Supported(bps) {
		return uint16(p), true
	}
	if e.Policy != BaudAlways {
		return 0, false
	}
	if p > 0xFFFF {
		p = 0xFFFF
	}
	return uint16(p), true
}

// Codec 绑定校验策略与波特率编码的编码器，构造后不可变
type Codec struct {
	checksum ChecksumPolicy
	baud     BaudrateEncoding
}

// NewCodec 创建编码器
func NewCodec(checksum ChecksumPolicy, baud BaudPolicy) Codec {
	return Codec{checksum: checksum, baud: BaudrateEncoding{Policy: baud}}
}

// Checksum 返回校验策略
func (c Codec) Checksum() ChecksumPolicy { return c.checksum }

// Baudrate 返回波特率编码
func (c Codec) Baudrate() BaudrateEncoding { return c.baud }

// Encode 构造一帧命令
func (c Codec) Encode(reg Register, param uint16) Frame {
	return Encode(c.checksum, reg, param)
}

// Decode 解析一帧命令
func (c Codec) Decode(data []byte) (Frame, error) {
	return Decode(c.checksum, data)
}
