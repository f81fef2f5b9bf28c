package scr

import (
	"errors"
	"fmt"
)

// 帧结构（固定6字节）：
// header1[1]=0x57 | header2[1]=0x68 | reg[1] | paramH[1] | paramL[1] | checksum[1]
const (
	Header1  byte = 0x57
	Header2  byte = 0x68
	FrameLen      = 6
)

var (
	// ErrFrameLength 帧长度不是6字节
	ErrFrameLength = errors.New("frame length must be 6 bytes")
	// ErrBadHeader 帧头不是 0x57 0x68
	ErrBadHeader = errors.New("bad frame header")
)

// Register 命令寄存器
type Register byte

const (
	RegMode          Register = 0x01 // 0=开关模式 1=调压模式
	RegChannelEnable Register = 0x02 // bit0=CH1 bit1=CH2
	RegAngle1        Register = 0x03 // CH1 导通角 0~179
	RegAngle2        Register = 0x04 // CH2 导通角 0~179
	RegFrequency     Register = 0x05 // 电网频率 50/60
	RegReset         Register = 0x06 // 延时复位（毫秒，16位）
	RegBaudrate      Register = 0x07 // 波特率/100（16位）
)

func (r Register) String() string {
	switch r {
	case RegMode:
		return "mode"
	case RegChannelEnable:
		return "channel_enable"
	case RegAngle1:
		return "angle1"
	case RegAngle2:
		return "angle2"
	case RegFrequency:
		return "frequency"
	case RegReset:
		return "reset"
	case RegBaudrate:
		return "baudrate"
	default:
		return fmt.Sprintf("reg_0x%02X", byte(r))
	}
}

// Frame 一帧下行命令
type Frame [FrameLen]byte

// Register 返回寄存器
func (f Frame) Register() Register { return Register(f[2]) }

// Param 返回16位参数（大端）
func (f Frame) Param() uint16 { return uint16(f[3])<<8 | uint16(f[4]) }

// Checksum 返回校验字节
func (f Frame) Checksum() byte { return f[5] }

// Bytes 返回帧字节的副本
func (f Frame) Bytes() []byte {
	b := make([]byte, FrameLen)
	copy(b, f[:])
	return b
}

// Hex 返回大写十六进制串，用于日志
func (f Frame) Hex() string { return fmt.Sprintf("% X", f[:]) }

// Encode 构造一帧命令。纯函数，每次返回新帧。
func Encode(policy ChecksumPolicy, reg Register, param uint16) Frame {
	var f Frame
	f[0] = Header1
	f[1] = Header2
	f[2] = byte(reg)
	f[3] = byte(param >> 8)
	f[4] = byte(param & 0xFF)
	f[5] = policy.Calculate(f[:5])
	return f
}

// Decode 解析并校验一帧（与 Encode 对应）
func Decode(policy ChecksumPolicy, data []byte) (Frame, error) {
	var f Frame
	if len(data) != FrameLen {
		return f, ErrFrameLength
	}
	if data[0] != Header1 || data[1] != Header2 {
		return f, ErrBadHeader
	}
	if err := policy.Verify(data); err != nil {
		return f, err
	}
	copy(f[:], data)
	return f, nil
}
