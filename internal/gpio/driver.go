package gpio

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInitialized 引脚未初始化（或已释放）时调用电平操作
	ErrNotInitialized = errors.New("gpio line not initialized")
	// ErrLineBusy 引脚已被其他实例占用
	ErrLineBusy = errors.New("gpio line already requested")
	// ErrReleased 已释放的实例不可再次初始化
	ErrReleased = errors.New("gpio line released")
)

// Request 申请一个输出引脚
// Value 是引脚自身（经过 ActiveLow 属性解释后）的初始值
type Request struct {
	Chip      string
	Offset    int
	Value     int
	ActiveLow bool
	Consumer  string
}

// InitialPhysical 返回初始物理电平
func (r Request) InitialPhysical() int {
	v := r.Value & 0x01
	if r.ActiveLow {
		v ^= 1
	}
	return v
}

// Driver 二值输出引脚能力；每种底层硬件 API 一个实现
type Driver interface {
	Acquire(req Request) (Handle, error)
}

// Handle 已申请的引脚，独占
type Handle interface {
	// Set 驱动物理电平 0/1
	Set(physical int) error
	Release() error
}

// AcquisitionError 申请硬件资源失败（权限、已占用、偏移非法）
type AcquisitionError struct {
	Chip   string
	Offset int
	Err    error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("acquire gpio %s:%d: %v", e.Chip, e.Offset, e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

// IOError 设置电平失败
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string { return fmt.Sprintf("gpio %s: %v", e.Op, e.Err) }

func (e *IOError) Unwrap() error { return e.Err }
