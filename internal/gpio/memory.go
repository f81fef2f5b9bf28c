package gpio

import (
	"fmt"
	"sync"
)

// MemoryDriver 内存引脚驱动：无硬件时的演练后端，也用于测试
type MemoryDriver struct {
	mu      sync.Mutex
	claimed map[string]*MemoryLine

	// AcquireErr / SetErr / ReleaseErr 注入错误
	AcquireErr error
	SetErr     error
	ReleaseErr error
}

// NewMemoryDriver 创建内存驱动
func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{claimed: make(map[string]*MemoryLine)}
}

// MemoryLine 内存引脚，记录全部物理电平
type MemoryLine struct {
	driver  *MemoryDriver
	key     string
	Request Request
	Writes  []int // 初始电平 + 每次 Set
}

// Acquire 申请引脚；同一 chip:offset 重复申请返回 ErrLineBusy
func (d *MemoryDriver) Acquire(req Request) (Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.AcquireErr != nil {
		return nil, d.AcquireErr
	}
	if req.Offset < 0 {
		return nil, fmt.Errorf("invalid offset %d", req.Offset)
	}
	key := fmt.Sprintf("%s:%d", req.Chip, req.Offset)
	if _, busy := d.claimed[key]; busy {
		return nil, ErrLineBusy
	}
	l := &MemoryLine{driver: d, key: key, Request: req, Writes: []int{req.InitialPhysical()}}
	d.claimed[key] = l
	return l, nil
}

// Line 返回当前占用的引脚
func (d *MemoryDriver) Line(chip string, offset int) (*MemoryLine, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.claimed[fmt.Sprintf("%s:%d", chip, offset)]
	return l, ok
}

// Set 记录物理电平
func (l *MemoryLine) Set(physical int) error {
	l.driver.mu.Lock()
	defer l.driver.mu.Unlock()
	if l.driver.SetErr != nil {
		return l.driver.SetErr
	}
	l.Writes = append(l.Writes, physical&0x01)
	return nil
}

// Release 释放占用
func (l *MemoryLine) Release() error {
	l.driver.mu.Lock()
	defer l.driver.mu.Unlock()
	delete(l.driver.claimed, l.key)
	return l.driver.ReleaseErr
}

// Last 返回最后的物理电平
func (l *MemoryLine) Last() int {
	l.driver.mu.Lock()
	defer l.driver.mu.Unlock()
	return l.Writes[len(l.Writes)-1]
}
