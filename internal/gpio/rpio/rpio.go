// Package rpio 基于 /dev/gpiomem 内存映射的 BCM GPIO 驱动（树莓派）。
// 内存映射没有内核级独占，引脚占用在进程内登记。
package rpio

import (
	"fmt"
	"sync"

	gorpio "github.com/stianeikeland/go-rpio/v4"

	"github.com/taoyao-code/scrhat/internal/gpio"
)

// BCM 引脚编号上限（不含）
const maxPin = 54

// Driver rpio 驱动；首次申请时打开映射，全部释放后关闭
type Driver struct {
	mu      sync.Mutex
	claimed map[int]bool

	open  func() error
	close func() error
}

// New 创建驱动
func New() *Driver {
	return &Driver{
		claimed: make(map[int]bool),
		open:    gorpio.Open,
		close:   gorpio.Close,
	}
}

// Acquire 申请输出引脚；Chip 字段忽略，Offset 为 BCM 编号
func (d *Driver) Acquire(req gpio.Request) (gpio.Handle, error) {
	if req.Offset < 0 || req.Offset >= maxPin {
		return nil, fmt.Errorf("rpio: invalid bcm pin %d", req.Offset)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.claimed[req.Offset] {
		return nil, gpio.ErrLineBusy
	}
	if len(d.claimed) == 0 {
		if err := d.open(); err != nil {
			return nil, fmt.Errorf("rpio: open gpiomem: %w", err)
		}
	}
	d.claimed[req.Offset] = true

	pin := gorpio.Pin(req.Offset)
	// 先写锁存值再切换方向，避免毛刺
	pin.Write(toState(req.InitialPhysical()))
	pin.Output()
	return &handle{driver: d, pin: pin, offset: req.Offset}, nil
}

func (d *Driver) release(offset int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.claimed[offset] {
		return nil
	}
	delete(d.claimed, offset)
	if len(d.claimed) == 0 {
		return d.close()
	}
	return nil
}

type handle struct {
	driver   *Driver
	pin      gorpio.Pin
	offset   int
	released bool
}

func (h *handle) Set(physical int) error {
	if h.released {
		return gpio.ErrNotInitialized
	}
	h.pin.Write(toState(physical))
	return nil
}

func (h *handle) Release() error {
	if h.released {
		return nil
	}
	h.released = true
	return h.driver.release(h.offset)
}

func toState(physical int) gorpio.State {
	if physical&0x01 == 1 {
		return gorpio.High
	}
	return gorpio.Low
}
