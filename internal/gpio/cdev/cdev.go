// Package cdev 基于 GPIO 字符设备（/dev/gpiochipN）的引脚驱动，
// ABIVersion 选择 uAPI v1 或 v2，对应 libgpiod 的两个主版本。
package cdev

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/taoyao-code/scrhat/internal/gpio"
)

// DefaultConsumer 申请引脚时登记的使用者名称
const DefaultConsumer = "scrhat-relay"

// Driver 字符设备驱动
type Driver struct {
	// ABIVersion 0 表示自动选择
	ABIVersion int
}

// New 创建驱动
func New(abiVersion int) (*Driver, error) {
	if abiVersion != 0 && abiVersion != 1 && abiVersion != 2 {
		return nil, fmt.Errorf("cdev: unsupported abi version %d", abiVersion)
	}
	return &Driver{ABIVersion: abiVersion}, nil
}

// Acquire 打开芯片并申请输出引脚；失败时不保留任何句柄
func (d *Driver) Acquire(req gpio.Request) (gpio.Handle, error) {
	consumer := req.Consumer
	if consumer == "" {
		consumer = DefaultConsumer
	}

	chipOpts := []gpiocdev.ChipOption{gpiocdev.WithConsumer(consumer)}
	if d.ABIVersion != 0 {
		chipOpts = append(chipOpts, gpiocdev.WithABIVersion(d.ABIVersion))
	}
	chip, err := gpiocdev.NewChip(req.Chip, chipOpts...)
	if err != nil {
		return nil, fmt.Errorf("open chip %s: %w", req.Chip, err)
	}

	lineOpts := []gpiocdev.LineReqOption{gpiocdev.AsOutput(req.Value & 0x01)}
	if req.ActiveLow {
		lineOpts = append(lineOpts, gpiocdev.AsActiveLow)
	}
	line, err := chip.RequestLine(req.Offset, lineOpts...)
	if err != nil {
		_ = chip.Close()
		return nil, fmt.Errorf("request line %d: %w", req.Offset, err)
	}
	return &handle{chip: chip, line: line, activeLow: req.ActiveLow}, nil
}

type handle struct {
	chip      *gpiocdev.Chip
	line      *gpiocdev.Line
	activeLow bool
}

// Set 物理电平；引脚以低有效申请时内核会反相，这里补偿回来
func (h *handle) Set(physical int) error {
	v := physical & 0x01
	if h.activeLow {
		v ^= 1
	}
	return h.line.SetValue(v)
}

func (h *handle) Release() error {
	lerr := h.line.Close()
	cerr := h.chip.Close()
	return errors.Join(lerr, cerr)
}
