// Package script 以 YAML 步骤列表驱动调压模块（台架调试用）
package script

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/taoyao-code/scrhat/internal/device"
)

// 支持的步骤
const (
	OpMode      = "mode"
	OpEnable    = "enable"
	OpDisable   = "disable"
	OpAngle     = "angle"
	OpFrequency = "frequency"
	OpReset     = "reset"
	OpWait      = "wait"
)

// ErrInvalidStep 步骤定义非法
var ErrInvalidStep = errors.New("invalid script step")

// Device 脚本可调用的会话操作
type Device interface {
	SetMode(mode device.Mode) error
	EnableChannel(ch int) error
	DisableChannel(ch int) error
	SetAngle(ch int, angle int) error
	SetGridFrequency(hz int) error
	Reset(delayMs uint16) error
}

// Script 步骤脚本
type Script struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Steps       []Step `yaml:"steps"`
}

// Step 单个步骤；按 Op 使用对应字段
type Step struct {
	Op       string        `yaml:"op"`
	Mode     string        `yaml:"mode,omitempty"`
	Channel  int           `yaml:"channel,omitempty"`
	Value    int           `yaml:"value,omitempty"`
	Duration time.Duration `yaml:"duration,omitempty"`
}

func (s Step) String() string {
	switch s.Op {
	case OpMode:
		return "mode " + s.Mode
	case OpEnable, OpDisable:
		return fmt.Sprintf("%s %d", s.Op, s.Channel)
	case OpAngle:
		return fmt.Sprintf("angle %d=%d", s.Channel, s.Value)
	case OpWait:
		return "wait " + s.Duration.String()
	default:
		return fmt.Sprintf("%s %d", s.Op, s.Value)
	}
}

// StepError 第 Index 步执行失败（从 1 计数）
type StepError struct {
	Index int
	Step  Step
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Load 读取并校验脚本文件
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script %s: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("script %s: %w", path, err)
	}
	return s, nil
}

// Parse 解析并校验
func Parse(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}
	for i := range s.Steps {
		s.Steps[i].Op = strings.ToLower(strings.TrimSpace(s.Steps[i].Op))
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate 在执行前检查全部步骤，避免执行到一半才发现错误
func (s *Script) Validate() error {
	if len(s.Steps) == 0 {
		return fmt.Errorf("%w: no steps", ErrInvalidStep)
	}
	for i, st := range s.Steps {
		if err := st.validate(); err != nil {
			return &StepError{Index: i + 1, Step: st, Err: err}
		}
	}
	return nil
}

func (s Step) validate() error {
	switch s.Op {
	case OpMode:
		if _, err := device.ParseMode(s.Mode); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidStep, err)
		}
	case OpEnable, OpDisable:
		if s.Channel != 1 && s.Channel != 2 {
			return fmt.Errorf("%w: channel %d", ErrInvalidStep, s.Channel)
		}
	case OpAngle:
		if s.Channel != 1 && s.Channel != 2 {
			return fmt.Errorf("%w: channel %d", ErrInvalidStep, s.Channel)
		}
		if s.Value < 0 || s.Value > device.MaxAngle {
			return fmt.Errorf("%w: angle %d", ErrInvalidStep, s.Value)
		}
	case OpFrequency:
		if s.Value != 50 && s.Value != 60 {
			return fmt.Errorf("%w: frequency %d (want 50 or 60)", ErrInvalidStep, s.Value)
		}
	case OpReset:
		if s.Value < 0 || s.Value > 0xFFFF {
			return fmt.Errorf("%w: reset delay %d", ErrInvalidStep, s.Value)
		}
	case OpWait:
		if s.Duration <= 0 {
			return fmt.Errorf("%w: wait duration %s", ErrInvalidStep, s.Duration)
		}
	default:
		return fmt.Errorf("%w: unknown op %q", ErrInvalidStep, s.Op)
	}
	return nil
}

// Run 顺序执行；首个失败即停止，ctx 取消时在步骤之间停止
func (s *Script) Run(ctx context.Context, dev Device, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	for i, st := range s.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := exec(ctx, dev, st); err != nil {
			return &StepError{Index: i + 1, Step: st, Err: err}
		}
		log.Info("script step done", zap.String("script", s.Name), zap.Int("index", i+1), zap.Stringer("step", st))
	}
	return nil
}

func exec(ctx context.Context, dev Device, st Step) error {
	switch st.Op {
	case OpMode:
		mode, err := device.ParseMode(st.Mode)
		if err != nil {
			return err
		}
		return dev.SetMode(mode)
	case OpEnable:
		return dev.EnableChannel(st.Channel)
	case OpDisable:
		return dev.DisableChannel(st.Channel)
	case OpAngle:
		return dev.SetAngle(st.Channel, st.Value)
	case OpFrequency:
		return dev.SetGridFrequency(st.Value)
	case OpReset:
		return dev.Reset(uint16(st.Value))
	case OpWait:
		t := time.NewTimer(st.Duration)
		defer t.Stop()
		select {
		case <-t.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	default:
		return fmt.Errorf("%w: unknown op %q", ErrInvalidStep, st.Op)
	}
}
