package health

import (
	"context"
	"time"
)

// Status 检查项状态，严重程度 healthy < degraded < unhealthy
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"  // 最近一次写入失败，链路仍打开
	StatusUnhealthy Status = "unhealthy" // 链路关闭或引脚未就绪
)

func (s Status) severity() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// Worse 返回两者中更严重的一个
func (s Status) Worse(other Status) Status {
	if other.severity() > s.severity() {
		return other
	}
	return s
}

// CheckResult 单项检查结论；Details 只放可 JSON 序列化的快照字段
type CheckResult struct {
	Status  Status         `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	Latency time.Duration  `json:"latency"`
}

func finish(start time.Time, status Status, message string, details map[string]any) CheckResult {
	return CheckResult{Status: status, Message: message, Details: details, Latency: time.Since(start)}
}

// Checker 只读取会话或引脚状态，绝不下发设备命令
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}
