package app

import (
	"fmt"
	"os"

	"github.com/google/uuid"
)

// GenerateRunID 生成本次运行的实例ID，写入日志与 /status
// 优先使用环境变量 SCRHAT_RUN_ID，否则生成 scrhat-{hostname}-{uuid前8位}
func GenerateRunID() string {
	if id := os.Getenv("SCRHAT_RUN_ID"); id != "" {
		return id
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("scrhat-%s-%s", hostname, uuid.New().String()[:8])
}
