package app

import (
	"github.com/gin-gonic/gin"
	"github.com/taoyao-code/scrhat/internal/health"
)

// NewHealthAggregator 按本次命令实际使用的硬件组装检查器
func NewHealthAggregator(session health.SessionSource, link health.LinkSource, relay health.RelaySource) *health.Aggregator {
	agg := health.NewAggregator()
	if session != nil {
		agg.AddChecker(health.NewSessionChecker(session, link))
	}
	if relay != nil {
		agg.AddChecker(health.NewRelayChecker(relay))
	}
	return agg
}

// RegisterHealthRoutes 注册健康检查HTTP路由
func RegisterHealthRoutes(r gin.IRoutes, aggregator *health.Aggregator) {
	health.RegisterHTTPRoutes(r, aggregator)
}
