package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// StatusFunc 返回当前运行状态快照，必须只读
type StatusFunc func() any

// RegisterStatus 注册 GET /status
func RegisterStatus(r gin.IRoutes, fn StatusFunc) {
	r.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, fn())
	})
}
