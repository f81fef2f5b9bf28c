package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfgpkg "github.com/taoyao-code/scrhat/internal/config"
	appmetrics "github.com/taoyao-code/scrhat/internal/metrics"
)

func newTestServer(readyFn func() bool) *Server {
	gin.SetMode(gin.TestMode)
	cfg := cfgpkg.HTTPConfig{Addr: "127.0.0.1:0", ReadTimeout: time.Second, WriteTimeout: time.Second}
	reg := appmetrics.NewRegistry()
	appmetrics.NewAppMetrics(reg)
	return New(cfg, "/metrics", appmetrics.Handler(reg), readyFn)
}

func serve(s *Server, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestHealthzReadyzMetrics(t *testing.T) {
	srv := newTestServer(func() bool { return true })

	assert.Equal(t, http.StatusOK, serve(srv, "/healthz").Code)
	assert.Equal(t, http.StatusOK, serve(srv, "/readyz").Code)

	rr := serve(srv, "/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "scr_channel_enable_mask")
}

func TestReadyzNotReady(t *testing.T) {
	srv := newTestServer(func() bool { return false })
	assert.Equal(t, http.StatusServiceUnavailable, serve(srv, "/readyz").Code)
}

func TestStatusRoute(t *testing.T) {
	srv := newTestServer(nil)
	srv.Register(func(r gin.IRoutes) {
		RegisterStatus(r, func() any {
			return map[string]any{"command": "ramp", "channel_mask": 3}
		})
	})

	rr := serve(srv, "/status")
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ramp", body["command"])
	assert.Equal(t, 3.0, body["channel_mask"])
}

func TestServeAndShutdown(t *testing.T) {
	srv := newTestServer(nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "ok", string(body))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	assert.NoError(t, <-done, "正常关闭不视为错误")
}
