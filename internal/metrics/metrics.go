package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry 创建自定义 Prometheus Registry，并注册常用采集器
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler 返回 Prometheus 指标 HTTP 处理器
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// AppMetrics 自定义业务指标
type AppMetrics struct {
	FramesSent       *prometheus.CounterVec // labels: register
	WriteErrors      *prometheus.CounterVec // labels: register
	BytesWritten     prometheus.Counter
	ChannelMask      prometheus.Gauge     // 会话认为的通道使能掩码
	RampAngle        *prometheus.GaugeVec // labels: channel
	RampSteps        prometheus.Counter
	RelayTransitions *prometheus.CounterVec // labels: level=active|inactive
	RelayPhysical    prometheus.Gauge       // 继电器引脚最后驱动的电平
}

// NewAppMetrics 注册并返回业务指标
func NewAppMetrics(reg *prometheus.Registry) *AppMetrics {
	m := &AppMetrics{
		FramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scr_frames_sent_total",
			Help: "SCR command frames written to the serial link.",
		}, []string{"register"}),
		WriteErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scr_write_errors_total",
			Help: "SCR frame writes that failed or were partial.",
		}, []string{"register"}),
		BytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scr_bytes_written_total",
			Help: "Total bytes written to the serial link.",
		}),
		ChannelMask: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scr_channel_enable_mask",
			Help: "Channel enable mask last sent to the module.",
		}),
		RampAngle: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "scr_ramp_angle",
			Help: "Conduction angle last commanded by the ramp loop.",
		}, []string{"channel"}),
		RampSteps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scr_ramp_steps_total",
			Help: "Ramp ticks completed.",
		}),
		RelayTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_transitions_total",
			Help: "Relay logical level changes by target level.",
		}, []string{"level"}),
		RelayPhysical: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relay_physical_level",
			Help: "Physical level last driven on the relay line.",
		}),
	}
	reg.MustRegister(m.FramesSent, m.WriteErrors, m.BytesWritten, m.ChannelMask, m.RampAngle, m.RampSteps, m.RelayTransitions, m.RelayPhysical)
	return m
}
