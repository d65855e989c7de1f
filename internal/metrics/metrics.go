// Package metrics 提供 Prometheus 指标的采集与暴露。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder 是服务层与中间件使用的指标接口。
type Recorder interface {
	RecordTurn(regime string, emotion string, duration time.Duration)
	RecordLLMFailure(component string)
	RecordPersistenceFailure(stage string)
	RecordHTTPStatus(statusCode int)
	RecordRateLimited(scope string)
}

// Collector 将指标注册到 Prometheus。
type Collector struct {
	turns          *prometheus.CounterVec
	turnLatency    prometheus.Histogram
	llmFailures    *prometheus.CounterVec
	persistFailure *prometheus.CounterVec
	httpStatus     *prometheus.CounterVec
	rateLimited    *prometheus.CounterVec
}

var _ Recorder = (*Collector)(nil)

// NewCollector 创建 Collector 并注册到 reg。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lumi_chat_turns_total",
			Help: "Completed chat turns by regime and detected emotion.",
		}, []string{"regime", "emotion"}),
		turnLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lumi_chat_turn_seconds",
			Help:    "End-to-end chat turn latency.",
			Buckets: prometheus.DefBuckets,
		}),
		llmFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lumi_llm_failures_total",
			Help: "Failed completion calls by component.",
		}, []string{"component"}),
		persistFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lumi_persistence_failures_total",
			Help: "Profile or conversation writes that failed during a turn.",
		}, []string{"stage"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lumi_http_status_total",
			Help: "HTTP responses by status code.",
		}, []string{"status_code"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lumi_rate_limited_total",
			Help: "Requests rejected by the rate limiter.",
		}, []string{"scope"}),
	}

	reg.MustRegister(
		c.turns,
		c.turnLatency,
		c.llmFailures,
		c.persistFailure,
		c.httpStatus,
		c.rateLimited,
	)

	return c
}

// RecordTurn 记录一次完成的对话轮次。
func (c *Collector) RecordTurn(regime string, emotion string, duration time.Duration) {
	c.turns.WithLabelValues(regime, emotion).Inc()
	c.turnLatency.Observe(duration.Seconds())
}

// RecordLLMFailure 记录一次模型调用失败。
func (c *Collector) RecordLLMFailure(component string) {
	c.llmFailures.WithLabelValues(component).Inc()
}

// RecordPersistenceFailure 记录一次持久化失败。
func (c *Collector) RecordPersistenceFailure(stage string) {
	c.persistFailure.WithLabelValues(stage).Inc()
}

// RecordHTTPStatus 记录响应状态码。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRateLimited 记录一次限流拒绝。
func (c *Collector) RecordRateLimited(scope string) {
	c.rateLimited.WithLabelValues(scope).Inc()
}

// Handler 返回 Prometheus 抓取处理器。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop 丢弃所有指标。
type Nop struct{}

var _ Recorder = Nop{}

func (Nop) RecordTurn(string, string, time.Duration) {}
func (Nop) RecordLLMFailure(string)                  {}
func (Nop) RecordPersistenceFailure(string)          {}
func (Nop) RecordHTTPStatus(int)                     {}
func (Nop) RecordRateLimited(string)                 {}
