// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層とワーカーから利用する。
type MetricsCollector interface {
	RecordUpstreamRequest(endpoint string, statusCode int)
	RecordUpstreamLatency(endpoint string, duration time.Duration)
	RecordCacheHit()
	RecordCacheMiss()
	RecordJobsReconciled(count int)
	RecordMessageSent()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	upstreamRequests *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
	jobsReconciled   prometheus.Counter
	messagesSent     prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldportal_upstream_requests_total",
			Help: "外部APIリクエストのエンドポイント・ステータスコード別の合計数",
		}, []string{"endpoint", "status_code"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fieldportal_upstream_latency_seconds",
			Help:    "外部APIリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fieldportal_job_cache_hits_total",
			Help: "ジョブキャッシュのヒット合計数",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fieldportal_job_cache_misses_total",
			Help: "ジョブキャッシュのミス合計数",
		}),
		jobsReconciled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fieldportal_jobs_reconciled_total",
			Help: "外部システムと同期したジョブの合計数",
		}),
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fieldportal_messages_sent_total",
			Help: "顧客が送信したメッセージの合計数",
		}),
	}

	reg.MustRegister(
		c.upstreamRequests,
		c.upstreamLatency,
		c.cacheHits,
		c.cacheMisses,
		c.jobsReconciled,
		c.messagesSent,
	)

	return c
}

// RecordUpstreamRequest は外部APIリクエストの結果を記録する。
func (c *Collector) RecordUpstreamRequest(endpoint string, statusCode int) {
	c.upstreamRequests.WithLabelValues(endpoint, strconv.Itoa(statusCode)).Inc()
}

// RecordUpstreamLatency は外部APIリクエストのレイテンシを記録する。
func (c *Collector) RecordUpstreamLatency(endpoint string, duration time.Duration) {
	c.upstreamLatency.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordCacheHit はジョブキャッシュのヒットを記録する。
func (c *Collector) RecordCacheHit() {
	c.cacheHits.Inc()
}

// RecordCacheMiss はジョブキャッシュのミスを記録する。
func (c *Collector) RecordCacheMiss() {
	c.cacheMisses.Inc()
}

// RecordJobsReconciled は同期したジョブ数を記録する。
func (c *Collector) RecordJobsReconciled(count int) {
	c.jobsReconciled.Add(float64(count))
}

// RecordMessageSent はメッセージ送信を記録する。
func (c *Collector) RecordMessageSent() {
	c.messagesSent.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
