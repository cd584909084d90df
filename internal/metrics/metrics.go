// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// thread.MetricsRecorderとmessage.MetricsRecorderの両方を満たす。
type Collector struct {
	threadsCreated prometheus.Counter
	threadsDeleted prometheus.Counter
	messagesSent   prometheus.Counter
	messagesRead   prometheus.Counter
	unreadQueries  prometheus.Counter
	httpStatus     *prometheus.CounterVec
	requestLatency prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		threadsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatman_threads_created_total",
			Help: "作成されたスレッドの合計数",
		}),
		threadsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatman_threads_deleted_total",
			Help: "削除されたスレッドの合計数",
		}),
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatman_messages_sent_total",
			Help: "送信されたメッセージの合計数",
		}),
		messagesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatman_messages_read_total",
			Help: "既読になったメッセージの合計数",
		}),
		unreadQueries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatman_unread_queries_total",
			Help: "未読数クエリの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatman_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chatman_request_latency_seconds",
			Help:    "HTTPリクエスト処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.threadsCreated,
		c.threadsDeleted,
		c.messagesSent,
		c.messagesRead,
		c.unreadQueries,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordThreadCreated はスレッド作成を記録する。
func (c *Collector) RecordThreadCreated() {
	c.threadsCreated.Inc()
}

// RecordThreadDeleted はスレッド削除を記録する。
func (c *Collector) RecordThreadDeleted() {
	c.threadsDeleted.Inc()
}

// RecordMessageSent はメッセージ送信を記録する。
func (c *Collector) RecordMessageSent() {
	c.messagesSent.Inc()
}

// RecordMessageRead はメッセージ既読化を記録する。
func (c *Collector) RecordMessageRead() {
	c.messagesRead.Inc()
}

// RecordUnreadQuery は未読数クエリを記録する。
func (c *Collector) RecordUnreadQuery() {
	c.unreadQueries.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエスト処理のレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// APIサーバーとは別ポートで公開する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
