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
// ミドルウェア、サービス層、ワーカーから利用する。
type MetricsCollector interface {
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordRegistration()
	RecordLoginFailure()
	RecordPostCreated(contentType string)
	RecordUploadAccepted(prefix string)
	RecordUploadRejected(reason string)
	RecordOrphansRemoved(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus     *prometheus.CounterVec
	requestLatency prometheus.Histogram
	registrations  prometheus.Counter
	loginFailures  prometheus.Counter
	postsCreated   *prometheus.CounterVec
	uploadAccepted *prometheus.CounterVec
	uploadRejected *prometheus.CounterVec
	orphansRemoved prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "poethaven_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "poethaven_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "poethaven_registrations_total",
			Help: "ユーザー登録の合計数",
		}),
		loginFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "poethaven_login_failures_total",
			Help: "ログイン失敗の合計数",
		}),
		postsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "poethaven_posts_created_total",
			Help: "contentType別の投稿作成数",
		}, []string{"content_type"}),
		uploadAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "poethaven_uploads_accepted_total",
			Help: "保存されたアップロードファイル数",
		}, []string{"prefix"}),
		uploadRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "poethaven_uploads_rejected_total",
			Help: "拒否されたアップロードファイル数",
		}, []string{"reason"}),
		orphansRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "poethaven_orphan_uploads_removed_total",
			Help: "掃除ジョブが削除した孤立ファイル数",
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.requestLatency,
		c.registrations,
		c.loginFailures,
		c.postsCreated,
		c.uploadAccepted,
		c.uploadRejected,
		c.orphansRemoved,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエスト処理時間を記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordRegistration はユーザー登録を記録する。
func (c *Collector) RecordRegistration() {
	c.registrations.Inc()
}

// RecordLoginFailure はログイン失敗を記録する。
func (c *Collector) RecordLoginFailure() {
	c.loginFailures.Inc()
}

// RecordPostCreated は投稿作成を記録する。
func (c *Collector) RecordPostCreated(contentType string) {
	c.postsCreated.WithLabelValues(contentType).Inc()
}

// RecordUploadAccepted はアップロードの保存を記録する。
func (c *Collector) RecordUploadAccepted(prefix string) {
	c.uploadAccepted.WithLabelValues(prefix).Inc()
}

// RecordUploadRejected はアップロードの拒否を記録する。reasonはエラーコード。
func (c *Collector) RecordUploadRejected(reason string) {
	c.uploadRejected.WithLabelValues(reason).Inc()
}

// RecordOrphansRemoved は孤立ファイルの削除数を記録する。
func (c *Collector) RecordOrphansRemoved(count int) {
	c.orphansRemoved.Add(float64(count))
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordHTTPStatus(int)               {}
func (Nop) RecordRequestLatency(time.Duration) {}
func (Nop) RecordRegistration()                {}
func (Nop) RecordLoginFailure()                {}
func (Nop) RecordPostCreated(string)           {}
func (Nop) RecordUploadAccepted(string)        {}
func (Nop) RecordUploadRejected(string)        {}
func (Nop) RecordOrphansRemoved(int)           {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
