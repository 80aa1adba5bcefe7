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
// ハンドラー層から利用する。
type MetricsCollector interface {
	RecordLoginStarted()
	RecordLoginCompleted()
	RecordLoginFailed(stage string)
	RecordTokenRefresh()
	RecordPreviewFetch(result string)
	RecordImportedBookmarks(count int)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	loginStarted   prometheus.Counter
	loginCompleted prometheus.Counter
	loginFailed    *prometheus.CounterVec
	tokenRefresh   prometheus.Counter
	previewFetch   *prometheus.CounterVec
	importedTotal  prometheus.Counter
	httpStatus     *prometheus.CounterVec
	requestLatency prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "melly_login_started_total",
			Help: "発行されたログインURLの合計数",
		}),
		loginCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "melly_login_completed_total",
			Help: "トークン交換まで完了したログインの合計数",
		}),
		loginFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "melly_login_failed_total",
			Help: "失敗したログインの段階別合計数",
		}, []string{"stage"}),
		tokenRefresh: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "melly_token_refresh_total",
			Help: "アクセストークン再発行の合計数",
		}),
		previewFetch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "melly_preview_fetch_total",
			Help: "URLプレビュー取得の結果別合計数",
		}, []string{"result"}),
		importedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "melly_imported_bookmarks_total",
			Help: "フィードインポートで作成されたブックマークの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "melly_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "melly_request_latency_seconds",
			Help:    "APIリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.loginStarted,
		c.loginCompleted,
		c.loginFailed,
		c.tokenRefresh,
		c.previewFetch,
		c.importedTotal,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordLoginStarted はログインURL発行を記録する。
func (c *Collector) RecordLoginStarted() {
	c.loginStarted.Inc()
}

// RecordLoginCompleted はトークン交換完了を記録する。
func (c *Collector) RecordLoginCompleted() {
	c.loginCompleted.Inc()
}

// RecordLoginFailed はログイン失敗を段階（callback/exchange/refresh）付きで記録する。
func (c *Collector) RecordLoginFailed(stage string) {
	c.loginFailed.WithLabelValues(stage).Inc()
}

// RecordTokenRefresh はアクセストークン再発行を記録する。
func (c *Collector) RecordTokenRefresh() {
	c.tokenRefresh.Inc()
}

// RecordPreviewFetch はプレビュー取得の結果（success/failure）を記録する。
func (c *Collector) RecordPreviewFetch(result string) {
	c.previewFetch.WithLabelValues(result).Inc()
}

// RecordImportedBookmarks はインポートで作成されたブックマーク数を記録する。
func (c *Collector) RecordImportedBookmarks(count int) {
	c.importedTotal.Add(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はAPIリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// 内部ポートでのPrometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// 各レコード呼び出しが揃っていることを保証する。
var _ MetricsCollector = (*Collector)(nil)
