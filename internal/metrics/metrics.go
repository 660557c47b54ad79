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
// ゲートウェイ、セッションストア、楽観的更新、フォロー推定から利用する。
type MetricsCollector interface {
	RecordRequest(method string, statusCode int, duration time.Duration)
	RecordSessionTransition(state string)
	RecordMutation(kind, outcome string)
	RecordFollowProbe(result string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	requests           *prometheus.CounterVec
	requestLatency     prometheus.Histogram
	sessionTransitions *prometheus.CounterVec
	mutations          *prometheus.CounterVec
	followProbes       *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogclient_api_requests_total",
			Help: "バックエンドAPI呼び出しの合計数（メソッド・ステータス別）",
		}, []string{"method", "status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "blogclient_api_request_latency_seconds",
			Help:    "バックエンドAPI呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		sessionTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogclient_session_transitions_total",
			Help: "セッション状態遷移の合計数（遷移先別）",
		}, []string{"state"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogclient_optimistic_mutations_total",
			Help: "楽観的更新の結果別合計数",
		}, []string{"kind", "outcome"}),
		followProbes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogclient_follow_probes_total",
			Help: "フォロー状態推定の結果別合計数",
		}, []string{"result"}),
	}

	reg.MustRegister(
		c.requests,
		c.requestLatency,
		c.sessionTransitions,
		c.mutations,
		c.followProbes,
	)

	return c
}

// RecordRequest はAPI呼び出し1回分を記録する。
// レスポンスを受け取れなかった場合statusCodeは0になる。
func (c *Collector) RecordRequest(method string, statusCode int, duration time.Duration) {
	c.requests.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
	c.requestLatency.Observe(duration.Seconds())
}

// RecordSessionTransition はセッション状態の遷移を記録する。
func (c *Collector) RecordSessionTransition(state string) {
	c.sessionTransitions.WithLabelValues(state).Inc()
}

// RecordMutation は楽観的更新の結果を記録する。
func (c *Collector) RecordMutation(kind, outcome string) {
	c.mutations.WithLabelValues(kind, outcome).Inc()
}

// RecordFollowProbe はフォロー状態推定の結果を記録する。
func (c *Collector) RecordFollowProbe(result string) {
	c.followProbes.WithLabelValues(result).Inc()
}

// Nop は何も記録しないMetricsCollector。
type Nop struct{}

func (Nop) RecordRequest(string, int, time.Duration) {}
func (Nop) RecordSessionTransition(string)           {}
func (Nop) RecordMutation(string, string)            {}
func (Nop) RecordFollowProbe(string)                 {}

// OrNop はcがnilの場合にNopを返す。
func OrNop(c MetricsCollector) MetricsCollector {
	if c == nil {
		return Nop{}
	}
	return c
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
