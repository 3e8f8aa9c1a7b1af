// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 同期処理、ワーカー、サービス層から利用する。
type MetricsCollector interface {
	ObserveAuthEvent(kind string)
	ObserveProfileFetch(outcome string)
	RecordSignIn(success bool)
	RecordSessionRefresh(success bool, duration time.Duration)
	RecordSessionsDeleted(count int64)
	RecordApplicationSubmitted()
	RecordWebsiteCheck(reachable bool)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	authEvents      *prometheus.CounterVec
	profileFetches  *prometheus.CounterVec
	signIns         *prometheus.CounterVec
	sessionRefresh  *prometheus.CounterVec
	refreshLatency  prometheus.Histogram
	sessionsDeleted prometheus.Counter
	applications    prometheus.Counter
	websiteChecks   *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hagwonmatch_auth_events_total",
			Help: "種類別の受信した認証イベント数",
		}, []string{"kind"}),
		profileFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hagwonmatch_profile_fetch_total",
			Help: "結果別のプロフィール取得数",
		}, []string{"outcome"}),
		signIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hagwonmatch_sign_in_total",
			Help: "結果別のログイン試行数",
		}, []string{"outcome"}),
		sessionRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hagwonmatch_session_refresh_total",
			Help: "結果別のセッション延長数",
		}, []string{"outcome"}),
		refreshLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hagwonmatch_session_refresh_latency_seconds",
			Help:    "セッション延長のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		sessionsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hagwonmatch_sessions_deleted_total",
			Help: "クリーンアップで削除された期限切れセッションの合計数",
		}),
		applications: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hagwonmatch_applications_submitted_total",
			Help: "送信された応募の合計数",
		}),
		websiteChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hagwonmatch_website_check_total",
			Help: "結果別の学校ウェブサイト疎通確認数",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		c.authEvents,
		c.profileFetches,
		c.signIns,
		c.sessionRefresh,
		c.refreshLatency,
		c.sessionsDeleted,
		c.applications,
		c.websiteChecks,
	)

	return c
}

// ObserveAuthEvent は受信した認証イベントを記録する。
func (c *Collector) ObserveAuthEvent(kind string) {
	c.authEvents.WithLabelValues(kind).Inc()
}

// ObserveProfileFetch はプロフィール取得の結果を記録する。
func (c *Collector) ObserveProfileFetch(outcome string) {
	c.profileFetches.WithLabelValues(outcome).Inc()
}

// RecordSignIn はログイン試行の結果を記録する。
func (c *Collector) RecordSignIn(success bool) {
	c.signIns.WithLabelValues(outcomeLabel(success)).Inc()
}

// RecordSessionRefresh はセッション延長の結果とレイテンシを記録する。
func (c *Collector) RecordSessionRefresh(success bool, duration time.Duration) {
	c.sessionRefresh.WithLabelValues(outcomeLabel(success)).Inc()
	c.refreshLatency.Observe(duration.Seconds())
}

// RecordSessionsDeleted は削除された期限切れセッション数を記録する。
func (c *Collector) RecordSessionsDeleted(count int64) {
	c.sessionsDeleted.Add(float64(count))
}

// RecordApplicationSubmitted は応募の送信を記録する。
func (c *Collector) RecordApplicationSubmitted() {
	c.applications.Inc()
}

// RecordWebsiteCheck はウェブサイト疎通確認の結果を記録する。
func (c *Collector) RecordWebsiteCheck(reachable bool) {
	label := "reachable"
	if !reachable {
		label = "unreachable"
	}
	c.websiteChecks.WithLabelValues(label).Inc()
}

func outcomeLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
