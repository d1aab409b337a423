// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector は認証イベントとHTTPレスポンスのメトリクスを収集する。
type Collector struct {
	loginSuccess  prometheus.Counter
	loginFail     prometheus.Counter
	tokenIssued   *prometheus.CounterVec
	refreshRotate prometheus.Counter
	refreshReuse  prometheus.Counter
	httpStatus    *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cliptube_login_success_total",
			Help: "ログイン成功の合計数",
		}),
		loginFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cliptube_login_fail_total",
			Help: "ログイン失敗の合計数",
		}),
		tokenIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cliptube_token_issued_total",
			Help: "ロール別のトークン発行数",
		}, []string{"role"}),
		refreshRotate: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cliptube_refresh_rotation_total",
			Help: "リフレッシュトークンローテーション成功の合計数",
		}),
		refreshReuse: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cliptube_refresh_reuse_rejected_total",
			Help: "再利用・期限切れとして拒否したリフレッシュ要求の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cliptube_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.loginSuccess,
		c.loginFail,
		c.tokenIssued,
		c.refreshRotate,
		c.refreshReuse,
		c.httpStatus,
	)

	return c
}

// RecordLoginSuccess はログイン成功を記録する。
func (c *Collector) RecordLoginSuccess() {
	c.loginSuccess.Inc()
}

// RecordLoginFailure はログイン失敗を記録する。
// 資格情報不一致と未知ユーザーは区別せず1つのカウンタに積む。
func (c *Collector) RecordLoginFailure() {
	c.loginFail.Inc()
}

// RecordTokenIssued はロール別のトークン発行を記録する。
func (c *Collector) RecordTokenIssued(role string) {
	c.tokenIssued.WithLabelValues(role).Inc()
}

// RecordRefreshRotation はリフレッシュトークンのローテーション成功を記録する。
func (c *Collector) RecordRefreshRotation() {
	c.refreshRotate.Inc()
}

// RecordRefreshReuseRejected はローテーション済みトークンの再提示を記録する。
// このカウンタの急増はトークン窃取の兆候として監視する。
func (c *Collector) RecordRefreshReuseRejected() {
	c.refreshReuse.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
