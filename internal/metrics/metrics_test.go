package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/cliptube/internal/auth"
)

// counterValue はレジストリから指定メトリクスのカウンタ値を取り出す。
func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %q not found", name)
	return 0
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordLoginSuccess_IncrementsCounter はログイン成功カウンタが増加することを検証する。
func TestRecordLoginSuccess_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLoginSuccess()
	c.RecordLoginSuccess()

	if val := counterValue(t, reg, "cliptube_login_success_total"); val != 2 {
		t.Errorf("login_success_total = %v, want 2", val)
	}
}

// TestRecordLoginFailure_IncrementsCounter はログイン失敗カウンタが増加することを検証する。
func TestRecordLoginFailure_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLoginFailure()

	if val := counterValue(t, reg, "cliptube_login_fail_total"); val != 1 {
		t.Errorf("login_fail_total = %v, want 1", val)
	}
}

// TestRecordTokenIssued_IncrementsCounterWithRoleLabel はロール別のトークン発行カウンタを検証する。
func TestRecordTokenIssued_IncrementsCounterWithRoleLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordTokenIssued("access")
	c.RecordTokenIssued("access")
	c.RecordTokenIssued("refresh")

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "cliptube_token_issued_total" {
			found = true
			if len(mf.GetMetric()) != 2 {
				t.Fatalf("expected 2 label combinations, got %d", len(mf.GetMetric()))
			}
			for _, m := range mf.GetMetric() {
				label := m.GetLabel()[0].GetValue()
				val := m.GetCounter().GetValue()
				switch label {
				case "access":
					if val != 2 {
						t.Errorf("token_issued_total{role=access} = %v, want 2", val)
					}
				case "refresh":
					if val != 1 {
						t.Errorf("token_issued_total{role=refresh} = %v, want 1", val)
					}
				default:
					t.Errorf("unexpected label value: %s", label)
				}
			}
		}
	}
	if !found {
		t.Error("cliptube_token_issued_total metric not found")
	}
}

// TestRecordRefreshRotation_IncrementsCounter はローテーション成功カウンタを検証する。
func TestRecordRefreshRotation_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRefreshRotation()
	c.RecordRefreshRotation()
	c.RecordRefreshRotation()

	if val := counterValue(t, reg, "cliptube_refresh_rotation_total"); val != 3 {
		t.Errorf("refresh_rotation_total = %v, want 3", val)
	}
}

// TestRecordRefreshReuseRejected_IncrementsCounter は再利用拒否カウンタを検証する。
func TestRecordRefreshReuseRejected_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRefreshReuseRejected()

	if val := counterValue(t, reg, "cliptube_refresh_reuse_rejected_total"); val != 1 {
		t.Errorf("refresh_reuse_rejected_total = %v, want 1", val)
	}
}

// TestRecordHTTPStatus_IncrementsCounterWithLabel はHTTPステータスカウンタがラベル付きで増加することを検証する。
func TestRecordHTTPStatus_IncrementsCounterWithLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(401)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "cliptube_http_status_total" {
			found = true
			if len(mf.GetMetric()) != 2 {
				t.Fatalf("expected 2 label combinations, got %d", len(mf.GetMetric()))
			}
			for _, m := range mf.GetMetric() {
				label := m.GetLabel()[0].GetValue()
				val := m.GetCounter().GetValue()
				switch label {
				case "200":
					if val != 2 {
						t.Errorf("http_status_total{status_code=200} = %v, want 2", val)
					}
				case "401":
					if val != 1 {
						t.Errorf("http_status_total{status_code=401} = %v, want 1", val)
					}
				default:
					t.Errorf("unexpected label value: %s", label)
				}
			}
		}
	}
	if !found {
		t.Error("cliptube_http_status_total metric not found")
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat は/metricsエンドポイントがPrometheus形式で返すことを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLoginSuccess()
	c.RecordLoginFailure()
	c.RecordTokenIssued("access")
	c.RecordRefreshRotation()
	c.RecordHTTPStatus(200)

	handler := Handler(reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	expectedMetrics := []string{
		"cliptube_login_success_total",
		"cliptube_login_fail_total",
		"cliptube_token_issued_total",
		"cliptube_refresh_rotation_total",
		"cliptube_http_status_total",
	}

	for _, metric := range expectedMetrics {
		if !strings.Contains(bodyStr, metric) {
			t.Errorf("response body does not contain %q", metric)
		}
	}
}

// TestCollector_ImplementsMetricsCollectorInterface はCollectorが認証サービスの
// MetricsCollectorインターフェースを実装することを検証する。
func TestCollector_ImplementsMetricsCollectorInterface(t *testing.T) {
	reg := prometheus.NewRegistry()
	var _ auth.MetricsCollector = NewCollector(reg)
}

// TestMultipleCollectors_IndependentRegistries は異なるレジストリで独立に動作することを検証する。
func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()
	c1 := NewCollector(reg1)
	c2 := NewCollector(reg2)

	c1.RecordLoginSuccess()
	c2.RecordLoginSuccess()
	c2.RecordLoginSuccess()

	if val := counterValue(t, reg1, "cliptube_login_success_total"); val != 1 {
		t.Errorf("reg1 login_success = %v, want 1", val)
	}
	if val := counterValue(t, reg2, "cliptube_login_success_total"); val != 2 {
		t.Errorf("reg2 login_success = %v, want 2", val)
	}
}
