package prometheus

import (
	"strings"
	"testing"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeSource struct {
	snapshot goIdentity.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() goIdentity.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                        { return f.dropped }

func TestCollectorExposesCountersAndHistogram(t *testing.T) {
	c, err := NewCollectorFromSource(fakeSource{
		snapshot: goIdentity.MetricsSnapshot{
			Counters: map[goIdentity.MetricID]uint64{
				goIdentity.MetricLoginSuccess: 7,
				goIdentity.MetricSSOSignup:    2,
			},
			Histograms: map[goIdentity.MetricID][]uint64{
				goIdentity.MetricVerifyLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 3,
	})
	if err != nil {
		t.Fatalf("NewCollectorFromSource: %v", err)
	}

	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(c); err != nil {
		t.Fatalf("register: %v", err)
	}

	expected := `
# HELP goidentity_login_success_total Successful password logins.
# TYPE goidentity_login_success_total counter
goidentity_login_success_total 7
# HELP goidentity_sso_signup_total Accounts registered through SSO.
# TYPE goidentity_sso_signup_total counter
goidentity_sso_signup_total 2
# HELP goidentity_audit_dropped_total Audit events dropped due to dispatcher backpressure.
# TYPE goidentity_audit_dropped_total counter
goidentity_audit_dropped_total 3
`
	err = testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"goidentity_login_success_total", "goidentity_sso_signup_total", "goidentity_audit_dropped_total")
	if err != nil {
		t.Fatalf("unexpected exposition: %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var found bool
	for _, mf := range families {
		if mf.GetName() != "goidentity_verify_latency_seconds" {
			continue
		}
		found = true
		h := mf.GetMetric()[0].GetHistogram()
		if h.GetSampleCount() != 36 {
			t.Fatalf("expected 36 samples, got %d", h.GetSampleCount())
		}
		if got := h.GetBucket()[0].GetCumulativeCount(); got != 1 {
			t.Fatalf("expected first bucket 1, got %d", got)
		}
	}
	if !found {
		t.Fatal("expected latency histogram")
	}
}

func TestCollectorSkipsMissingHistogram(t *testing.T) {
	c, _ := NewCollectorFromSource(fakeSource{snapshot: goIdentity.MetricsSnapshot{
		Counters:   map[goIdentity.MetricID]uint64{},
		Histograms: map[goIdentity.MetricID][]uint64{},
	}})

	if n := testutil.CollectAndCount(c, "goidentity_verify_latency_seconds"); n != 0 {
		t.Fatalf("expected no histogram series, got %d", n)
	}
	if n := testutil.CollectAndCount(c, "goidentity_logout_total"); n != 1 {
		t.Fatalf("expected logout counter, got %d", n)
	}
}

func TestNewCollectorRejectsNil(t *testing.T) {
	if _, err := NewCollector(nil); err == nil {
		t.Fatal("expected error for nil engine")
	}
	if _, err := NewCollectorFromSource(nil); err == nil {
		t.Fatal("expected error for nil source")
	}
}
