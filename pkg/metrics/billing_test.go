package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

func TestBillingMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBillingMetrics(reg)

	m.PaymentRecorded("cash", "pending", decimal.RequireFromString("1500.50"))
	m.PaymentRecorded("cash", "confirmed", decimal.NewFromInt(500))
	m.Rejected("add_payment", "OVERPAYMENT")
	m.ImportRow("accepted")
	m.ImportRow("accepted")
	m.ImportRow("UNKNOWN_ROOM")
	m.PenaltyApplied()
	m.PenaltyWaived()
	m.IntegrityFault()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, _ := fetchCounterValue(mfs, "billing_payment_amount_total", "method", "cash"); got != 2000.5 {
		t.Fatalf("expected amount 2000.5, got %f", got)
	}
	if got, _ := fetchCounterValue(mfs, "billing_rejections_total", "code", "OVERPAYMENT"); got != 1 {
		t.Fatalf("expected 1 overpayment rejection, got %f", got)
	}
	if got, _ := fetchCounterValue(mfs, "billing_import_rows_total", "outcome", "accepted"); got != 2 {
		t.Fatalf("expected 2 accepted rows, got %f", got)
	}
	if got, _ := fetchCounterValue(mfs, "billing_penalties_total", "action", "waived"); got != 1 {
		t.Fatalf("expected 1 waiver, got %f", got)
	}
	mf := findMetricFamily(mfs, "billing_integrity_faults_total")
	if mf == nil || mf.GetMetric()[0].GetCounter().GetValue() != 1 {
		t.Fatal("expected one integrity fault")
	}
}

func TestBillingMetricsNilSafe(t *testing.T) {
	var m *BillingMetrics
	m.PaymentRecorded("cash", "pending", decimal.NewFromInt(1))
	m.Rejected("x", "y")
	m.ImportRow("accepted")
	m.PenaltyApplied()
	m.IntegrityFault()

	NewBillingMetrics(nil).PenaltyWaived()
}
