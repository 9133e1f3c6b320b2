package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// BillingMetrics counts ledger and import outcomes.
type BillingMetrics struct {
	payments      *prometheus.CounterVec
	paymentAmount *prometheus.CounterVec
	rejections    *prometheus.CounterVec
	importRows    *prometheus.CounterVec
	penalties     *prometheus.CounterVec
	integrity     prometheus.Counter
}

// NewBillingMetrics registers the billing metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewBillingMetrics(reg prometheus.Registerer) *BillingMetrics {
	if reg == nil {
		return &BillingMetrics{}
	}
	m := &BillingMetrics{
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_payments_recorded_total",
			Help: "Payment records appended to invoice ledgers.",
		}, []string{"method", "status"}),
		paymentAmount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_payment_amount_total",
			Help: "Sum of recorded payment amounts.",
		}, []string{"method"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_rejections_total",
			Help: "Billing operations rejected, by error code.",
		}, []string{"operation", "code"}),
		importRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_import_rows_total",
			Help: "Usage import rows by outcome.",
		}, []string{"outcome"}),
		penalties: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_penalties_total",
			Help: "Overdue penalties applied or waived.",
		}, []string{"action"}),
		integrity: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "billing_integrity_faults_total",
			Help: "Negative remainders detected while resolving carry-forward balances.",
		}),
	}
	reg.MustRegister(m.payments, m.paymentAmount, m.rejections, m.importRows, m.penalties, m.integrity)
	return m
}

// PaymentRecorded counts a new ledger entry.
func (m *BillingMetrics) PaymentRecorded(method, status string, amount decimal.Decimal) {
	if m == nil || m.payments == nil {
		return
	}
	m.payments.WithLabelValues(normalizeLabel(method), normalizeLabel(status)).Inc()
	m.paymentAmount.WithLabelValues(normalizeLabel(method)).Add(amount.InexactFloat64())
}

// Rejected counts an operation refused with the given error code.
func (m *BillingMetrics) Rejected(operation, code string) {
	if m == nil || m.rejections == nil {
		return
	}
	m.rejections.WithLabelValues(normalizeLabel(operation), normalizeLabel(code)).Inc()
}

// ImportRow counts one processed import row; outcome is "accepted" or an error code.
func (m *BillingMetrics) ImportRow(outcome string) {
	if m == nil || m.importRows == nil {
		return
	}
	m.importRows.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// PenaltyApplied counts a one-time overdue penalty.
func (m *BillingMetrics) PenaltyApplied() {
	if m == nil || m.penalties == nil {
		return
	}
	m.penalties.WithLabelValues("applied").Inc()
}

// PenaltyWaived counts an explicit penalty waiver.
func (m *BillingMetrics) PenaltyWaived() {
	if m == nil || m.penalties == nil {
		return
	}
	m.penalties.WithLabelValues("waived").Inc()
}

// IntegrityFault counts a detected negative remainder.
func (m *BillingMetrics) IntegrityFault() {
	if m == nil || m.integrity == nil {
		return
	}
	m.integrity.Inc()
}
