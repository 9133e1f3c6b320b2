// Package types holds the JSON envelopes every billing endpoint answers with.
package types

// SuccessEnvelope wraps a successful payload: an invoice, a payment summary,
// a balance or an import report.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public face of a pkg/errors code. Details only appear for
// codes that allow them, such as the remaining balance on OVERPAYMENT.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	// Retryable marks failures a client may resend unchanged, like a busy
	// invoice lock.
	Retryable bool `json:"retryable,omitempty"`
}

// ErrorEnvelope wraps a failure. RequestID matches the X-Request-Id header
// and the request_id field on the server's log lines.
type ErrorEnvelope struct {
	Error     APIError `json:"error"`
	RequestID string   `json:"request_id,omitempty"`
}
