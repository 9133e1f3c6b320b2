package enums

import (
	"fmt"
	"strings"
)

// InvoiceStatus is the stored lifecycle state of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusIncomplete InvoiceStatus = "incomplete"
	InvoiceStatusComplete   InvoiceStatus = "complete"
)

var validInvoiceStatuses = []InvoiceStatus{
	InvoiceStatusIncomplete,
	InvoiceStatusComplete,
}

// String implements fmt.Stringer.
func (s InvoiceStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a stored InvoiceStatus.
func (s InvoiceStatus) IsValid() bool {
	for _, candidate := range validInvoiceStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseInvoiceStatus converts raw input into an InvoiceStatus.
func ParseInvoiceStatus(value string) (InvoiceStatus, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validInvoiceStatuses {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid invoice status %q", value)
}

// InvoiceView is the read-time projection shown to callers. Overdue and
// cancelled are never stored as a status.
type InvoiceView string

const (
	InvoiceViewIncomplete InvoiceView = "incomplete"
	InvoiceViewComplete   InvoiceView = "complete"
	InvoiceViewOverdue    InvoiceView = "overdue"
	InvoiceViewCancelled  InvoiceView = "cancelled"
)
