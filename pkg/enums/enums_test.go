package enums

import "testing"

func TestParsePaymentStatus(t *testing.T) {
	got, err := ParsePaymentStatus(" CONFIRMED ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != PaymentStatusConfirmed {
		t.Fatalf("expected confirmed, got %q", got)
	}
	if _, err := ParsePaymentStatus("settled"); err == nil {
		t.Fatal("expected unknown status to fail")
	}
}

func TestPaymentStatusCommitted(t *testing.T) {
	if !PaymentStatusPending.Committed() || !PaymentStatusConfirmed.Committed() {
		t.Fatal("pending and confirmed funds are committed")
	}
	if PaymentStatusRejected.Committed() {
		t.Fatal("rejected funds are not committed")
	}
}

func TestParseInvoiceStatus(t *testing.T) {
	if _, err := ParseInvoiceStatus("overdue"); err == nil {
		t.Fatal("overdue is a projection, not a stored status")
	}
	got, err := ParseInvoiceStatus("Complete")
	if err != nil || got != InvoiceStatusComplete {
		t.Fatalf("unexpected parse result %q %v", got, err)
	}
}

func TestParsePaymentMethodAndProofType(t *testing.T) {
	if m, err := ParsePaymentMethod("bank_transfer"); err != nil || m != PaymentMethodBankTransfer {
		t.Fatalf("unexpected method %q %v", m, err)
	}
	if _, err := ParsePaymentMethod("barter"); err == nil {
		t.Fatal("expected invalid method")
	}
	if p, err := ParseProofType("BANK_SLIP"); err != nil || p != ProofTypeBankSlip {
		t.Fatalf("unexpected proof type %q %v", p, err)
	}
	if ProofType("x").IsValid() {
		t.Fatal("x is not a proof type")
	}
}
