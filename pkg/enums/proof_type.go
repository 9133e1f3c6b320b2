package enums

import (
	"fmt"
	"strings"
)

// ProofType classifies an evidentiary attachment on a payment record.
type ProofType string

const (
	ProofTypeReceipt    ProofType = "receipt"
	ProofTypeBankSlip   ProofType = "bank_slip"
	ProofTypeScreenshot ProofType = "screenshot"
	ProofTypeOther      ProofType = "other"
)

var validProofTypes = []ProofType{
	ProofTypeReceipt,
	ProofTypeBankSlip,
	ProofTypeScreenshot,
	ProofTypeOther,
}

// IsValid reports whether the value is a known ProofType.
func (p ProofType) IsValid() bool {
	for _, candidate := range validProofTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseProofType converts raw input into a ProofType.
func ParseProofType(value string) (ProofType, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validProofTypes {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid proof type %q", value)
}
