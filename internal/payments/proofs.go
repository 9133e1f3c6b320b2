package payments

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/propertyledger-backend/pkg/db/models"
	"github.com/angelmondragon/propertyledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/propertyledger-backend/pkg/errors"
)

// AttachProofInput references evidence stored elsewhere (an object key or URL).
type AttachProofInput struct {
	PaymentID   uuid.UUID
	ProofType   enums.ProofType
	FileRef     string
	UploadedBy  string
	Description string
}

// AttachProof records evidence for a payment. Proofs never affect totals, so
// no invoice lock is taken.
func (s *service) AttachProof(ctx context.Context, input AttachProofInput) (*models.PaymentProof, error) {
	if input.PaymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	if !input.ProofType.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid proof type %q", input.ProofType)
	}
	fileRef := strings.TrimSpace(input.FileRef)
	uploadedBy := strings.TrimSpace(input.UploadedBy)
	if fileRef == "" || uploadedBy == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file_ref and uploaded_by are required")
	}
	if _, err := s.ledger.FindByID(ctx, input.PaymentID); err != nil {
		return nil, paymentNotFoundOr(err)
	}
	proof := &models.PaymentProof{
		PaymentRecordID: input.PaymentID,
		ProofType:       input.ProofType,
		FileRef:         fileRef,
		UploadedBy:      uploadedBy,
		Description:     optionalString(input.Description),
	}
	if err := s.ledger.CreateProof(ctx, proof); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment proof")
	}
	return proof, nil
}

func (s *service) ListProofs(ctx context.Context, paymentID uuid.UUID) ([]models.PaymentProof, error) {
	if paymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	if _, err := s.ledger.FindByID(ctx, paymentID); err != nil {
		return nil, paymentNotFoundOr(err)
	}
	proofs, err := s.ledger.ListProofs(ctx, paymentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payment proofs")
	}
	return proofs, nil
}
