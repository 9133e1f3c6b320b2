package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/propertyledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/propertyledger-backend/pkg/errors"
	"github.com/angelmondragon/propertyledger-backend/pkg/pagination"
)

type sampleBody struct {
	ID     string `json:"id" validate:"required,uuid"`
	Status string `json:"status" validate:"required,oneof=open closed"`
}

func requireCode(t *testing.T, err error, want pkgerrors.Code) {
	t.Helper()
	if got := pkgerrors.CodeOf(err); got != want {
		t.Fatalf("expected %s, got %s (%v)", want, got, err)
	}
}

func TestDecodeJSONBody(t *testing.T) {
	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"id":"`+id+`","status":"open"}`))
	var body sampleBody
	if err := DecodeJSONBody(req, &body); err != nil {
		t.Fatalf("DecodeJSONBody error: %v", err)
	}
	if body.ID != id {
		t.Fatalf("expected id %s, got %s", id, body.ID)
	}
}

func TestDecodeJSONBodyValidationDetails(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"id":"nope","status":"pending"}`))
	var body sampleBody
	err := DecodeJSONBody(req, &body)
	requireCode(t, err, pkgerrors.CodeValidation)

	details, ok := pkgerrors.As(err).Details().(map[string]string)
	if !ok {
		t.Fatalf("unexpected details %#v", pkgerrors.As(err).Details())
	}
	if details["id"] != "must be a valid uuid" {
		t.Fatalf("unexpected id detail %q", details["id"])
	}
	if details["status"] != "must be one of: open closed" {
		t.Fatalf("unexpected status detail %q", details["status"])
	}
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"id":"x","extra":1}`))
	var body sampleBody
	requireCode(t, DecodeJSONBody(req, &body), pkgerrors.CodeValidation)
}

func TestParseUUIDParam(t *testing.T) {
	id := uuid.New()
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("invoiceId", id.String())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	got, err := ParseUUIDParam(req, "invoiceId")
	if err != nil {
		t.Fatalf("ParseUUIDParam error: %v", err)
	}
	if got != id {
		t.Fatalf("expected %s, got %s", id, got)
	}

	_, err = ParseUUIDParam(req, "paymentId")
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestQueryParsers(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=20&include=yes&contract_id=bad", nil)

	limit, err := ParseQueryInt(req, "limit", 10, 1, 100)
	if err != nil || limit != 20 {
		t.Fatalf("ParseQueryInt = %d, %v", limit, err)
	}
	def, err := ParseQueryInt(req, "missing", 10, 1, 100)
	if err != nil || def != 10 {
		t.Fatalf("ParseQueryInt(missing) = %d, %v", def, err)
	}
	_, err = ParseQueryInt(req, "limit", 10, 1, 5)
	requireCode(t, err, pkgerrors.CodeValidation)

	if !ParseQueryBool(req, "include") {
		t.Fatal("expected include=yes to be true")
	}
	if ParseQueryBool(req, "missing") {
		t.Fatal("expected missing bool to be false")
	}

	_, err = ParseQueryUUID(req, "contract_id")
	requireCode(t, err, pkgerrors.CodeValidation)
	none, err := ParseQueryUUID(req, "other")
	if err != nil || none != nil {
		t.Fatalf("ParseQueryUUID(other) = %v, %v; want nil, nil", none, err)
	}
}

func TestParsePage(t *testing.T) {
	page, err := ParsePage(httptest.NewRequest(http.MethodGet, "/api/v1/invoices?cursor=+abc+", nil))
	if err != nil {
		t.Fatalf("ParsePage error: %v", err)
	}
	if page.Limit != pagination.DefaultLimit || page.Cursor != "abc" {
		t.Fatalf("unexpected page params %+v", page)
	}

	_, err = ParsePage(httptest.NewRequest(http.MethodGet, "/api/v1/invoices?limit=0", nil))
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestParseQueryInvoiceStatus(t *testing.T) {
	status, err := ParseQueryInvoiceStatus(httptest.NewRequest(http.MethodGet, "/?status=complete", nil), "status")
	if err != nil {
		t.Fatalf("ParseQueryInvoiceStatus error: %v", err)
	}
	if status == nil || *status != enums.InvoiceStatusComplete {
		t.Fatalf("expected complete, got %v", status)
	}

	none, err := ParseQueryInvoiceStatus(httptest.NewRequest(http.MethodGet, "/", nil), "status")
	if err != nil || none != nil {
		t.Fatalf("expected no filter, got %v, %v", none, err)
	}

	// overdue is a derived view, not a stored status.
	_, err = ParseQueryInvoiceStatus(httptest.NewRequest(http.MethodGet, "/?status=overdue", nil), "status")
	requireCode(t, err, pkgerrors.CodeValidation)
}
