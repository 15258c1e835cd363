package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/payoutcore-backend/internal/ledger"
	"github.com/angelmondragon/payoutcore-backend/pkg/db/models"
	"github.com/angelmondragon/payoutcore-backend/pkg/enums"
)

type stubRevenueRecorder struct {
	input ledger.RecordRevenueInput
}

func (s *stubRevenueRecorder) RecordRevenue(_ context.Context, input ledger.RecordRevenueInput) (*models.RevenueLedgerEntry, error) {
	s.input = input
	return &models.RevenueLedgerEntry{ID: uuid.New(), AmountCents: input.AmountCents, Currency: "usd", Status: enums.RevenueLedgerStatusPending}, nil
}

func TestRecordRevenue(t *testing.T) {
	recorder := &stubRevenueRecorder{}
	req := httptest.NewRequest(http.MethodPost, "/revenue-entries", strings.NewReader(`{"amountCents":2500,"externalReferenceId":"ord_1"}`))
	rec := httptest.NewRecorder()
	RecordRevenue(recorder, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeMap(t, rec)
	entry := body["entry"].(map[string]any)
	if entry["status"] != string(enums.RevenueLedgerStatusPending) || entry["amountCents"] != float64(2500) {
		t.Fatalf("unexpected entry %v", entry)
	}
	if recorder.input.ExternalReferenceID != "ord_1" {
		t.Fatalf("reference not forwarded: %+v", recorder.input)
	}
}

func TestRecordRevenueRejectsZeroAmount(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/revenue-entries", strings.NewReader(`{"amountCents":0}`))
	rec := httptest.NewRecorder()
	RecordRevenue(&stubRevenueRecorder{}, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}
