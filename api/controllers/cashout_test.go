package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/payoutcore-backend/api/middleware"
	"github.com/angelmondragon/payoutcore-backend/internal/payouts"
	"github.com/angelmondragon/payoutcore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/payoutcore-backend/pkg/errors"
)

type stubCashOutService struct {
	input  payouts.CashOutInput
	called bool
	result *payouts.CashOutResult
	err    error
}

func (s *stubCashOutService) CashOut(_ context.Context, input payouts.CashOutInput) (*payouts.CashOutResult, error) {
	s.called = true
	s.input = input
	return s.result, s.err
}

func postCashout(h http.Handler, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/cashout", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCashOutSuccess(t *testing.T) {
	svc := &stubCashOutService{result: &payouts.CashOutResult{
		Success:     true,
		Amount:      decimal.RequireFromString("5"),
		AmountCents: 500,
		ChannelUsed: enums.PayoutChannelInstant,
	}}
	rec := postCashout(CashOut(svc, nil), `{"requesterId":"u-1","units":500,"amount":5,"channelHint":"instant","metadata":{"source":"app"}}`,
		map[string]string{middleware.IdempotencyKeyHeader: "key-1"})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Success     bool            `json:"success"`
		Amount      decimal.Decimal `json:"amount"`
		ChannelUsed string          `json:"channelUsed"`
		Details     map[string]any  `json:"details"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success || body.ChannelUsed != "instant" || !body.Amount.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("unexpected body %+v", body)
	}
	if body.Details == nil {
		t.Fatal("expected details")
	}
	if svc.input.CorrelationID != "key-1" {
		t.Fatalf("expected idempotency key as correlation id, got %q", svc.input.CorrelationID)
	}
	if svc.input.Units != 500 || svc.input.Amount == nil || svc.input.Metadata["source"] != "app" {
		t.Fatalf("input not forwarded: %+v", svc.input)
	}
}

func TestCashOutRejectsInvalidBody(t *testing.T) {
	cases := map[string]string{
		"missing requester": `{"units":100}`,
		"missing units":     `{"requesterId":"u-1"}`,
		"negative units":    `{"requesterId":"u-1","units":-1}`,
		"bad email":         `{"requesterId":"u-1","units":100,"contactEmail":"nope"}`,
		"unknown field":     `{"requesterId":"u-1","units":100,"extra":true}`,
		"not json":          `{`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			svc := &stubCashOutService{}
			rec := postCashout(CashOut(svc, nil), body, nil)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400 got %d", rec.Code)
			}
			if svc.called {
				t.Fatal("service must not be called")
			}
			var env map[string]any
			_ = json.NewDecoder(rec.Body).Decode(&env)
			if env["success"] != false || env["code"] != string(pkgerrors.CodeValidation) {
				t.Fatalf("unexpected envelope %v", env)
			}
		})
	}
}

func TestCashOutErrorsFromService(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
		code pkgerrors.Code
	}{
		{"configuration", pkgerrors.New(pkgerrors.CodeConfiguration, "payout destination not configured"), http.StatusBadRequest, pkgerrors.CodeConfiguration},
		{"all channels failed", pkgerrors.New(pkgerrors.CodePayoutFailed, "card declined"), http.StatusInternalServerError, pkgerrors.CodePayoutFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubCashOutService{err: tc.err}
			rec := postCashout(CashOut(svc, nil), `{"requesterId":"u-1","units":100}`, nil)
			if rec.Code != tc.want {
				t.Fatalf("expected %d got %d", tc.want, rec.Code)
			}
			var env map[string]any
			if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if env["code"] != string(tc.code) || env["success"] != false {
				t.Fatalf("unexpected envelope %v", env)
			}
			if env["error"] != tc.err.(*pkgerrors.Error).Message() {
				t.Fatalf("message should pass through, got %v", env["error"])
			}
		})
	}
}

func TestSanitizeMetadata(t *testing.T) {
	long := strings.Repeat("k", 60)
	out := sanitizeMetadata(map[string]string{
		"  source ": " app ",
		"   ":       "dropped",
		long:        strings.Repeat("v", 600),
	})
	if out["source"] != "app" {
		t.Fatalf("expected trimmed key and value, got %v", out)
	}
	if _, ok := out[""]; ok {
		t.Fatal("blank keys must be dropped")
	}
	if v, ok := out[long[:maxMetadataKeyLen]]; !ok || len(v) != maxMetadataValueLen {
		t.Fatalf("expected truncated entry, got %v", out)
	}
	if sanitizeMetadata(nil) != nil {
		t.Fatal("nil metadata should stay nil")
	}
}

func TestCashOutAcceptsTypedMetadata(t *testing.T) {
	svc := &stubCashOutService{result: &payouts.CashOutResult{Success: true}}
	rec := postCashout(CashOut(svc, nil), `{"requesterId":"u-1","units":100,"metadata":{"level":12,"vip":true,"ratio":0.5,"source":"app"}}`, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	want := map[string]string{"level": "12", "vip": "true", "ratio": "0.5", "source": "app"}
	for k, v := range want {
		if svc.input.Metadata[k] != v {
			t.Fatalf("metadata %q: expected %q got %q", k, v, svc.input.Metadata[k])
		}
	}
}

func TestCashOutRejectsLongIdempotencyKey(t *testing.T) {
	svc := &stubCashOutService{}
	rec := postCashout(CashOut(svc, nil), `{"requesterId":"u-1","units":100}`,
		map[string]string{middleware.IdempotencyKeyHeader: strings.Repeat("k", payouts.MaxCorrelationIDLength+1)})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if svc.called {
		t.Fatal("service must not be called")
	}

	rec = postCashout(CashOut(svc, nil), `{"requesterId":"u-1","units":100}`,
		map[string]string{middleware.IdempotencyKeyHeader: strings.Repeat("k", payouts.MaxCorrelationIDLength)})
	if !svc.called || len(svc.input.CorrelationID) != payouts.MaxCorrelationIDLength {
		t.Fatalf("expected key at the limit to pass through, got status %d", rec.Code)
	}
}
