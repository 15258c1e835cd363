package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/angelmondragon/payoutcore-backend/internal/sweeper"
	pkgerrors "github.com/angelmondragon/payoutcore-backend/pkg/errors"
)

type stubSweepRunner struct {
	summary   *sweeper.RunSummary
	runErr    error
	misrouted *sweeper.MisroutedResult
	transErr  error
	trigger   string
}

func (s *stubSweepRunner) Run(_ context.Context, trigger string) (*sweeper.RunSummary, error) {
	s.trigger = trigger
	return s.summary, s.runErr
}

func (s *stubSweepRunner) TransferMisroutedBalance(context.Context) (*sweeper.MisroutedResult, error) {
	return s.misrouted, s.transErr
}

func decodeMap(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return body
}

func TestUSDSweepSuccess(t *testing.T) {
	runner := &stubSweepRunner{summary: &sweeper.RunSummary{Trigger: sweeper.TriggerManual, Pending: sweeper.PendingSummary{Processed: 1, TotalPending: 1}}}
	rec := httptest.NewRecorder()
	USDSweep(runner, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/usd-sweep", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	body := decodeMap(t, rec)
	if body["success"] != true {
		t.Fatalf("expected success, got %v", body)
	}
	pending := body["summary"].(map[string]any)["pending"].(map[string]any)
	if pending["processed"] != float64(1) || pending["total_pending"] != float64(1) {
		t.Fatalf("unexpected pending summary %v", pending)
	}
	if runner.trigger != sweeper.TriggerManual {
		t.Fatalf("expected manual trigger, got %q", runner.trigger)
	}
}

func TestUSDSweepPartialFailure(t *testing.T) {
	runner := &stubSweepRunner{
		summary: &sweeper.RunSummary{Errors: []string{"revenue x: declined"}},
		runErr:  errors.New("revenue x: declined"),
	}
	rec := httptest.NewRecorder()
	USDSweep(runner, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/usd-sweep", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if body := decodeMap(t, rec); body["success"] != false {
		t.Fatalf("expected success=false, got %v", body)
	}
}

func TestUSDSweepAlreadyRunning(t *testing.T) {
	runner := &stubSweepRunner{summary: &sweeper.RunSummary{Skipped: true}, runErr: sweeper.ErrRunInProgress}
	rec := httptest.NewRecorder()
	USDSweep(runner, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/usd-sweep", nil))

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", rec.Code)
	}
	if body := decodeMap(t, rec); body["code"] != string(pkgerrors.CodeSweepInProgress) {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestTransferAccounts(t *testing.T) {
	runner := &stubSweepRunner{misrouted: &sweeper.MisroutedResult{AccountID: "acct_m", TransferredCents: 1200, TransferID: "tr_1"}}
	rec := httptest.NewRecorder()
	TransferAccounts(runner, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/transfer-accounts", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	body := decodeMap(t, rec)
	result := body["result"].(map[string]any)
	if body["success"] != true || result["transferId"] != "tr_1" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestTransferAccountsErrors(t *testing.T) {
	cases := map[string]struct {
		err  error
		want int
	}{
		"not configured": {pkgerrors.New(pkgerrors.CodeConfiguration, "misrouted account not configured"), http.StatusBadRequest},
		"running":        {sweeper.ErrRunInProgress, http.StatusConflict},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			TransferAccounts(&stubSweepRunner{transErr: tc.err}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/transfer-accounts", nil))
			if rec.Code != tc.want {
				t.Fatalf("expected %d got %d", tc.want, rec.Code)
			}
		})
	}
}
