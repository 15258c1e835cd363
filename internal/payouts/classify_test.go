package payouts

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/angelmondragon/payoutcore-backend/internal/processor"
	"github.com/angelmondragon/payoutcore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/payoutcore-backend/pkg/errors"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func wrapProcessor(status int, code string) error {
	perr := &processor.Error{Op: "op", StatusCode: status, Code: code, Message: "msg"}
	return pkgerrors.Wrap(pkgerrors.CodeProcessor, perr, "stripe op failed")
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want enums.ErrorClass
	}{
		{"nil", nil, enums.ErrorClassNone},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), enums.ErrorClassTimeout},
		{"bad request", wrapProcessor(400, "parameter_invalid"), enums.ErrorClassInvalidRequest},
		{"payment required", wrapProcessor(402, ""), enums.ErrorClassInvalidRequest},
		{"missing account", wrapProcessor(404, "resource_missing"), enums.ErrorClassDestinationInvalid},
		{"account invalid", wrapProcessor(400, "account_invalid"), enums.ErrorClassDestinationInvalid},
		{"unprocessable", wrapProcessor(422, ""), enums.ErrorClassInvalidRequest},
		{"unauthorized", wrapProcessor(401, ""), enums.ErrorClassAuthFailure},
		{"forbidden", wrapProcessor(403, ""), enums.ErrorClassAuthFailure},
		{"rate limited", wrapProcessor(429, "rate_limit"), enums.ErrorClassRateLimited},
		{"idempotency in flight", wrapProcessor(409, "idempotency_key_in_use"), enums.ErrorClassUnavailable},
		{"server error", wrapProcessor(500, ""), enums.ErrorClassUnavailable},
		{"bad gateway", wrapProcessor(502, ""), enums.ErrorClassUnavailable},
		{"connection refused", &processor.Error{Op: "op", Err: &net.OpError{Op: "dial", Err: errors.New("connection refused")}}, enums.ErrorClassNetwork},
		{"net timeout", &processor.Error{Op: "op", Err: timeoutErr{}}, enums.ErrorClassTimeout},
		{"policy cap", ErrDailyCapExceeded, enums.ErrorClassPolicyLimit},
		{"policy disabled", ErrChannelDisabled, enums.ErrorClassPolicyLimit},
		{"configuration", pkgerrors.New(pkgerrors.CodeConfiguration, "missing"), enums.ErrorClassConfiguration},
		{"identity", fmt.Errorf("x: %w", errIdentityMissing), enums.ErrorClassConfiguration},
		{"dependency", pkgerrors.New(pkgerrors.CodeDependency, "ledger down"), enums.ErrorClassUnavailable},
		{"unknown", errors.New("boom"), enums.ErrorClassUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.err); got != tc.want {
				t.Fatalf("Classify(%v) = %q want %q", tc.err, got, tc.want)
			}
		})
	}
}

func TestClassifyTransience(t *testing.T) {
	if !Classify(wrapProcessor(503, "")).IsTransient() {
		t.Fatal("5xx should be transient")
	}
	if Classify(wrapProcessor(400, "")).IsTransient() {
		t.Fatal("4xx should be terminal")
	}
}
