package payouts

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/angelmondragon/payoutcore-backend/internal/processor"
	"github.com/angelmondragon/payoutcore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/payoutcore-backend/pkg/errors"
)

// destinationCodes are processor error codes that blame the payout target
// rather than the request.
var destinationCodes = map[string]struct{}{
	"resource_missing":            {},
	"account_invalid":             {},
	"no_account":                  {},
	"account_closed":              {},
	"bank_account_unusable":       {},
	"bank_account_declined":       {},
	"instant_payouts_unsupported": {},
	"payouts_not_allowed":         {},
	"invalid_card_type":           {},
	"receiver_unregistered":       {},
	"receiver_account_locked":     {},
	"receiver_unconfirmed":        {},
}

// Classify maps an attempt error onto an ErrorClass.
func Classify(err error) enums.ErrorClass {
	if err == nil {
		return enums.ErrorClassNone
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return enums.ErrorClassTimeout
	}
	if errors.Is(err, ErrChannelDisabled) || errors.Is(err, ErrDailyCapExceeded) {
		return enums.ErrorClassPolicyLimit
	}
	if errors.Is(err, errIdentityMissing) {
		return enums.ErrorClassConfiguration
	}

	var perr *processor.Error
	if errors.As(err, &perr) && perr.StatusCode > 0 {
		return classifyStatus(perr.StatusCode, perr.Code)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return enums.ErrorClassTimeout
		}
		return enums.ErrorClassNetwork
	}
	if perr != nil {
		return enums.ErrorClassNetwork
	}

	if typed := pkgerrors.As(err); typed != nil {
		switch typed.Code() {
		case pkgerrors.CodeValidation, pkgerrors.CodeProcessor, pkgerrors.CodeNotFound, pkgerrors.CodeStateConflict:
			return enums.ErrorClassInvalidRequest
		case pkgerrors.CodeConfiguration:
			return enums.ErrorClassConfiguration
		case pkgerrors.CodeUnauthorized, pkgerrors.CodeForbidden:
			return enums.ErrorClassAuthFailure
		case pkgerrors.CodeRateLimit:
			return enums.ErrorClassRateLimited
		}
	}
	return enums.ErrorClassUnavailable
}

func classifyStatus(status int, code string) enums.ErrorClass {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return enums.ErrorClassAuthFailure
	case status == http.StatusTooManyRequests:
		return enums.ErrorClassRateLimited
	case status == http.StatusConflict:
		// concurrent use of the same idempotency key; the retry sees the first result
		return enums.ErrorClassUnavailable
	case status == http.StatusRequestTimeout:
		return enums.ErrorClassTimeout
	case status >= 400 && status < 500:
		if _, ok := destinationCodes[strings.ToLower(code)]; ok {
			return enums.ErrorClassDestinationInvalid
		}
		return enums.ErrorClassInvalidRequest
	default:
		return enums.ErrorClassUnavailable
	}
}
