package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cast"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/payoutcore-backend/internal/processor"
	"github.com/angelmondragon/payoutcore-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/payoutcore-backend/pkg/errors"
	"github.com/angelmondragon/payoutcore-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"

	defaultCurrency = "usd"
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// Client wraps Stripe's API with centralized auth, logging, idempotency and
// error mapping. It implements processor.Processor.
type Client struct {
	api               *stripe.Client
	environment       string
	currency          string
	holdPaymentMethod string
	logger            *logger.Logger
}

var _ processor.Processor = (*Client)(nil)

// NewClient initializes Stripe once with the configured key and env.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}

	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}

	api := stripe.NewClient(apiKey)
	stripe.Key = apiKey

	currency := strings.ToLower(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = defaultCurrency
	}

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("stripe client initialized (%s)", env))
	}

	return &Client{
		api:               api,
		environment:       env,
		currency:          currency,
		holdPaymentMethod: strings.TrimSpace(cfg.HoldPaymentMethod),
		logger:            logg,
	}, nil
}

// API returns the underlying Stripe API client.
func (c *Client) API() *stripe.Client {
	if c == nil {
		return nil
	}
	return c.api
}

// Environment reports the normalized Stripe environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// Currency reports the default currency applied when a call omits one.
func (c *Client) Currency() string {
	if c == nil {
		return ""
	}
	return c.currency
}

func (c *Client) currencyOr(value string) string {
	if v := strings.ToLower(strings.TrimSpace(value)); v != "" {
		return v
	}
	return c.currency
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
		"provider":  "stripe",
	}
	for k, v := range fields {
		logFields[k] = redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("stripe %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("stripe %s", phase))
	}
}

func redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"email", "secret", "token", "card"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}

// mapStripeError flattens SDK errors into processor.Error wrapped in the
// domain error code matching the HTTP status.
func mapStripeError(err error, op string) error {
	if err == nil {
		return nil
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		perr := &processor.Error{
			Op:         op,
			StatusCode: stripeErr.HTTPStatusCode,
			Code:       string(stripeErr.Code),
			Type:       string(stripeErr.Type),
			Message:    stripeErr.Msg,
			Err:        err,
		}
		code := domainCodeForStatus(stripeErr.HTTPStatusCode)
		if perr.Code == "idempotency_key_in_use" {
			code = pkgerrors.CodeIdempotency
		}
		return pkgerrors.Wrap(code, perr, fmt.Sprintf("stripe %s failed", op)).
			WithDetails(map[string]any{"processor_code": perr.Code, "status": perr.StatusCode})
	}
	perr := &processor.Error{Op: op, Message: err.Error(), Err: err}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, perr, fmt.Sprintf("stripe %s failed", op))
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case http.StatusForbidden:
		return pkgerrors.CodeForbidden
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	case http.StatusBadRequest, http.StatusPaymentRequired:
		return pkgerrors.CodeProcessor
	case http.StatusUnprocessableEntity:
		return pkgerrors.CodeStateConflict
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeProcessor
		}
		return pkgerrors.CodeDependency
	}
}

// MetadataFromAny converts loosely typed request metadata into the string map
// Stripe accepts. Values that cannot be rendered are dropped.
func MetadataFromAny(in map[string]any) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		s, err := cast.ToStringE(v)
		if err != nil {
			continue
		}
		out[k] = s
	}
	return out
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidStripeEnv
	}
}

func validateAPIKey(env, key string) error {
	switch env {
	case testEnv:
		if strings.HasPrefix(key, "sk_test") || strings.HasPrefix(key, "rk_test") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a test secret key (sk_test/rk_test)", testEnv)
	case liveEnv:
		if strings.HasPrefix(key, "sk_live") || strings.HasPrefix(key, "rk_live") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a live secret key (sk_live/rk_live)", liveEnv)
	default:
		return errInvalidStripeEnv
	}
}
