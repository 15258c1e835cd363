package payouts

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/payoutcore-backend/pkg/enums"
)

func writePolicy(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadPolicies(t *testing.T) {
	path := writePolicy(t, `
channels:
  - channel: instant
    daily_cap_cents: 50000
  - channel: paypal
    enabled: false
`)
	policies, err := LoadPolicies(path)
	require.NoError(t, err)
	require.Len(t, policies, 2)
	assert.Equal(t, ChannelPolicy{Channel: enums.PayoutChannelInstant, Enabled: true, DailyCapCents: 50000}, policies[0])
	assert.Equal(t, ChannelPolicy{Channel: enums.PayoutChannelPayPal, Enabled: false}, policies[1])
}

func TestLoadPoliciesEmptyPath(t *testing.T) {
	policies, err := LoadPolicies("  ")
	require.NoError(t, err)
	assert.Empty(t, policies)
}

func TestLoadPoliciesRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"unknown channel": "channels:\n  - channel: wire\n",
		"duplicate":       "channels:\n  - channel: instant\n  - channel: instant\n",
		"negative cap":    "channels:\n  - channel: standard\n    daily_cap_cents: -1\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadPolicies(writePolicy(t, body))
			require.Error(t, err)
		})
	}
	_, err := LoadPolicies(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestPolicyEnforcer(t *testing.T) {
	enforcer := NewPolicyEnforcer([]ChannelPolicy{
		{Channel: enums.PayoutChannelInstant, Enabled: true, DailyCapCents: 1000},
		{Channel: enums.PayoutChannelPayPal, Enabled: false},
	})
	day := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)

	_, err := enforcer.Reserve(enums.PayoutChannelInstant, 600, day)
	require.NoError(t, err)
	_, err = enforcer.Reserve(enums.PayoutChannelInstant, 401, day)
	assert.True(t, errors.Is(err, ErrDailyCapExceeded))
	_, err = enforcer.Reserve(enums.PayoutChannelInstant, 400, day)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), enforcer.Spent(enums.PayoutChannelInstant, day))

	nextDay := day.Add(24 * time.Hour)
	_, err = enforcer.Reserve(enums.PayoutChannelInstant, 1000, nextDay)
	require.NoError(t, err, "caps reset daily")

	_, err = enforcer.Reserve(enums.PayoutChannelPayPal, 1, day)
	assert.True(t, errors.Is(err, ErrChannelDisabled))
	assert.False(t, enforcer.Enabled(enums.PayoutChannelPayPal))
	assert.True(t, enforcer.Enabled(enums.PayoutChannelStandard))
	_, err = enforcer.Reserve(enums.PayoutChannelStandard, 1_000_000, day)
	require.NoError(t, err, "no policy means uncapped")

	var nilEnforcer *PolicyEnforcer
	release, err := nilEnforcer.Reserve(enums.PayoutChannelInstant, 1, day)
	require.NoError(t, err)
	release()
	assert.True(t, nilEnforcer.Enabled(enums.PayoutChannelInstant))
}

func TestPolicyEnforcerReleaseReturnsAmount(t *testing.T) {
	enforcer := NewPolicyEnforcer([]ChannelPolicy{{Channel: enums.PayoutChannelInstant, Enabled: true, DailyCapCents: 1000}})
	day := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)

	release, err := enforcer.Reserve(enums.PayoutChannelInstant, 1000, day)
	require.NoError(t, err)
	_, err = enforcer.Reserve(enums.PayoutChannelInstant, 1, day)
	require.ErrorIs(t, err, ErrDailyCapExceeded)

	release()
	release()
	assert.Zero(t, enforcer.Spent(enums.PayoutChannelInstant, day), "release is applied once")
	_, err = enforcer.Reserve(enums.PayoutChannelInstant, 1000, day)
	require.NoError(t, err)
}

func TestPolicyEnforcerConcurrentReservationsHonourCap(t *testing.T) {
	enforcer := NewPolicyEnforcer([]ChannelPolicy{{Channel: enums.PayoutChannelInstant, Enabled: true, DailyCapCents: 1000}})
	day := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)

	var (
		wg       sync.WaitGroup
		accepted atomic.Int64
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := enforcer.Reserve(enums.PayoutChannelInstant, 1000, day); err == nil {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), accepted.Load())
	assert.Equal(t, int64(1000), enforcer.Spent(enums.PayoutChannelInstant, day))
}
