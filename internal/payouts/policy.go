package payouts

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/angelmondragon/payoutcore-backend/pkg/enums"
)

var (
	// ErrChannelDisabled indicates the policy file switched the channel off.
	ErrChannelDisabled = errors.New("payout channel disabled by policy")
	// ErrDailyCapExceeded indicates that the payout would exceed the channel's daily cap.
	ErrDailyCapExceeded = errors.New("payout channel daily cap exceeded")
)

// ChannelPolicy holds the limits applied to one channel. A zero cap means
// uncapped.
type ChannelPolicy struct {
	Channel       enums.PayoutChannel
	Enabled       bool
	DailyCapCents int64
}

type policyFile struct {
	Channels []policyEntry `yaml:"channels"`
}

type policyEntry struct {
	Channel       string `yaml:"channel"`
	Enabled       *bool  `yaml:"enabled"`
	DailyCapCents int64  `yaml:"daily_cap_cents"`
}

// LoadPolicies reads channel policies from a YAML file. An empty path yields
// no policies.
func LoadPolicies(path string) ([]ChannelPolicy, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open payout policy: %w", err)
	}
	defer file.Close()

	var doc policyFile
	if err := yaml.NewDecoder(file).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode payout policy: %w", err)
	}

	policies := make([]ChannelPolicy, 0, len(doc.Channels))
	seen := make(map[enums.PayoutChannel]struct{}, len(doc.Channels))
	for _, entry := range doc.Channels {
		channel, err := enums.ParsePayoutChannel(strings.ToLower(strings.TrimSpace(entry.Channel)))
		if err != nil {
			return nil, err
		}
		if _, dup := seen[channel]; dup {
			return nil, fmt.Errorf("duplicate policy for channel %s", channel)
		}
		if entry.DailyCapCents < 0 {
			return nil, fmt.Errorf("channel %s daily_cap_cents must be non-negative", channel)
		}
		enabled := true
		if entry.Enabled != nil {
			enabled = *entry.Enabled
		}
		policies = append(policies, ChannelPolicy{
			Channel:       channel,
			Enabled:       enabled,
			DailyCapCents: entry.DailyCapCents,
		})
		seen[channel] = struct{}{}
	}
	return policies, nil
}

// PolicyEnforcer tracks per-channel daily totals against the configured caps.
type PolicyEnforcer struct {
	mu       sync.Mutex
	policies map[enums.PayoutChannel]ChannelPolicy
	totals   map[enums.PayoutChannel]map[string]int64
}

// NewPolicyEnforcer builds an enforcer. Channels without a policy are uncapped.
func NewPolicyEnforcer(policies []ChannelPolicy) *PolicyEnforcer {
	registry := make(map[enums.PayoutChannel]ChannelPolicy, len(policies))
	totals := make(map[enums.PayoutChannel]map[string]int64, len(policies))
	for _, p := range policies {
		registry[p.Channel] = p
		totals[p.Channel] = make(map[string]int64)
	}
	return &PolicyEnforcer{policies: registry, totals: totals}
}

// Reserve counts amountCents against the channel's daily cap and returns a
// release func that gives the amount back when the payout does not go
// through. Check and reservation happen under one lock so concurrent
// cash-outs cannot overshoot the cap.
func (p *PolicyEnforcer) Reserve(channel enums.PayoutChannel, amountCents int64, now time.Time) (func(), error) {
	noop := func() {}
	if p == nil {
		return noop, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	policy, ok := p.policies[channel]
	if !ok {
		return noop, nil
	}
	if !policy.Enabled {
		return noop, ErrChannelDisabled
	}
	if policy.DailyCapCents == 0 {
		return noop, nil
	}

	byDay := p.totals[channel]
	key := dayBucket(now)
	for day := range byDay {
		if day != key {
			delete(byDay, day)
		}
	}
	if byDay[key]+amountCents > policy.DailyCapCents {
		return noop, ErrDailyCapExceeded
	}
	byDay[key] += amountCents

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			if _, ok := byDay[key]; !ok {
				return
			}
			byDay[key] -= amountCents
		})
	}, nil
}

// Spent returns the amount counted against the channel's cap for the day of now.
func (p *PolicyEnforcer) Spent(channel enums.PayoutChannel, now time.Time) int64 {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totals[channel][dayBucket(now)]
}

// Enabled reports whether the policy allows the channel at all.
func (p *PolicyEnforcer) Enabled(channel enums.PayoutChannel) bool {
	if p == nil {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	policy, ok := p.policies[channel]
	return !ok || policy.Enabled
}

func dayBucket(ts time.Time) string {
	return ts.UTC().Format("2006-01-02")
}
