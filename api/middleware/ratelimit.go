package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/angelmondragon/payoutcore-backend/api/responses"
	pkgerrors "github.com/angelmondragon/payoutcore-backend/pkg/errors"
	"github.com/angelmondragon/payoutcore-backend/pkg/logger"
)

const (
	visitorIdleTTL = 5 * time.Minute
	pruneInterval  = time.Minute
)

// WindowStore is the shared counter used when several API instances must
// agree on a limit.
type WindowStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// RateLimitPolicy defines per-client throttling for one route. Forwarding
// headers are only honoured when the peer is one of TrustedProxies.
type RateLimitPolicy struct {
	Name              string
	RequestsPerMinute int
	Burst             int
	TrustedProxies    []*net.IPNet
}

func (p RateLimitPolicy) enabled() bool {
	return p.RequestsPerMinute > 0
}

func (p RateLimitPolicy) normalizedName() string {
	if name := strings.ToLower(strings.TrimSpace(p.Name)); name != "" {
		return name
	}
	return "default"
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client IP and optionally checks a
// Redis fixed window on top.
type RateLimiter struct {
	policy    RateLimitPolicy
	store     WindowStore
	logg      *logger.Logger
	mu        sync.Mutex
	visitors  map[string]*visitor
	lastPrune time.Time
	now       func() time.Time
}

// NewRateLimiter builds a limiter for the policy. store may be nil.
func NewRateLimiter(policy RateLimitPolicy, store WindowStore, logg *logger.Logger) *RateLimiter {
	return &RateLimiter{
		policy:   policy,
		store:    store,
		logg:     logg,
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}
}

// Middleware rejects clients over the limit with RATE_LIMIT_EXCEEDED.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	if l == nil || !l.policy.enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ip := clientIP(r, l.policy.TrustedProxies)

		if !l.obtain(ip).Allow() {
			l.reject(ctx, w, ip, "local")
			return
		}

		if l.store != nil {
			scope := l.policy.normalizedName() + ":" + ip
			allowed, _, err := l.store.FixedWindowAllow(ctx, scope, int64(l.policy.RequestsPerMinute), time.Minute)
			if err != nil {
				// Redis trouble never blocks cash-outs; the local bucket still applies.
				if l.logg != nil {
					l.logg.Error(ctx, "rate limit store unavailable", err)
				}
			} else if !allowed {
				l.reject(ctx, w, ip, "shared")
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func (l *RateLimiter) obtain(id string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.prune(now)
	if v, ok := l.visitors[id]; ok {
		v.lastSeen = now
		return v.limiter
	}
	perSecond := float64(l.policy.RequestsPerMinute) / 60.0
	burst := l.policy.Burst
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)
	l.visitors[id] = &visitor{limiter: limiter, lastSeen: now}
	return limiter
}

// prune drops idle visitors at most once per pruneInterval.
func (l *RateLimiter) prune(now time.Time) {
	if now.Sub(l.lastPrune) < pruneInterval {
		return
	}
	l.lastPrune = now
	for id, v := range l.visitors {
		if now.Sub(v.lastSeen) > visitorIdleTTL {
			delete(l.visitors, id)
		}
	}
}

func (l *RateLimiter) reject(ctx context.Context, w http.ResponseWriter, ip, scope string) {
	if l.logg != nil {
		logCtx := l.logg.WithFields(ctx, map[string]any{
			"policy": l.policy.normalizedName(),
			"scope":  scope,
			"ip":     ip,
			"limit":  l.policy.RequestsPerMinute,
		})
		l.logg.Warn(logCtx, "rate_limit.blocked")
	}
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
}

// ParseTrustedProxies accepts bare IPs and CIDR ranges.
func ParseTrustedProxies(entries []string) ([]*net.IPNet, error) {
	var out []*net.IPNet
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			_, network, err := net.ParseCIDR(entry)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", entry, err)
			}
			out = append(out, network)
			continue
		}
		ip := net.ParseIP(entry)
		if ip == nil {
			return nil, fmt.Errorf("trusted proxy %q is not an IP or CIDR", entry)
		}
		bits := 8 * net.IPv6len
		if v4 := ip.To4(); v4 != nil {
			ip = v4
			bits = 8 * net.IPv4len
		}
		out = append(out, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return out, nil
}

func isTrusted(ip string, trusted []*net.IPNet) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, network := range trusted {
		if network.Contains(parsed) {
			return true
		}
	}
	return false
}

// clientIP returns the peer address unless the peer is a trusted proxy. Then
// X-Forwarded-For is walked from the right and the first hop that is not a
// trusted proxy wins.
func clientIP(r *http.Request, trusted []*net.IPNet) string {
	if r == nil {
		return ""
	}
	peer, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || peer == "" {
		peer = strings.TrimSpace(r.RemoteAddr)
	}
	if !isTrusted(peer, trusted) {
		return peer
	}

	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		hops := strings.Split(header, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" {
				continue
			}
			if !isTrusted(hop, trusted) || i == 0 {
				return hop
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return peer
}
