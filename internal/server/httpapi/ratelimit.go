package httpapi

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Limiter decides whether one more request for key is allowed.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

// limiterIdle is how long a bucket takes to refill completely. A limiter
// unused for that long is indistinguishable from a new one.
const limiterIdle = time.Minute

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter keeps one token bucket per key in process memory. Idle
// buckets are dropped by Sweep.
type MemoryLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	perMinute int
	now       func() time.Time
}

func NewMemoryLimiter(perMinute int) *MemoryLimiter {
	return &MemoryLimiter{
		limiters:  make(map[string]*limiterEntry),
		perMinute: perMinute,
		now:       time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) bool {
	if l.perMinute <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.limiters[key]
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(rate.Limit(l.perMinute)/60, l.perMinute)}
		l.limiters[key] = e
	}
	e.lastSeen = now
	return e.lim.AllowN(now, 1)
}

// Sweep removes buckets idle for at least a full refill as of now and
// reports how many were removed.
func (l *MemoryLimiter) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-limiterIdle)
	n := 0
	for key, e := range l.limiters {
		if !e.lastSeen.After(cutoff) {
			delete(l.limiters, key)
			n++
		}
	}
	return n
}

// Len reports the number of tracked keys.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

const rateLimitScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
if current > tonumber(ARGV[2]) then
  return 0
end
return 1
`

const rateLimitPrefix = "ratelimit:login:"

// RedisLimiter is a fixed-window counter shared by every server instance
// pointed at the same Redis. It fails open when Redis is unreachable.
type RedisLimiter struct {
	client redis.UniversalClient
	script *redis.Script
	limit  int
	window time.Duration
	logger logging.Logger
}

func NewRedisLimiter(client redis.UniversalClient, perMinute int, logger logging.Logger) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		script: redis.NewScript(rateLimitScript),
		limit:  perMinute,
		window: time.Minute,
		logger: logger.With("module", "ratelimit"),
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) bool {
	if l.limit <= 0 || key == "" {
		return true
	}
	allowed, err := l.script.Run(ctx, l.client, []string{rateLimitPrefix + key}, l.window.Milliseconds(), l.limit).Int64()
	if err != nil {
		l.logger.Warn(ctx, "rate limiter unavailable, allowing request", "error", err)
		return true
	}
	return allowed == 1
}

// TrustedProxies lists the peers allowed to name the client in
// X-Forwarded-For. The zero value trusts nobody.
type TrustedProxies []netip.Prefix

// ParseTrustedProxies parses IPs and CIDRs as accepted by config.ParseProxy.
func ParseTrustedProxies(list []string) (TrustedProxies, error) {
	out := make(TrustedProxies, 0, len(list))
	for _, s := range list {
		p, err := config.ParseProxy(s)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (tp TrustedProxies) trusts(addr netip.Addr) bool {
	for _, p := range tp {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientIP returns the address rate limits are keyed by. X-Forwarded-For is
// read only when the socket peer is trusted; hops are walked from the right
// and the first untrusted one is the client.
func (tp TrustedProxies) ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	peer, err := netip.ParseAddr(host)
	if err != nil {
		return host
	}
	peer = peer.Unmap()
	if !tp.trusts(peer) {
		return peer.String()
	}

	client := peer
	hops := strings.Split(strings.Join(r.Header.Values("X-Forwarded-For"), ","), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		addr, err := netip.ParseAddr(hop)
		if err != nil {
			break
		}
		client = addr.Unmap()
		if !tp.trusts(client) {
			break
		}
	}
	return client.String()
}
