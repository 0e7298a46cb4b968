package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	apierrors "agentforge/internal/errors"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/time/rate"
)

// clientIdleTTL is how long an idle client's limiters are remembered. It
// covers the longest window so a returning client cannot reset its quota.
const clientIdleTTL = time.Hour

type clientLimiters struct {
	minute *rate.Limiter
	hour   *rate.Limiter
}

// RateLimiter enforces per-client request quotas per minute and per hour
type RateLimiter struct {
	perMinute int
	perHour   int
	clients   *ttlcache.Cache[string, *clientLimiters]
	logger    *slog.Logger
}

// NewRateLimiter creates a limiter and starts the janitor that evicts idle
// clients. Call Stop to release it.
func NewRateLimiter(perMinute, perHour int, logger *slog.Logger) *RateLimiter {
	clients := ttlcache.New[string, *clientLimiters](
		ttlcache.WithTTL[string, *clientLimiters](clientIdleTTL),
	)
	go clients.Start()

	return &RateLimiter{
		perMinute: perMinute,
		perHour:   perHour,
		clients:   clients,
		logger:    logger,
	}
}

// Stop halts the eviction janitor
func (rl *RateLimiter) Stop() {
	rl.clients.Stop()
}

func (rl *RateLimiter) limitersFor(client string) *clientLimiters {
	item, _ := rl.clients.GetOrSet(client, &clientLimiters{
		minute: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rl.perMinute)), rl.perMinute),
		hour:   rate.NewLimiter(rate.Every(time.Hour/time.Duration(rl.perHour)), rl.perHour),
	})
	return item.Value()
}

// allow consumes one token from both windows. When refused it reports how
// long the client should wait.
func (rl *RateLimiter) allow(client string, now time.Time) (bool, time.Duration) {
	l := rl.limitersFor(client)
	hour := l.hour.ReserveN(now, 1)
	minute := l.minute.ReserveN(now, 1)
	if delay := max(hour.DelayFrom(now), minute.DelayFrom(now)); delay > 0 {
		hour.CancelAt(now)
		minute.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Handler returns the middleware handler
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := clientIP(r)
		ok, wait := rl.allow(client, time.Now())
		if !ok {
			rl.logger.WarnContext(r.Context(), "rate limit exceeded",
				slog.String("client_ip", client),
				slog.String("path", r.URL.Path),
			)
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			apierrors.Write(w, r, apierrors.ErrRateLimitExceeded)
			return
		}
		next.ServeHTTP(w, r)
	})
}
