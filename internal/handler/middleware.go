package handler

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	appI18n "github.com/pavelanni/adaptquiz/internal/i18n"
	"github.com/pavelanni/adaptquiz/internal/model"
)

const apiKeyHeader = "X-API-Key"

// keyCache remembers fingerprints of keys that already passed the bcrypt
// check so each request does not pay for a full hash comparison.
type keyCache struct {
	mu sync.RWMutex
	ok map[string]bool
}

func newKeyCache() *keyCache {
	return &keyCache{ok: make(map[string]bool)}
}

func (c *keyCache) verify(hash, key string) (string, bool) {
	sum := sha256.Sum256([]byte(key))
	fp := hex.EncodeToString(sum[:])

	c.mu.RLock()
	known := c.ok[fp]
	c.mu.RUnlock()
	if known {
		return fp[:12], true
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) != nil {
		return "", false
	}
	c.mu.Lock()
	c.ok[fp] = true
	c.mu.Unlock()
	return fp[:12], true
}

// requireAPIKey checks the X-API-Key header against the configured bcrypt
// hash. It is a no-op when no hash is configured.
func (h *Handler) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.config.APIKeyHash == "" {
			next.ServeHTTP(w, r)
			return
		}
		key := r.Header.Get(apiKeyHeader)
		fp, ok := "", false
		if key != "" {
			fp, ok = h.keys.verify(h.config.APIKeyHash, key)
		}
		if !ok {
			writeJSON(w, http.StatusUnauthorized, model.ErrorResponse{
				Error: appI18n.T(r.Context(), "Unauthorized"),
			})
			return
		}
		ctx := model.ContextWithClientID(r.Context(), "key:"+fp)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter is a per-client token bucket. Each client may burst up to max
// requests and then regains one request every window/max.
type rateLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	every     rate.Limit
	burst     int
	retry     time.Duration
	expiry    time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func newRateLimiter(maxRequests int, window time.Duration) *rateLimiter {
	expiry := window * 3
	if expiry < time.Minute {
		expiry = time.Minute
	}
	retry := window / time.Duration(maxRequests)
	return &rateLimiter{
		visitors: make(map[string]*visitor),
		every:    rate.Every(retry),
		burst:    maxRequests,
		retry:    retry,
		expiry:   expiry,
		now:      time.Now,
	}
}

func (rl *rateLimiter) allow(key string) bool {
	now := rl.now()

	rl.mu.Lock()
	if now.Sub(rl.lastSweep) > time.Minute {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) > rl.expiry {
				delete(rl.visitors, k)
			}
		}
		rl.lastSweep = now
	}
	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.every, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	rl.mu.Unlock()

	return v.limiter.AllowN(now, 1)
}

// Middleware rejects clients over their budget with a JSON 429 and tags the
// request context with the client IP.
func (rl *rateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !rl.allow(ip) {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(rl.retry.Seconds()))))
			writeJSON(w, http.StatusTooManyRequests, model.ErrorResponse{
				Error: appI18n.T(r.Context(), "RateLimited"),
			})
			return
		}
		ctx := model.ContextWithClientID(r.Context(), ip)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
