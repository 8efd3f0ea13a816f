package daemon

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/battos/battdiag/pkg/apikey"
	"github.com/battos/battdiag/pkg/events"
)

const (
	apiKeyHeader   = "X-API-Key"
	adminKeyHeader = "X-Admin-Key"

	// ctxAPIKey is the gin context key holding the authenticated API key.
	ctxAPIKey = "apiKey"
)

// cors answers preflight requests and sets the allow headers for the
// configured origins. "*" allows every origin.
func cors(origins func() []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			allowed := origins()
			if slices.Contains(allowed, "*") || slices.Contains(allowed, origin) {
				h := c.Writer.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Add("Vary", "Origin")
			}
		}

		if c.Request.Method == http.MethodOptions && c.GetHeader("Access-Control-Request-Method") != "" {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", strings.Join([]string{"Content-Type", apiKeyHeader, adminKeyHeader}, ", "))
			h.Set("Access-Control-Max-Age", "600")
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

type keyBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// keyLimiter rate limits requests per API key. A zero rate disables it.
type keyLimiter struct {
	mu      sync.Mutex
	buckets map[string]*keyBucket
	rps     rate.Limit
	burst   int
}

const (
	maxBuckets = 10_000
	bucketTTL  = 10 * time.Minute
)

func newKeyLimiter(rps float64, burst int) *keyLimiter {
	l := &keyLimiter{}
	l.setLimit(rps, burst)
	return l
}

// setLimit replaces the limit and forgets every bucket.
func (l *keyLimiter) setLimit(rps float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rps = rate.Limit(rps)
	l.burst = max(1, burst)
	l.buckets = make(map[string]*keyBucket)
}

func (l *keyLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.rps <= 0 {
		return true
	}

	now := time.Now()
	b, ok := l.buckets[key]
	if !ok {
		b = &keyBucket{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now

	if len(l.buckets) > maxBuckets {
		for k, v := range l.buckets {
			if v.lastSeen.Before(now.Add(-bucketTTL)) {
				delete(l.buckets, k)
			}
		}
	}

	return b.limiter.AllowN(now, 1)
}

// requireAPIKey authenticates the caller and counts one use of its key.
func (s *Server) requireAPIKey(c *gin.Context) {
	key, ok := s.authenticate(c)
	if !ok {
		return
	}

	if !s.limiter.allow(key) {
		s.metrics.IncAuthRejection("rate_limited")
		abortWithStatus(c, http.StatusTooManyRequests, "Rate limit exceeded")
		return
	}

	usage, err := s.keys.Use(key)
	if err != nil {
		s.rejectKey(c, key, err)
		return
	}
	if limit := s.keys.MaxUsage(); limit > 0 && usage == limit {
		s.hub.PublishTo(key, events.KeyExhausted, events.KeyEvent{
			Key:   apikey.Mask(key),
			Usage: usage,
			Limit: limit,
			Ts:    time.Now().Unix(),
		})
	}

	c.Set(ctxAPIKey, key)
	c.Next()
}

// authenticate checks the API key header without counting a use. On failure
// it aborts the request and returns false.
func (s *Server) authenticate(c *gin.Context) (string, bool) {
	key := strings.TrimSpace(c.GetHeader(apiKeyHeader))
	if key == "" {
		s.metrics.IncAuthRejection("missing")
		status := http.StatusUnprocessableEntity
		if s.conf.StrictAuth() {
			status = http.StatusUnauthorized
		}
		abortWithStatus(c, status, "API key is required")
		return "", false
	}

	if err := s.keys.Check(key); err != nil {
		s.rejectKey(c, key, err)
		return "", false
	}
	return key, true
}

func (s *Server) rejectKey(c *gin.Context, key string, err error) {
	switch {
	case errors.Is(err, apikey.ErrUsageExceeded):
		s.metrics.IncAuthRejection("exhausted")
		abortWithStatus(c, http.StatusTooManyRequests, "API key usage limit exceeded")
	case errors.Is(err, apikey.ErrUnknownKey):
		s.metrics.IncAuthRejection("unknown")
		abortWithStatus(c, http.StatusUnauthorized, "Invalid API key")
	default:
		logrus.WithError(err).WithField("key", apikey.Mask(key)).Error("unexpected API key error")
		_ = c.Error(err)
		abortWithStatus(c, http.StatusInternalServerError, "Internal server error")
	}
}

// isAdmin reports whether the request carries the configured admin key.
func (s *Server) isAdmin(c *gin.Context) bool {
	want := s.conf.AdminKey()
	got := c.GetHeader(adminKeyHeader)
	return want != "" && got != "" && subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}

func (s *Server) requireAdmin(c *gin.Context) {
	if s.conf.AdminKey() == "" {
		abortWithStatus(c, http.StatusForbidden, "Admin API is disabled")
		return
	}
	if !s.isAdmin(c) {
		s.metrics.IncAuthRejection("admin")
		abortWithStatus(c, http.StatusUnauthorized, "Invalid admin key")
		return
	}
	c.Next()
}
