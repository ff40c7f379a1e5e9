package middleware

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"
)

// cachedResponse is a stored copy of a rendered response.
type cachedResponse struct {
	status      int
	contentType string
	body        []byte
}

// bodyCapture duplicates everything written to the response so a copy can be
// stored in the cache after the handler runs.
type bodyCapture struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *bodyCapture) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyCapture) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// ResponseCache caches rendered GET responses for a fixed window, keyed by
// the acting user plus the full request URL. Writes do not invalidate
// entries; a stale read may be served for up to the TTL. Each process keeps
// its own cache.
type ResponseCache struct {
	store *gocache.Cache
	ttl   time.Duration
}

// NewResponseCache creates a response cache whose entries expire after ttl.
func NewResponseCache(ttl time.Duration) *ResponseCache {
	return &ResponseCache{
		store: gocache.New(ttl, 2*ttl),
		ttl:   ttl,
	}
}

// Middleware serves the stored copy of a response when one exists and
// records fresh 200 responses for the next window. Non-GET requests pass
// through untouched.
func (rc *ResponseCache) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		userID, _ := c.Get("user_id")
		key := fmt.Sprintf("%v|%s?%s", userID, c.Request.URL.Path, c.Request.URL.RawQuery)

		if entry, found := rc.store.Get(key); found {
			cached := entry.(cachedResponse)
			c.Data(cached.status, cached.contentType, cached.body)
			c.Abort()
			return
		}

		capture := &bodyCapture{ResponseWriter: c.Writer}
		c.Writer = capture
		c.Next()

		if capture.Status() == http.StatusOK {
			rc.store.Set(key, cachedResponse{
				status:      capture.Status(),
				contentType: capture.Header().Get("Content-Type"),
				body:        capture.buf.Bytes(),
			}, rc.ttl)
		}
	}
}

// Flush drops every cached entry.
func (rc *ResponseCache) Flush() {
	rc.store.Flush()
}
