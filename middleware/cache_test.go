package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func cacheTestRouter(cache *ResponseCache, userID string) (*gin.Engine, *int64) {
	gin.SetMode(gin.TestMode)
	var hits int64

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Next()
	})
	router.GET("/data", cache.Middleware(), func(c *gin.Context) {
		n := atomic.AddInt64(&hits, 1)
		c.JSON(http.StatusOK, gin.H{"success": true, "data": fmt.Sprintf("render %d", n)})
	})
	router.POST("/data", cache.Middleware(), func(c *gin.Context) {
		atomic.AddInt64(&hits, 1)
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
	router.GET("/missing", cache.Middleware(), func(c *gin.Context) {
		atomic.AddInt64(&hits, 1)
		c.JSON(http.StatusNotFound, gin.H{"success": false})
	})

	return router, &hits
}

func doRequest(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestResponseCacheServesStoredCopy(t *testing.T) {
	cache := NewResponseCache(time.Minute)
	router, hits := cacheTestRouter(cache, "user-a")

	first := doRequest(router, http.MethodGet, "/data")
	assert.Equal(t, http.StatusOK, first.Code)

	second := doRequest(router, http.MethodGet, "/data")
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String(), "Second response should be the cached copy")
	assert.Equal(t, int64(1), atomic.LoadInt64(hits), "Handler should run once within the window")
	assert.Equal(t, first.Header().Get("Content-Type"), second.Header().Get("Content-Type"))
}

func TestResponseCacheExpires(t *testing.T) {
	cache := NewResponseCache(50 * time.Millisecond)
	router, hits := cacheTestRouter(cache, "user-a")

	doRequest(router, http.MethodGet, "/data")
	time.Sleep(80 * time.Millisecond)
	doRequest(router, http.MethodGet, "/data")

	assert.Equal(t, int64(2), atomic.LoadInt64(hits), "Handler should run again after expiry")
}

func TestResponseCacheKeyedPerUser(t *testing.T) {
	cache := NewResponseCache(time.Minute)
	routerA, hitsA := cacheTestRouter(cache, "user-a")
	routerB, hitsB := cacheTestRouter(cache, "user-b")

	a := doRequest(routerA, http.MethodGet, "/data")
	b := doRequest(routerB, http.MethodGet, "/data")

	assert.NotEqual(t, a.Body.String(), b.Body.String(), "Users must not share cache entries")
	assert.Equal(t, int64(1), atomic.LoadInt64(hitsA))
	assert.Equal(t, int64(1), atomic.LoadInt64(hitsB))
}

func TestResponseCacheKeyedPerQuery(t *testing.T) {
	cache := NewResponseCache(time.Minute)
	router, hits := cacheTestRouter(cache, "user-a")

	doRequest(router, http.MethodGet, "/data?page=1")
	doRequest(router, http.MethodGet, "/data?page=2")

	assert.Equal(t, int64(2), atomic.LoadInt64(hits), "Different query strings are different entries")
}

func TestResponseCacheSkipsNonGET(t *testing.T) {
	cache := NewResponseCache(time.Minute)
	router, hits := cacheTestRouter(cache, "user-a")

	doRequest(router, http.MethodPost, "/data")
	doRequest(router, http.MethodPost, "/data")

	assert.Equal(t, int64(2), atomic.LoadInt64(hits), "POST requests always reach the handler")
}

func TestResponseCacheSkipsErrorResponses(t *testing.T) {
	cache := NewResponseCache(time.Minute)
	router, hits := cacheTestRouter(cache, "user-a")

	doRequest(router, http.MethodGet, "/missing")
	doRequest(router, http.MethodGet, "/missing")

	assert.Equal(t, int64(2), atomic.LoadInt64(hits), "Non-200 responses are not stored")
}

func TestResponseCacheFlush(t *testing.T) {
	cache := NewResponseCache(time.Minute)
	router, hits := cacheTestRouter(cache, "user-a")

	doRequest(router, http.MethodGet, "/data")
	cache.Flush()
	doRequest(router, http.MethodGet, "/data")

	assert.Equal(t, int64(2), atomic.LoadInt64(hits))
}
