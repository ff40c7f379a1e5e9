package middleware

import (
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestLogger logs each request with the acting user, method, path, status
// and duration. The user is whatever the auth middleware stored in the
// context; unauthenticated requests log as "anonymous".
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		user := "anonymous"
		if id, exists := c.Get("user_id"); exists {
			user = fmt.Sprintf("%v", id)
		}

		log.Printf("%s - User: %s - %s %s - %d (%s)",
			start.Format(time.RFC3339),
			user,
			c.Request.Method,
			c.Request.URL.Path,
			c.Writer.Status(),
			time.Since(start))
	}
}
