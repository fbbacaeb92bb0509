package middleware

import "github.com/gin-gonic/gin"

// NoStore keeps responses carrying health information out of browser and
// proxy caches.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store, private")
		c.Header("Pragma", "no-cache")
		c.Header("Vary", "Authorization")
		c.Next()
	}
}
