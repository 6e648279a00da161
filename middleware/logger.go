package middleware

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/LovationAdmin/finance-tracker/utils"
)

// RequestLogger logs every request once it has been handled.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		utils.SafeDebug("📨 %s %s from %s", c.Request.Method, c.Request.URL.Path, c.ClientIP())
		c.Next()

		utils.LogAPIRequest(c.Request.Method, c.Request.URL.Path, GetUserID(c), c.Writer.Status(), time.Since(start).String())
		if len(c.Errors) > 0 {
			log.Printf("❌ %s %s: %s", c.Request.Method, c.Request.URL.Path, c.Errors.String())
		}
	}
}
