package server

import (
	"auction-engine/utils"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestIDHeader carries the correlation id of a request
const RequestIDHeader = utils.RequestIDKey

// RequestIDMiddleware reuses the caller's request id or assigns a new one
func RequestIDMiddleware(c *gin.Context) {
	id := c.GetHeader(RequestIDHeader)
	if id == "" {
		id = utils.GenerateID()
	}
	c.Set(RequestIDHeader, id)
	c.Header(RequestIDHeader, id)
	c.Next()
}

// RequestLoggerMiddleware logs incoming requests with timing
func RequestLoggerMiddleware(c *gin.Context) {
	start := time.Now()

	c.Next() // process request

	fields := map[string]any{
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"status":     c.Writer.Status(),
		"latency":    time.Since(start).String(),
		"request_id": utils.RequestID(c),
	}
	if len(c.Errors) > 0 {
		fields["errors"] = c.Errors.String()
	}
	utils.Info("HTTP Request", fields)
}
