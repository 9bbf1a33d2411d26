package utils

import (
	"github.com/gin-gonic/gin"
)

// RequestIDKey is the gin context key and response header holding the
// correlation id of a request
const RequestIDKey = "X-Request-ID"

// RequestID returns the correlation id assigned to the request, if any
func RequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}

// JSONResponse sends the success envelope: status, message and data
func JSONResponse(c *gin.Context, status int, data any, message string) {
	c.JSON(status, gin.H{
		"status":  status,
		"message": message,
		"data":    data,
	})
}

// JSONError sends the error envelope. The request id is echoed so a client
// report can be matched to the server log line.
func JSONError(c *gin.Context, status int, err error, message string) {
	body := gin.H{
		"status":  status,
		"message": message,
		"error":   err.Error(),
	}
	if id := RequestID(c); id != "" {
		body["request_id"] = id
	}
	c.JSON(status, body)
}
