package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateID returns a new unique identifier string
func GenerateID() string {
	return uuid.New().String()
}

// GenerateOrderNumber returns a human readable order number of the form
// ORD-<unix millis>-<9 uppercase characters>
func GenerateOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:9]
	return fmt.Sprintf("ORD-%d-%s", now.UnixMilli(), suffix)
}
