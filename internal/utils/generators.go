package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateOrderNumber returns a human-readable order number,
// e.g. ORD-20250115-3F2A.
func GenerateOrderNumber() string {
	datePart := time.Now().Format("20060102")
	randomPart := strings.ToUpper(uuid.NewString()[:4])
	return fmt.Sprintf("ORD-%s-%s", datePart, randomPart)
}

// GenerateRequestID tags a client-originated mutation so the server can
// deduplicate retries.
func GenerateRequestID() string {
	return uuid.NewString()
}
