package scout

import (
	"time"

	"github.com/google/uuid"
)

// NewID generates a globally unique, time-sortable UUIDv7 (RFC 9562).
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NowISO returns the current UTC time as an ISO-8601 string, the timestamp
// format used throughout the session store. The fractional second is fixed
// width so the strings sort chronologically, which the store's ORDER BY
// updated_at depends on.
func NowISO() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000000Z07:00")
}
