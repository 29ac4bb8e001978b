package tiktok

import (
	"errors"
	"strings"

	"github.com/lib/pq"
)

// isTransientStoreError reports whether a storage failure is worth retrying.
// It covers postgres deadlock and lock-not-available codes plus the message
// signatures sqlite and mysql emit for lock contention.
func isTransientStoreError(err error) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40P01", "55P03", "40001":
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	for _, sig := range []string{
		"database is locked",
		"database table is locked",
		"deadlock",
		"lock wait timeout",
		"busy",
	} {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}
