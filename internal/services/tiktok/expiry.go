package tiktok

import "time"

const (
	oneYearSeconds     = int64(365 * 24 * 60 * 60)
	expiryFallback     = 24 * time.Hour
	expiryFutureWindow = 2 * 365 * 24 * time.Hour
)

// calculateExpiry turns the provider's expires_in field into an absolute
// expiry. The provider usually sends seconds-until-expiry but sometimes an
// absolute UNIX timestamp in the same field. Values above one year of
// seconds are treated as timestamps; a timestamp that is already past or
// more than two years out is discarded in favor of a 1-day default.
// The second return is true when the fallback was applied.
func calculateExpiry(now time.Time, expiresIn int64) (time.Time, bool) {
	if expiresIn > oneYearSeconds {
		ts := time.Unix(expiresIn, 0)
		if ts.Before(now) || ts.After(now.Add(expiryFutureWindow)) {
			return now.Add(expiryFallback), true
		}
		return ts, false
	}
	return now.Add(time.Duration(expiresIn) * time.Second), false
}
