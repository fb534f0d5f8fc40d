package utility

import "time"

// TimeFromBroker prefers the millisecond field and falls back to whole seconds.
func TimeFromBroker(seconds, millis int64) time.Time {
	if millis > 0 {
		return time.UnixMilli(millis).UTC()
	}
	return time.Unix(seconds, 0).UTC()
}
