package postgres

import "time"

// retry_delay_seconds is stored as a plain integer column; JobRun keeps it as
// a time.Duration so callers never juggle units.
func durationToSeconds(d time.Duration) int {
	return int(d / time.Second)
}

func secondsToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}
