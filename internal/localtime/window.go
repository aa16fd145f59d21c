// Package localtime converts UTC instants to a user's wall clock using the
// fixed minute offset stored on the profile.
//
// Offsets are not timezone names, so DST transitions are not modelled: a user
// whose zone shifts keeps their stored offset until the client updates it.
package localtime

import "time"

// Default analysis window, inclusive, in local hours.
const (
	DefaultWindowStart = 2
	DefaultWindowEnd   = 5
)

// Local shifts nowUTC by offsetMinutes. The result's UTC clock fields are the
// user's local wall-clock fields.
func Local(nowUTC time.Time, offsetMinutes int) time.Time {
	return nowUTC.UTC().Add(time.Duration(offsetMinutes) * time.Minute)
}

// LocalHour returns the user's local hour of day in [0,23].
func LocalHour(nowUTC time.Time, offsetMinutes int) int {
	return Local(nowUTC, offsetMinutes).Hour()
}

// InWindow reports whether hour lies in [start,end].
func InWindow(hour, start, end int) bool {
	return hour >= start && hour <= end
}

// StartOfUTCDay truncates t to midnight UTC.
func StartOfUTCDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
