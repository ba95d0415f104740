package domain

import "time"

// NextRun returns the next wall-clock occurrence of the configured HH:MM:
// today if that moment is still in the future, otherwise tomorrow at the
// same time. The returned time is in now's location.
func NextRun(now time.Time, autoTime string) (time.Time, error) {
	hour, minute, err := ParseAutoTime(autoTime)
	if err != nil {
		return time.Time{}, err
	}
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next, nil
}
