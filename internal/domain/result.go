package domain

// CheckinResult is the outcome of a single check-in attempt. It is handed
// to the notifier and the history log but never persisted in settings.
type CheckinResult struct {
	Success bool
	Message string
}
