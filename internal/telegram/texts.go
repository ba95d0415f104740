package telegram

// UI texts in English; the portal itself answers in Chinese.
const (
	helpText = "DUS check-in bot usage:\n\n" +
		"🔧 Configuration:\n" +
		"/checkin set cookie <value> — portal login cookie\n" +
		"/checkin set lat <value> — latitude\n" +
		"/checkin set lng <value> — longitude\n" +
		"/checkin set class_id <value> — class id (auto-discovered when empty)\n" +
		"/checkin set offset <value> — GPS jitter radius (default 0.00002)\n" +
		"/checkin set auto_time <HH:MM> — daily check-in time\n" +
		"/checkin set auto_enable <enable/disable> — toggle auto check-in\n" +
		"/checkin set notification <always/never/failure_only> — level for this chat\n" +
		"/checkin set remove_notification — forget this chat\n\n" +
		"📱 Actions:\n" +
		"/checkin now — run one check-in immediately\n" +
		"/checkin config — show current settings\n" +
		"/checkin history — recent attempts\n" +
		"/checkin help — this text\n\n" +
		"💡 Each chat can have its own notification level; private chats\n" +
		"work well with 'always', group chats with 'failure_only'."

	setUsageText = "Available parameters: cookie, lat, lng, class_id, offset, " +
		"auto_time, auto_enable, notification, remove_notification"

	configFmt = "Current check-in configuration:\n" +
		"Cookie: %s\n" +
		"Latitude: %s\n" +
		"Longitude: %s\n" +
		"Class ID: %s\n" +
		"GPS jitter radius: %g\n" +
		"Auto check-in: %s\n" +
		"Check-in time: %s\n" +
		"Notifications:\n%s"
)
