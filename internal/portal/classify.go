package portal

import (
	"strings"

	"github.com/yclw/dus-checkin-bot/internal/domain"
)

// responseMarker classifies the free-text submit response by substring.
// Order matters: "签到成功" wins over "已签到" when both appear, which
// preserves the tie-break the portal has always been assumed to have.
type responseMarker struct {
	substr  string
	success bool
	message string
}

var submitMarkers = []responseMarker{
	{"签到成功", true, "Check-in succeeded"},
	{"已签到", true, "Already checked in today"},
	{"签到失败", false, "The portal rejected the check-in"},
	{"距离", false, "Too far from the check-in location"},
	{"不在签到时间", false, "Outside the check-in time window"},
	{"任务不存在", false, "The check-in task does not exist"},
}

const excerptRunes = 120

// Classify maps a submit response body to a structured result. A body
// matching none of the known markers becomes a failure carrying a
// truncated excerpt for diagnosis.
func Classify(body string) domain.CheckinResult {
	for _, m := range submitMarkers {
		if strings.Contains(body, m.substr) {
			return domain.CheckinResult{Success: m.success, Message: m.message}
		}
	}
	return domain.CheckinResult{
		Success: false,
		Message: "Unknown portal response: " + excerpt(body, excerptRunes),
	}
}

func excerpt(s string, n int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
