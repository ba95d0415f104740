package domain

// NotifyLevel controls whether a check-in result is delivered to a chat.
type NotifyLevel string

const (
	NotifyAlways      NotifyLevel = "always"
	NotifyNever       NotifyLevel = "never"
	NotifyFailureOnly NotifyLevel = "failure_only"
)

// AddressMode controls how a notification addresses the user: plain text
// for one-to-one chats, an explicit mention for group chats.
type AddressMode string

const (
	AddressDirect  AddressMode = "direct"
	AddressMention AddressMode = "mention"
)

// DefaultJitterRadius is the maximum absolute random offset applied to
// each coordinate when no explicit value is configured.
const DefaultJitterRadius = 0.00002

// DefaultAutoTime is the daily check-in time for freshly created records.
const DefaultAutoTime = "08:00"

// UserConfig holds one user's portal credential, location, scheduling and
// notification settings. JSON field names stay compatible with settings
// files written by earlier versions of this bot.
type UserConfig struct {
	Cookie       string  `json:"cookie"`
	Lat          string  `json:"lat"`
	Lng          string  `json:"lng"`
	ClassID      string  `json:"class_id"`
	AutoEnabled  bool    `json:"auto_signin_enabled"`
	AutoTime     string  `json:"auto_signin_time"`
	JitterRadius float64 `json:"offset"`

	// NotifyTargets maps a chat id to the verbosity level for that chat.
	// NotifyAddressing maps the same chat id to the addressing mode
	// recorded when the chat registered itself; entries are added and
	// removed together with NotifyTargets.
	NotifyTargets    map[string]NotifyLevel `json:"notification_targets"`
	NotifyAddressing map[string]AddressMode `json:"notification_addressing"`
}

// NewUserConfig returns a record with defaults for a first-time user.
func NewUserConfig() UserConfig {
	return UserConfig{
		AutoTime:         DefaultAutoTime,
		JitterRadius:     DefaultJitterRadius,
		NotifyTargets:    map[string]NotifyLevel{},
		NotifyAddressing: map[string]AddressMode{},
	}
}

// Clone returns a deep copy; the maps are not shared with the receiver.
func (c UserConfig) Clone() UserConfig {
	out := c
	out.NotifyTargets = make(map[string]NotifyLevel, len(c.NotifyTargets))
	for k, v := range c.NotifyTargets {
		out.NotifyTargets[k] = v
	}
	out.NotifyAddressing = make(map[string]AddressMode, len(c.NotifyAddressing))
	for k, v := range c.NotifyAddressing {
		out.NotifyAddressing[k] = v
	}
	return out
}

// MissingField names the first required portal parameter that is not set,
// or "" when the record is complete enough to attempt a check-in.
func (c UserConfig) MissingField() string {
	switch {
	case c.Cookie == "":
		return "cookie"
	case c.Lat == "":
		return "lat"
	case c.Lng == "":
		return "lng"
	}
	return ""
}

// ParseNotifyLevel validates a user-supplied verbosity level.
func ParseNotifyLevel(s string) (NotifyLevel, bool) {
	switch NotifyLevel(s) {
	case NotifyAlways, NotifyNever, NotifyFailureOnly:
		return NotifyLevel(s), true
	}
	return "", false
}
