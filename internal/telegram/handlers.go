package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/yclw/dus-checkin-bot/internal/domain"
	"github.com/yclw/dus-checkin-bot/internal/history"
	"github.com/yclw/dus-checkin-bot/internal/portal"
)

// chatTarget returns the opaque notification target id for the chat a
// command came from, plus the addressing mode for that kind of chat.
func chatTarget(msg *tgbotapi.Message) (string, domain.AddressMode) {
	target := strconv.FormatInt(msg.Chat.ID, 10)
	if msg.Chat.IsGroup() || msg.Chat.IsSuperGroup() {
		return target, domain.AddressMention
	}
	return target, domain.AddressDirect
}

func chatKind(mode domain.AddressMode) string {
	if mode == domain.AddressMention {
		return "group"
	}
	return "private"
}

func (r *Router) handleSet(ctx context.Context, msg *tgbotapi.Message, userID string, args []string) {
	if len(args) == 0 {
		r.reply(msg.Chat.ID, setUsageText)
		return
	}
	param := strings.ToLower(args[0])
	value := strings.Join(args[1:], " ")

	if value == "" && param != "remove_notification" {
		r.reply(msg.Chat.ID, "Missing value. "+setUsageText)
		return
	}

	switch param {
	case "cookie":
		r.update(msg.Chat.ID, userID, "Cookie saved.", func(c *domain.UserConfig) {
			c.Cookie = value
		})

	case "lat":
		r.update(msg.Chat.ID, userID, "Latitude set to: "+value, func(c *domain.UserConfig) {
			c.Lat = value
		})

	case "lng":
		r.update(msg.Chat.ID, userID, "Longitude set to: "+value, func(c *domain.UserConfig) {
			c.Lng = value
		})

	case "class_id":
		r.update(msg.Chat.ID, userID, "Class ID set to: "+value, func(c *domain.UserConfig) {
			c.ClassID = value
		})

	case "offset":
		radius, err := domain.ParseJitterRadius(value)
		if err != nil {
			r.reply(msg.Chat.ID, capitalize(err.Error()))
			return
		}
		r.update(msg.Chat.ID, userID, fmt.Sprintf("GPS jitter radius set to: %g", radius), func(c *domain.UserConfig) {
			c.JitterRadius = radius
		})

	case "auto_time":
		if _, _, err := domain.ParseAutoTime(value); err != nil {
			r.reply(msg.Chat.ID, "Time format error, please use HH:MM, e.g. 08:30")
			return
		}
		cfg, err := r.settings.Update(userID, func(c *domain.UserConfig) {
			c.AutoTime = value
		})
		if err != nil {
			r.saveError(msg.Chat.ID, userID, err)
			return
		}
		// Restart the runner so the new time applies without waiting
		// for the previously computed fire.
		if cfg.AutoEnabled {
			r.sched.Start(ctx, userID)
		}
		r.reply(msg.Chat.ID, "Auto check-in time set to: "+value)

	case "auto_enable":
		enabled, err := domain.ParseEnabled(value)
		if err != nil {
			r.reply(msg.Chat.ID, "Please use: enable/disable or true/false")
			return
		}
		if _, err := r.settings.Update(userID, func(c *domain.UserConfig) {
			c.AutoEnabled = enabled
		}); err != nil {
			r.saveError(msg.Chat.ID, userID, err)
			return
		}
		if enabled {
			r.sched.Start(ctx, userID)
			r.reply(msg.Chat.ID, "Auto check-in enabled")
		} else {
			r.sched.Stop(userID)
			r.reply(msg.Chat.ID, "Auto check-in disabled")
		}

	case "notification":
		level, ok := domain.ParseNotifyLevel(value)
		if !ok {
			r.reply(msg.Chat.ID, "Notification level can only be: always/never/failure_only")
			return
		}
		target, mode := chatTarget(msg)
		if _, err := r.settings.Update(userID, func(c *domain.UserConfig) {
			c.NotifyTargets[target] = level
			c.NotifyAddressing[target] = mode
		}); err != nil {
			r.saveError(msg.Chat.ID, userID, err)
			return
		}
		r.reply(msg.Chat.ID, fmt.Sprintf("Notification level set to '%s' for current %s chat", level, chatKind(mode)))

	case "remove_notification":
		target, mode := chatTarget(msg)
		had := false
		if _, err := r.settings.Update(userID, func(c *domain.UserConfig) {
			_, had = c.NotifyTargets[target]
			delete(c.NotifyTargets, target)
			delete(c.NotifyAddressing, target)
		}); err != nil {
			r.saveError(msg.Chat.ID, userID, err)
			return
		}
		if had {
			r.reply(msg.Chat.ID, fmt.Sprintf("Notification settings removed for current %s chat", chatKind(mode)))
		} else {
			r.reply(msg.Chat.ID, "No notification settings for current chat")
		}

	default:
		r.reply(msg.Chat.ID, setUsageText)
	}
}

// update is the common mutate-persist-reply path for simple parameters.
func (r *Router) update(chatID int64, userID, confirmation string, fn func(*domain.UserConfig)) {
	if _, err := r.settings.Update(userID, fn); err != nil {
		r.saveError(chatID, userID, err)
		return
	}
	r.reply(chatID, confirmation)
}

func (r *Router) saveError(chatID int64, userID string, err error) {
	r.log.Error("saving settings failed", zap.String("user", userID), zap.Error(err))
	r.reply(chatID, "Could not save settings, please try again later.")
}

func (r *Router) handleNow(ctx context.Context, msg *tgbotapi.Message, userID string) {
	cfg := r.settings.Get(userID)
	if missing := cfg.MissingField(); missing != "" {
		r.reply(msg.Chat.ID, fmt.Sprintf("Please set %s first: /checkin set %s <value>", missing, missing))
		return
	}

	if cfg.ClassID == "" {
		classes, err := r.portal.ResolveClasses(ctx, cfg.Cookie)
		switch {
		case errors.Is(err, portal.ErrCredentialExpired):
			r.reply(msg.Chat.ID, "Portal session expired, please refresh your cookie")
			return
		case errors.Is(err, portal.ErrNoClass):
			r.reply(msg.Chat.ID, "No classes found on the portal home page")
			return
		case err != nil:
			r.reply(msg.Chat.ID, "Error getting class list: "+err.Error())
			return
		}

		if len(classes) > 1 {
			// Interactive flow: surface the list and let the user
			// choose explicitly instead of silently picking one.
			r.reply(msg.Chat.ID, formatClassList(classes))
			return
		}
		if _, err := r.settings.Update(userID, func(c *domain.UserConfig) {
			c.ClassID = classes[0].ID
		}); err != nil {
			r.saveError(msg.Chat.ID, userID, err)
			return
		}
		cfg.ClassID = classes[0].ID
	}

	r.reply(msg.Chat.ID, "Running check-in…")
	result, resolvedClass := r.portal.PerformCheckin(ctx, cfg)

	if resolvedClass != "" {
		if _, err := r.settings.Update(userID, func(c *domain.UserConfig) {
			c.ClassID = resolvedClass
		}); err != nil {
			r.log.Error("caching class id failed", zap.String("user", userID), zap.Error(err))
		}
	}
	if err := r.history.Record(ctx, userID, result, history.SourceManual); err != nil {
		r.log.Error("recording attempt failed", zap.String("user", userID), zap.Error(err))
	}

	if result.Success {
		r.reply(msg.Chat.ID, "✅ "+result.Message)
	} else {
		r.reply(msg.Chat.ID, "❌ "+result.Message)
	}
}

func formatClassList(classes []portal.Class) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d classes:\n", len(classes))
	for i, cl := range classes {
		name := cl.Name
		if name == "" {
			name = "Unknown class"
		}
		fmt.Fprintf(&b, "%d. %s (ID: %s)\n", i+1, name, cl.ID)
	}
	b.WriteString("\nPlease choose one with /checkin set class_id <id>")
	return b.String()
}

func (r *Router) handleConfig(msg *tgbotapi.Message, userID string) {
	cfg := r.settings.Get(userID)

	cookie := "Not set"
	if cfg.Cookie != "" {
		cookie = "Set"
	}
	enabled := "Disabled"
	if cfg.AutoEnabled {
		enabled = "Enabled"
	}

	var notifications strings.Builder
	if len(cfg.NotifyTargets) == 0 {
		notifications.WriteString("  Not set")
	} else {
		first := true
		for target, level := range cfg.NotifyTargets {
			if !first {
				notifications.WriteString("\n")
			}
			first = false
			mode, ok := cfg.NotifyAddressing[target]
			if !ok {
				mode = "inferred"
			}
			fmt.Fprintf(&notifications, "  %s: %s (%s)", target, level, mode)
		}
	}

	r.reply(msg.Chat.ID, fmt.Sprintf(configFmt,
		cookie,
		orNotSet(cfg.Lat),
		orNotSet(cfg.Lng),
		orNotSet(cfg.ClassID),
		cfg.JitterRadius,
		enabled,
		cfg.AutoTime,
		notifications.String(),
	))
}

func orNotSet(s string) string {
	if s == "" {
		return "Not set"
	}
	return s
}

func (r *Router) handleHistory(ctx context.Context, msg *tgbotapi.Message, userID string) {
	entries, err := r.history.Recent(ctx, userID, 10)
	if err != nil {
		r.log.Error("reading history failed", zap.String("user", userID), zap.Error(err))
		r.reply(msg.Chat.ID, "Could not read check-in history.")
		return
	}
	if len(entries) == 0 {
		r.reply(msg.Chat.ID, "No check-in attempts recorded yet.")
		return
	}

	var b strings.Builder
	b.WriteString("Recent check-in attempts:\n")
	for _, e := range entries {
		icon := "✅"
		if !e.Success {
			icon = "❌"
		}
		fmt.Fprintf(&b, "%s %s [%s] %s\n",
			icon, e.CreatedAt.Format("2006-01-02 15:04"), e.Source, e.Message)
	}
	r.reply(msg.Chat.ID, b.String())
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
