// Package notify fans a check-in result out to a user's configured chats,
// honoring each chat's verbosity level and addressing mode.
package notify

import (
	"strings"

	"go.uber.org/zap"

	"github.com/yclw/dus-checkin-bot/internal/domain"
)

// Sender delivers messages to a chat target. The Telegram router
// implements this.
type Sender interface {
	Send(target, text string) error
	SendMention(target, userID, text string) error
}

type Notifier struct {
	log    *zap.Logger
	sender Sender
}

func New(log *zap.Logger, sender Sender) *Notifier {
	return &Notifier{log: log, sender: sender}
}

// Notify delivers the result to every configured target whose level asks
// for it. Delivery is best-effort and independent per target: one failed
// send is logged and the rest still go out.
func (n *Notifier) Notify(cfg domain.UserConfig, result domain.CheckinResult, userID string) {
	text := "Auto check-in result: " + result.Message

	for target, level := range cfg.NotifyTargets {
		if level == domain.NotifyNever {
			continue
		}
		if level == domain.NotifyFailureOnly && result.Success {
			continue
		}

		mode, ok := cfg.NotifyAddressing[target]
		if !ok {
			// Record predates addressing tracking; the guess can
			// misclassify unusual target ids, hence the warning.
			mode = InferAddressMode(target)
			n.log.Warn("addressing mode missing, inferred from target id",
				zap.String("target", target),
				zap.String("mode", string(mode)))
		}

		var err error
		if mode == domain.AddressMention {
			err = n.sender.SendMention(target, userID, text)
		} else {
			err = n.sender.Send(target, text)
		}
		if err != nil {
			n.log.Error("notification delivery failed",
				zap.String("target", target),
				zap.Error(err))
			continue
		}
		n.log.Info("notification sent",
			zap.String("target", target),
			zap.String("level", string(level)))
	}
}

// InferAddressMode guesses the addressing mode for targets registered
// before the mode was recorded. Telegram group chat ids are negative.
func InferAddressMode(target string) domain.AddressMode {
	if strings.HasPrefix(target, "-") {
		return domain.AddressMention
	}
	return domain.AddressDirect
}
