package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/yclw/dus-checkin-bot/internal/domain"
	"github.com/yclw/dus-checkin-bot/internal/history"
	"github.com/yclw/dus-checkin-bot/internal/portal"
	"github.com/yclw/dus-checkin-bot/internal/settings"
)

// Scheduler is the slice of the scheduler manager the command handlers
// need: start or stop a user's auto check-in runner.
type Scheduler interface {
	Start(ctx context.Context, userID string)
	Stop(userID string)
}

// Portal is the portal client surface the handlers call.
type Portal interface {
	ResolveClasses(ctx context.Context, credential string) ([]portal.Class, error)
	PerformCheckin(ctx context.Context, cfg domain.UserConfig) (domain.CheckinResult, string)
}

// botSender is the slice of the bot API the router sends through.
type botSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Router wires Telegram updates to command handlers.
type Router struct {
	bot      botSender
	log      *zap.Logger
	settings *settings.Store
	portal   Portal
	history  history.Repo
	sched    Scheduler
}

// NewRouter creates a new Telegram router. BindScheduler must be called
// before the first update is handled.
func NewRouter(bot *tgbotapi.BotAPI, log *zap.Logger, store *settings.Store, client *portal.Client, repo history.Repo) *Router {
	return &Router{
		bot:      bot,
		log:      log,
		settings: store,
		portal:   client,
		history:  repo,
	}
}

// BindScheduler breaks the construction cycle: the scheduler needs the
// router as notification sender, the router needs the scheduler for the
// auto_enable command.
func (r *Router) BindScheduler(s Scheduler) {
	r.sched = s
}

// HandleUpdate routes a single update to the appropriate handler.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil || msg.From == nil {
		return
	}
	userID := strconv.FormatInt(msg.From.ID, 10)

	switch msg.Command() {
	case "start", "help":
		r.reply(msg.Chat.ID, helpText)
	case "checkin":
		r.handleCheckin(ctx, msg, userID)
	default:
		// Not for us; the hosting chat may carry unrelated traffic.
	}
}

func (r *Router) handleCheckin(ctx context.Context, msg *tgbotapi.Message, userID string) {
	args := strings.Fields(msg.CommandArguments())
	if len(args) == 0 {
		r.reply(msg.Chat.ID, helpText)
		return
	}

	switch args[0] {
	case "set":
		r.handleSet(ctx, msg, userID, args[1:])
	case "now":
		r.handleNow(ctx, msg, userID)
	case "config":
		r.handleConfig(msg, userID)
	case "history":
		r.handleHistory(ctx, msg, userID)
	case "help":
		r.reply(msg.Chat.ID, helpText)
	default:
		r.reply(msg.Chat.ID, "Unknown subcommand. Try /checkin help")
	}
}

// reply sends a plain text answer into the chat the command came from.
func (r *Router) reply(chatID int64, text string) {
	if _, err := r.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		r.log.Error("reply failed", zap.Int64("chat", chatID), zap.Error(err))
	}
}

// Send delivers a plain message to a chat target. Together with
// SendMention this makes Router satisfy notify.Sender.
func (r *Router) Send(target, text string) error {
	chatID, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		return fmt.Errorf("bad chat target %q: %w", target, err)
	}
	_, err = r.bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

// SendMention delivers a message that mentions the user, for group chats.
func (r *Router) SendMention(target, userID, text string) error {
	chatID, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		return fmt.Errorf("bad chat target %q: %w", target, err)
	}
	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("[@%s](tg://user?id=%s) %s", userID, userID, text))
	msg.ParseMode = tgbotapi.ModeMarkdown
	_, err = r.bot.Send(msg)
	return err
}
