package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/yclw/dus-checkin-bot/internal/config"
	"github.com/yclw/dus-checkin-bot/internal/history"
	"github.com/yclw/dus-checkin-bot/internal/notify"
	"github.com/yclw/dus-checkin-bot/internal/portal"
	"github.com/yclw/dus-checkin-bot/internal/scheduler"
	"github.com/yclw/dus-checkin-bot/internal/settings"
	"github.com/yclw/dus-checkin-bot/internal/telegram"
)

type App struct {
	cfg     config.Config
	log     *zap.Logger
	bot     *tgbotapi.BotAPI
	httpSrv *http.Server
}

func New(cfg config.Config, log *zap.Logger) (*App, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, err
	}
	bot.Debug = false

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}

	return &App{cfg: cfg, log: log, bot: bot, httpSrv: srv}, nil
}

func (a *App) Run(ctx context.Context) error {
	a.log.Info("starting dus-checkin-bot",
		zap.String("portal", a.cfg.PortalBaseURL),
		zap.String("http", a.cfg.HTTPAddr),
	)

	store, err := settings.Open(a.cfg.SettingsPath, a.log)
	if err != nil {
		a.log.Error("open settings failed", zap.Error(err))
		return err
	}

	repo, err := history.OpenSQLite(ctx, a.cfg.DBPath)
	if err != nil {
		a.log.Error("open history db failed", zap.Error(err))
		return err
	}

	client := portal.NewClient(a.cfg.PortalBaseURL, a.log)

	router := telegram.NewRouter(a.bot, a.log, store, client, repo)
	notifier := notify.New(a.log, router)
	sched := scheduler.NewManager(a.log, store, client, notifier, repo)
	router.BindScheduler(sched)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Rehydrate runners for users who had auto check-in enabled.
	restored := 0
	for userID, cfg := range store.Snapshot() {
		if cfg.AutoEnabled {
			sched.Start(ctx, userID)
			restored++
		}
	}
	a.log.Info("schedulers restored", zap.Int("count", restored))

	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server error", zap.Error(err))
		}
	}()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updCh := a.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			a.log.Info("shutdown signal received")
			a.bot.StopReceivingUpdates()

			// Order matters: stop the schedulers (cancellation is a
			// normal outcome), persist settings once more, then
			// release storage and the HTTP server.
			sched.StopAll()
			if err := store.Save(); err != nil {
				a.log.Error("final settings save failed", zap.Error(err))
			}
			if err := repo.Close(); err != nil {
				a.log.Warn("history close failed", zap.Error(err))
			}

			shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := a.httpSrv.Shutdown(shCtx)
			cancel()
			if err != nil {
				a.log.Warn("http server shutdown error", zap.Error(err))
			}
			return nil

		case upd := <-updCh:
			// Handlers may block on portal HTTP calls; keep the
			// update loop free.
			go router.HandleUpdate(ctx, upd)
		}
	}
}
