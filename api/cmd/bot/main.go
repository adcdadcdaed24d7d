package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver

	"split-bot/api/internal/config"
	"split-bot/api/internal/dialog"
	"split-bot/api/internal/httpserver"
	"split-bot/api/internal/ocr"
	"split-bot/api/internal/ocr/gemini"
	"split-bot/api/internal/ocr/yandex"
	"split-bot/api/internal/session"
	"split-bot/api/internal/store"
	"split-bot/api/internal/telegram"
	"split-bot/api/internal/usage"
	"split-bot/api/internal/util"
)

func main() {
	cfg := config.Load()

	// --- Postgres ---
	dsn := resolveDSN()
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatalf("sql.Open: %v", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(1 * time.Hour)

	{
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			log.Fatalf("db.Ping: %v", err)
		}
		log.Printf("db connected: %s", safeDSNSummary(dsn))
	}

	ocrRepo := store.NewOCRRepo(db)
	usageRepo := store.NewUsageRepo(db)

	// --- Ядро ---
	sessions := session.NewManager(time.Duration(cfg.SessionTTLMin) * time.Minute)
	tracker := usage.NewTracker(cfg.ProjectTimezone, cfg.MonthlyOCRCap, cfg.FreeMode, usageRepo)

	// --- Telegram bot ---
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		log.Fatal(err)
	}
	bot.Debug = false

	engines := telegram.Engines{}
	if cfg.YCOAuthToken != "" && cfg.YCFolderID != "" {
		engines.Yandex = yandex.New(cfg.YCOAuthToken, cfg.YCFolderID)
	}
	if cfg.GeminiAPIKey != "" {
		engines.Gemini = gemini.New(cfg.GeminiAPIKey, cfg.GeminiModel)
	}

	var def ocr.Engine
	switch cfg.DefaultEngine {
	case "gemini":
		if engines.Gemini != nil {
			def = engines.Gemini
		}
	default:
		if engines.Yandex != nil {
			def = engines.Yandex
		}
	}
	if def == nil {
		// дефолт недоступен — берём любой настроенный
		if engines.Yandex != nil {
			def = engines.Yandex
		} else if engines.Gemini != nil {
			def = engines.Gemini
		} else {
			log.Fatal("no OCR engine configured: set YC_OAUTH_TOKEN/YC_FOLDER_ID or GEMINI_API_KEY")
		}
	}
	manager := ocr.NewManager(def)

	r := &telegram.Router{
		Bot:        bot,
		EngManager: manager,
		Engines:    engines,
		Dialog: &dialog.Controller{
			Sessions: sessions,
			Usage:    tracker,
			Engines:  manager,
			Cache:    ocrRepo,
			CacheAge: 30 * 24 * time.Hour,
		},
	}

	// --- Фоновые задачи ---
	go func() {
		t := time.NewTicker(5 * time.Minute)
		defer t.Stop()
		for range t.C {
			sessions.CleanupExpired()
		}
	}()
	go func() {
		t := time.NewTicker(24 * time.Hour)
		defer t.Stop()
		for range t.C {
			if n, err := ocrRepo.PurgeOlderThan(context.Background(), 90*24*time.Hour); err != nil {
				log.Printf("ocr cache purge: %v", err)
			} else if n > 0 {
				log.Printf("ocr cache purge: %d rows", n)
			}
		}
	}()

	httpserver.RegisterHealthz(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return db.PingContext(ctx)
	})

	addr := "0.0.0.0:" + cfg.Port

	// --- Webhook или polling ---
	if webhookURL := strings.TrimSpace(cfg.WebhookURL); webhookURL != "" {
		startWebhookMode(addr, bot, r, webhookURL)
	} else {
		startPollingMode(addr, bot, r)
	}
}

// ---------------- Modes -----------------

func startWebhookMode(addr string, bot *tgbotapi.BotAPI, r *telegram.Router, baseURL string) {
	// секретный путь вебхука
	path := "/webhook/" + shortHash(bot.Token)
	public := strings.TrimRight(baseURL, "/") + path

	wh, err := tgbotapi.NewWebhook(public)
	if err != nil {
		log.Fatal(err)
	}
	wh.DropPendingUpdates = true
	if _, err := bot.Request(wh); err != nil {
		log.Fatal(err)
	}

	// tgbotapi.ListenForWebhook регистрирует обработчик на DefaultServeMux
	updates := bot.ListenForWebhook(path)

	go func() {
		for upd := range updates {
			r.HandleUpdate(upd)
		}
		log.Printf("webhook updates channel closed")
	}()

	log.Printf("webhook listening on %s%s", addr, path)
	if err := httpserver.Start(addr); err != nil {
		log.Fatal(err)
	}
}

func startPollingMode(addr string, bot *tgbotapi.BotAPI, r *telegram.Router) {
	// healthz живёт и в polling-режиме
	go func() {
		if err := httpserver.Start(addr); err != nil {
			log.Fatal(err)
		}
	}()

	runPolling(context.Background(), bot, r.HandleUpdate)
}

// ---------------- Polling loop -----------------

// retryDelayFromError подбирает паузу перед повторным GetUpdates:
// 429 ждёт столько, сколько просит Telegram, сетевой таймаут чуть дольше базы.
func retryDelayFromError(err error) time.Duration {
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) && tgErr.RetryAfter > 0 {
		return time.Duration(tgErr.RetryAfter) * time.Second
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return 2 * time.Second
	}
	if strings.Contains(strings.ToLower(err.Error()), "too many requests") {
		return 3 * time.Second
	}
	return time.Second
}

func runPolling(ctx context.Context, bot *tgbotapi.BotAPI, handle func(tgbotapi.Update)) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30 // long polling, сек

	for {
		select {
		case <-ctx.Done():
			log.Printf("polling stopped: %v", ctx.Err())
			return
		default:
		}

		updates, err := bot.GetUpdates(u)
		if err != nil {
			d := retryDelayFromError(err)
			log.Printf("polling: %v (retry in %v)", err, d)
			time.Sleep(d)
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= u.Offset {
				u.Offset = upd.UpdateID + 1
			}
			handle(upd)
		}
	}
}

// ---------------- Helpers -----------------

// resolveDSN: DATABASE_URL целиком, иначе собираем из POSTGRES_*/PG*-переменных
// с дефолтами под контейнерный compose.
func resolveDSN() string {
	if dsn := strings.TrimSpace(os.Getenv("DATABASE_URL")); dsn != "" {
		return dsn
	}
	u := url.URL{
		Scheme: "postgres",
		User: url.UserPassword(
			envOr("POSTGRES_USER", "splitbot"),
			os.Getenv("POSTGRES_PASSWORD"),
		),
		Host:     net.JoinHostPort(envOr("PGHOST", "db"), envOr("PGPORT", "5432")),
		Path:     "/" + envOr("POSTGRES_DB", "splitbot"),
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// shortHash — стабильный несекретный суффикс пути вебхука, выведенный из токена.
func shortHash(s string) string {
	return util.SHA256Hex([]byte(s))[:16]
}

// safeDSNSummary — DSN для лога с замазанным паролем.
func safeDSNSummary(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "<unparseable dsn>"
	}
	return u.Redacted()
}
