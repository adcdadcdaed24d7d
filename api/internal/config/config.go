package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port             string
	TelegramBotToken string
	WebhookURL       string

	DefaultEngine string // "yandex" | "gemini"
	YCOAuthToken  string
	YCFolderID    string
	GeminiAPIKey  string
	GeminiModel   string

	ProjectTimezone string
	MonthlyOCRCap   int
	FreeMode        bool
	SessionTTLMin   int
}

func mustEnv(k string) string {
	v := os.Getenv(k)
	if v == "" {
		log.Fatalf("missing required env %s", k)
	}
	return v
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getEnvInt(k string, def int) int {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("env %s: expected integer, got %q", k, v)
	}
	return n
}

func getEnvBool(k string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(k)))
	if v == "" {
		return def
	}
	return v == "true" || v == "1" || v == "yes"
}

func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:             getEnv("PORT", "8080"),
		TelegramBotToken: mustEnv("TELEGRAM_BOT_TOKEN"),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),

		DefaultEngine: getEnv("OCR_ENGINE", "yandex"),
		YCOAuthToken:  getEnv("YC_OAUTH_TOKEN", ""),
		YCFolderID:    getEnv("YC_FOLDER_ID", ""),
		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.5-flash"),

		ProjectTimezone: getEnv("PROJECT_TIMEZONE", "Asia/Tokyo"),
		MonthlyOCRCap:   getEnvInt("MONTHLY_OCR_CAP", 1000),
		FreeMode:        getEnvBool("FREE_MODE", true),
		SessionTTLMin:   getEnvInt("SESSION_TTL_MINUTES", 30),
	}
}
