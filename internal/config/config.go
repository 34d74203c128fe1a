package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	Env           string
	ListenAddr    string
	DatabaseURL   string
	VaultAPIURL   string
	VaultAPIKey   string
	VaultTimeout  int // seconds
	UploadDir     string
	MaxUploadMB   int
	ReportWorkers int
	DiscordToken  string
	DiscordChan   string
	SMTPAddr      string
	SMTPFrom      string
	SupportEmail  string
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var out int
		if _, err := fmt.Sscanf(v, "%d", &out); err == nil {
			return out
		}
	}
	return def
}

func Load() (Config, error) {
	// Pick up a local .env when present; real deployments set env directly.
	godotenv.Load()

	cfg := Config{
		Env:           getenv("APP_ENV", "development"),
		ListenAddr:    getenv("LISTEN_ADDR", ":8080"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		VaultAPIURL:   os.Getenv("VAULT_API_URL"),
		VaultAPIKey:   os.Getenv("VAULT_API_KEY"),
		VaultTimeout:  getenvInt("VAULT_TIMEOUT_SECONDS", 30),
		UploadDir:     getenv("UPLOAD_DIR", "data/uploads"),
		MaxUploadMB:   getenvInt("MAX_UPLOAD_MB", 20),
		ReportWorkers: getenvInt("REPORT_WORKERS", 0),
		DiscordToken:  os.Getenv("DISCORD_BOT_TOKEN"),
		DiscordChan:   os.Getenv("DISCORD_CHANNEL_ID"),
		SMTPAddr:      os.Getenv("SMTP_ADDR"),
		SMTPFrom:      getenv("SMTP_FROM", "no-reply@proofengine.local"),
		SupportEmail:  getenv("SUPPORT_EMAIL", "support@proofengine.local"),
	}
	if cfg.DatabaseURL == "" {
		// Not fatal for early local runs; warn via error value so callers can decide.
		return cfg, fmt.Errorf("DATABASE_URL not set")
	}
	return cfg, nil
}
