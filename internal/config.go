package internal

import (
	"errors"
	"os"
	"strconv"
)

type Config struct {
	TelegramToken string
	DatabasePath  string
	ErrorsLogPath string

	// Maximum Hamming distance (bits out of 64) at which an incoming
	// image still counts as a duplicate of a stored one.
	SimilarityThreshold int
}

func LoadConfig() (Config, error) {
	cfg := Config{
		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		DatabasePath:  firstNonEmpty(os.Getenv("DATABASE_PATH"), "dupfinder.db"),
		ErrorsLogPath: firstNonEmpty(os.Getenv("ERRORS_LOG_PATH"), "errors.log"),

		SimilarityThreshold: 5,
	}

	// Load SimilarityThreshold from env
	if v := os.Getenv("SIMILARITY_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 && n <= 64 {
			cfg.SimilarityThreshold = n
		}
	}

	if cfg.TelegramToken == "" {
		return cfg, errors.New("TELEGRAM_BOT_TOKEN is required")
	}
	return cfg, nil
}

func firstNonEmpty(v ...string) string {
	for _, s := range v {
		if s != "" {
			return s
		}
	}
	return ""
}
