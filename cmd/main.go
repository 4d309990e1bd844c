package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"dupfinder/internal"
	"dupfinder/internal/bot"
	"dupfinder/internal/corpus"
	"dupfinder/internal/dedup"
	"dupfinder/internal/logging"
)

func main() {
	// Load .env file if it exists (try multiple paths)
	envPaths := []string{".env", "../.env", "../../.env"}
	for _, path := range envPaths {
		_ = godotenv.Load(path)
	}

	cfg, err := internal.LoadConfig()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.ErrorsLogPath)
	if err != nil {
		panic(err)
	}
	defer log.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stop on SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Infof("shutdown signal received")
		cancel()
	}()

	store, err := corpus.Open(cfg.DatabasePath)
	if err != nil {
		log.Errorf("open corpus: %v", err)
		return
	}
	defer store.Close()
	log.Infof("corpus opened at %s", cfg.DatabasePath)

	svc := dedup.New(store, cfg.SimilarityThreshold, log)

	b, err := bot.NewTelegramBot(cfg, svc, store, log)
	if err != nil {
		log.Errorf("bot init: %v", err)
		return
	}
	if err := b.Run(ctx); err != nil {
		log.Errorf("bot run: %v", err)
		return
	}
}
