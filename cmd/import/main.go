package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"dupfinder/internal/corpus"
	"dupfinder/internal/importer"
	"dupfinder/internal/logging"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	var (
		exportPath = flag.String("export", "", "Path to the chat export's result.json")
		chatID     = flag.Int64("chat", 0, "Bot-facing chat id to import into (negative for groups)")
		dbPath     = flag.String("db", envOr("DATABASE_PATH", "dupfinder.db"), "Path to the corpus database")
	)
	flag.Parse()

	if *exportPath == "" || *chatID == 0 {
		fmt.Println("Usage: import -export <result.json> -chat <chat id> [-db <path>]")
		fmt.Println()
		fmt.Println("Options:")
		fmt.Println("  -export    Path to a Telegram chat export's result.json")
		fmt.Println("  -chat      The BOT-facing chat id (may differ from the one in the file)")
		fmt.Println("  -db        Corpus database path (default: DATABASE_PATH or dupfinder.db)")
		os.Exit(1)
	}

	log, err := logging.New("import.log")
	if err != nil {
		fmt.Printf("Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	store, err := corpus.Open(*dbPath)
	if err != nil {
		log.Errorf("open corpus: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	stats, err := importer.Run(context.Background(), store, log, *exportPath, *chatID)
	if err != nil {
		log.Errorf("import failed: %v", err)
		os.Exit(1)
	}

	fmt.Printf("Imported %d fingerprints (%d skipped, %d failed) from %d messages\n",
		stats.Imported, stats.Skipped, stats.Failed, stats.Messages)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
