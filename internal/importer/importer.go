// Package importer feeds a Telegram chat-export JSON file through the
// fingerprint extractor and into the corpus, so duplicate detection starts
// with the chat's history instead of an empty slate. No classification
// happens here: every decodable photo is stored.
package importer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"

	"dupfinder/internal/corpus"
	"dupfinder/internal/fingerprint"
	"dupfinder/internal/logging"
)

// progressEvery controls how often a progress line is logged.
const progressEvery = 500

// Stats summarizes one import run.
type Stats struct {
	Messages int // messages in the export
	Imported int // fingerprints written
	Skipped  int // non-photo or non-message entries
	Failed   int // unreadable or undecodable photo files
}

// Run parses the export's result.json and stores one fingerprint per photo
// message under chatID (the BOT-facing chat id, which may differ from the
// id inside the export). Photo paths are resolved relative to the export
// file. Files that cannot be read or decoded are skipped silently, matching
// how exports reference thumbnails that were never downloaded; a corpus
// failure aborts the run.
func Run(ctx context.Context, store *corpus.Store, log *logging.Logger, exportPath string, chatID int64) (Stats, error) {
	data, err := os.ReadFile(exportPath)
	if err != nil {
		return Stats{}, fmt.Errorf("read export: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return Stats{}, errors.New("export is not valid JSON")
	}

	chatName := gjson.GetBytes(data, "name").String()
	baseDir := filepath.Dir(exportPath)
	messages := gjson.GetBytes(data, "messages")

	stats := Stats{Messages: int(messages.Get("#").Int())}
	log.Infof("import: %q, %d messages", chatName, stats.Messages)

	var insertErr error
	messages.ForEach(func(_, msg gjson.Result) bool {
		if processed := stats.Imported + stats.Skipped + stats.Failed; processed > 0 && processed%progressEvery == 0 {
			log.Infof("import: %d/%d messages processed", processed, stats.Messages)
		}

		if msg.Get("type").String() != "message" {
			stats.Skipped++
			return true
		}
		photo := msg.Get("photo").String()
		if photo == "" {
			stats.Skipped++
			return true
		}

		raw, err := os.ReadFile(filepath.Join(baseDir, photo))
		if err != nil {
			stats.Failed++
			return true
		}
		fp, err := fingerprint.Extract(raw)
		if err != nil {
			stats.Failed++
			return true
		}

		insertErr = store.Insert(ctx, corpus.Entry{
			ChatID:    chatID,
			MessageID: int(msg.Get("id").Int()),
			ChatTitle: chatName,
			Hash:      fp,
		})
		if insertErr != nil {
			return false
		}
		stats.Imported++
		return true
	})
	if insertErr != nil {
		return stats, fmt.Errorf("import into chat %d: %w", chatID, insertErr)
	}

	log.Infof("import: done, %d fingerprints stored (%d skipped, %d failed)", stats.Imported, stats.Skipped, stats.Failed)
	return stats, nil
}
