// Package dedup decides whether an incoming image is new to a chat or a
// repost of one already stored there.
package dedup

import (
	"context"
	"errors"
	"fmt"

	"dupfinder/internal/corpus"
	"dupfinder/internal/fingerprint"
	"dupfinder/internal/logging"
)

type Kind int

const (
	// KindNew: no stored fingerprint within the threshold; a corpus entry
	// was recorded for this message.
	KindNew Kind = iota
	// KindDuplicate: a stored fingerprint is within the threshold; the
	// corpus was left untouched and keeps only the original.
	KindDuplicate
	// KindNotAnImage: the bytes did not decode as an image.
	KindNotAnImage
)

// Result of classifying a freshly observed image. Distance and MessageID
// are set only for KindDuplicate and point at the original post.
type Result struct {
	Kind      Kind
	Distance  int
	MessageID int
}

type Service struct {
	store     *corpus.Store
	threshold int
	log       *logging.Logger
}

func New(store *corpus.Store, threshold int, log *logging.Logger) *Service {
	return &Service{store: store, threshold: threshold, log: log}
}

// ClassifyNewImage runs the automatic mode: fingerprint the bytes, search
// the chat's corpus under the configured threshold, and either report the
// duplicate or record the image as new. Matching never crosses chats.
func (s *Service) ClassifyNewImage(ctx context.Context, chatID int64, messageID int, chatTitle string, data []byte) (Result, error) {
	fp, err := fingerprint.Extract(data)
	if errors.Is(err, fingerprint.ErrUndecodable) {
		return Result{Kind: KindNotAnImage}, nil
	}
	if err != nil {
		return Result{}, err
	}

	m, err := s.store.FindClosest(ctx, chatID, fp, s.threshold, 0)
	if err != nil {
		return Result{}, fmt.Errorf("find closest: %w", err)
	}
	if m != nil {
		return Result{Kind: KindDuplicate, Distance: m.Distance, MessageID: m.MessageID}, nil
	}

	s.log.Infof("new image in %q (%d), storing hash for message %d", chatTitle, chatID, messageID)
	if err := s.store.Insert(ctx, corpus.Entry{
		ChatID:    chatID,
		MessageID: messageID,
		ChatTitle: chatTitle,
		Hash:      fp,
	}); err != nil {
		return Result{}, err
	}
	return Result{Kind: KindNew}, nil
}

// ClassifyManual runs the manual mode: given the image bytes of an existing
// message, return the closest other entry in the chat regardless of how far
// away it is. The corpus is never mutated. A nil match means the chat holds
// no other fingerprints; ErrUndecodable passes through when the referenced
// message's bytes are not an image.
func (s *Service) ClassifyManual(ctx context.Context, chatID int64, refMessageID int, data []byte) (*corpus.Match, error) {
	fp, err := fingerprint.Extract(data)
	if err != nil {
		return nil, err
	}
	m, err := s.store.FindClosest(ctx, chatID, fp, corpus.MaxDistance, refMessageID)
	if err != nil {
		return nil, fmt.Errorf("find closest: %w", err)
	}
	return m, nil
}
