package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/robfig/cron/v3"
	"github.com/samber/lo"

	"dupfinder/internal"
	"dupfinder/internal/corpus"
	"dupfinder/internal/dedup"
	"dupfinder/internal/fingerprint"
	"dupfinder/internal/logging"
)

// manualQueries are the reply texts that trigger a closest-match lookup
// anchored to the replied-to message.
var manualQueries = []string{"duplicate?", "dup?"}

type TelegramBot struct {
	tg    *tgbotapi.BotAPI
	svc   *dedup.Service
	store *corpus.Store
	cfg   internal.Config
	log   *logging.Logger
}

func NewTelegramBot(cfg internal.Config, svc *dedup.Service, store *corpus.Store, log *logging.Logger) (*TelegramBot, error) {
	if cfg.TelegramToken == "" {
		return nil, errors.New("TELEGRAM_BOT_TOKEN is empty")
	}
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, err
	}
	api.Debug = false
	return &TelegramBot{
		tg:    api,
		svc:   svc,
		store: store,
		cfg:   cfg,
		log:   log,
	}, nil
}

func (b *TelegramBot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.tg.GetUpdatesChan(u)
	b.log.Infof("telegram bot started as @%s (threshold %d bits)", b.tg.Self.UserName, b.cfg.SimilarityThreshold)

	// Nightly database maintenance while the bot long-polls.
	c := cron.New()
	if _, err := c.AddFunc("@daily", func() { b.runMaintenance(ctx) }); err != nil {
		return fmt.Errorf("schedule maintenance: %w", err)
	}
	c.Start()
	defer c.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case upd := <-updates:
			if upd.Message == nil {
				continue
			}
			if upd.Message.IsCommand() {
				b.handleCommand(ctx, upd.Message)
				continue
			}
			b.handleMessage(ctx, upd.Message)
		}
	}
}

func (b *TelegramBot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		b.replyText(chatID, "Hi! I watch this chat for reposted images. Reply \"dup?\" to any image to find its closest match. /help for details.")
	case "help":
		b.cmdHelp(chatID)
	case "stats":
		b.cmdStats(ctx, chatID)
	case "chatid":
		b.replyText(chatID, fmt.Sprintf("chat id: %d (links use %d)", chatID, DisplayChatID(chatID)))
	case "errors":
		b.cmdErrors(chatID)
	default:
		b.replyText(chatID, "Unknown command. Use /help")
	}
}

func (b *TelegramBot) cmdHelp(chatID int64) {
	b.replyText(chatID, strings.Join([]string{
		"I fingerprint every image posted here and reply when one was posted before.",
		"",
		"Reply \"duplicate?\" or \"dup?\" to an image to get its closest match regardless of similarity.",
		"",
		"/stats - stored fingerprints for this chat",
		"/chatid - this chat's id",
		"/errors - last error log lines",
	}, "\n"))
}

func (b *TelegramBot) cmdStats(ctx context.Context, chatID int64) {
	n, err := b.store.Count(ctx, chatID)
	if err != nil {
		b.log.Errorf("stats: %v", err)
		b.replyText(chatID, "Failed to read stats.")
		return
	}
	b.replyText(chatID, fmt.Sprintf("%d image fingerprints stored for this chat.", n))
}

func (b *TelegramBot) cmdErrors(chatID int64) {
	lines, err := TailLastNLines(b.cfg.ErrorsLogPath, 20)
	if err != nil {
		b.replyText(chatID, fmt.Sprintf("Failed to read error log: %v", err))
		return
	}
	if len(lines) == 0 {
		b.replyText(chatID, "No errors logged.")
		return
	}
	b.replyText(chatID, strings.Join(lines, "\n"))
}

func (b *TelegramBot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	query := strings.ToLower(strings.TrimSpace(msg.Text))
	if lo.Contains(manualQueries, query) && msg.ReplyToMessage != nil {
		b.handleManualQuery(ctx, msg)
		return
	}

	data, ok := b.imageBytes(ctx, msg)
	if !ok {
		return
	}

	res, err := b.svc.ClassifyNewImage(ctx, msg.Chat.ID, msg.MessageID, chatTitle(msg.Chat), data)
	if err != nil {
		b.log.Errorf("classify message %d in %d: %v", msg.MessageID, msg.Chat.ID, err)
		return
	}

	switch res.Kind {
	case dedup.KindDuplicate:
		text := fmt.Sprintf("duplicate image (dst %d).\nhttps://t.me/c/%d/%d",
			res.Distance, DisplayChatID(msg.Chat.ID), res.MessageID)
		b.reply(msg.Chat.ID, msg.MessageID, text)
	case dedup.KindNotAnImage:
		b.log.Warnf("undecodable image (msg %d) in %q (%d)", msg.MessageID, chatTitle(msg.Chat), msg.Chat.ID)
	case dedup.KindNew:
		// Stored silently; the service already logged it.
	}
}

// handleManualQuery answers a "dup?" reply with the closest stored match to
// the replied-to message's image, however far away it is. Nothing is ever
// written to the corpus here.
func (b *TelegramBot) handleManualQuery(ctx context.Context, msg *tgbotapi.Message) {
	ref := msg.ReplyToMessage
	data, ok := b.imageBytes(ctx, ref)
	if !ok {
		return
	}

	match, err := b.svc.ClassifyManual(ctx, msg.Chat.ID, ref.MessageID, data)
	if errors.Is(err, fingerprint.ErrUndecodable) {
		b.log.Warnf("undecodable image (msg %d) in %q (%d)", ref.MessageID, chatTitle(msg.Chat), msg.Chat.ID)
		return
	}
	if err != nil {
		b.log.Errorf("manual query for message %d in %d: %v", ref.MessageID, msg.Chat.ID, err)
		return
	}
	if match == nil {
		return
	}

	b.reply(msg.Chat.ID, match.MessageID, fmt.Sprintf("closest match (dst %d).", match.Distance))
}

// imageBytes downloads the image attached to a message, if any. Compressed
// photos use the largest size Telegram offers; documents qualify only with
// an image/* mime type.
func (b *TelegramBot) imageBytes(ctx context.Context, msg *tgbotapi.Message) ([]byte, bool) {
	var fileID string
	switch {
	case len(msg.Photo) > 0:
		// Sizes come smallest first.
		fileID = msg.Photo[len(msg.Photo)-1].FileID
	case msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/"):
		fileID = msg.Document.FileID
	default:
		return nil, false
	}

	file, err := b.tg.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		b.log.Errorf("get file %s: %v", fileID, err)
		return nil, false
	}

	body, err := b.downloadFile(ctx, file.Link(b.cfg.TelegramToken))
	if err != nil {
		b.log.Errorf("download file %s: %v", fileID, err)
		return nil, false
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		b.log.Errorf("read file %s: %v", fileID, err)
		return nil, false
	}
	return data, true
}

func (b *TelegramBot) downloadFile(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}

	response, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}

	if response.StatusCode != http.StatusOK {
		response.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d", response.StatusCode)
	}

	return response.Body, nil
}

func (b *TelegramBot) runMaintenance(ctx context.Context) {
	if err := b.store.Checkpoint(ctx); err != nil {
		b.log.Warnf("maintenance: %v", err)
		return
	}
	n, err := b.store.TotalCount(ctx)
	if err != nil {
		b.log.Warnf("maintenance: %v", err)
		return
	}
	b.log.Infof("maintenance: wal checkpoint done, %d fingerprints stored", n)
}

func (b *TelegramBot) reply(chatID int64, replyTo int, text string) {
	m := tgbotapi.NewMessage(chatID, text)
	m.ReplyToMessageID = replyTo
	if _, err := b.tg.Send(m); err != nil {
		b.log.Errorf("send reply to %d: %v", chatID, err)
	}
}

func (b *TelegramBot) replyText(chatID int64, text string) {
	if _, err := b.tg.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.log.Errorf("send message to %d: %v", chatID, err)
	}
}

func chatTitle(chat *tgbotapi.Chat) string {
	if chat == nil {
		return "<unknown>"
	}
	if chat.Title != "" {
		return chat.Title
	}
	if chat.UserName != "" {
		return chat.UserName
	}
	return "<unknown>"
}
