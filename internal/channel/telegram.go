package channel

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v3"
)

// TelegramChannel integrates with the Telegram Bot API. The chat id serves
// as the thread identifier. Streamed chunks are rendered by editing a
// placeholder message; edits are rate-limited to stay inside the Bot API's
// per-chat budget.
type TelegramChannel struct {
	mu         sync.Mutex
	token      string
	allowedIDs map[int64]bool
	bot        *tele.Bot
	handler    func(InboundMessage)
	limiter    *rate.Limiter
	running    bool
}

// TelegramConfig holds Telegram-specific configuration.
type TelegramConfig struct {
	Token      string
	AllowedIDs []int64
}

// NewTelegramChannel creates a new Telegram channel.
func NewTelegramChannel(cfg TelegramConfig) *TelegramChannel {
	allowed := make(map[int64]bool, len(cfg.AllowedIDs))
	for _, id := range cfg.AllowedIDs {
		allowed[id] = true
	}
	return &TelegramChannel{
		token:      cfg.Token,
		allowedIDs: allowed,
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

func (t *TelegramChannel) Name() string { return "telegram" }

func (t *TelegramChannel) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return nil
	}

	bot, err := tele.NewBot(tele.Settings{
		Token:  t.token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}

	bot.Handle(tele.OnText, func(c tele.Context) error {
		sender := c.Sender()

		if len(t.allowedIDs) > 0 && !t.allowedIDs[sender.ID] {
			log.Printf("[telegram] unauthorized user: %d (%s)", sender.ID, sender.Username)
			return nil // silently ignore
		}

		t.mu.Lock()
		handler := t.handler
		t.mu.Unlock()

		if handler != nil {
			handler(InboundMessage{
				ChannelName: "telegram",
				SenderID:    strconv.FormatInt(sender.ID, 10),
				SenderName:  strings.TrimSpace(sender.FirstName + " " + sender.LastName),
				ThreadID:    strconv.FormatInt(c.Chat().ID, 10),
				Text:        c.Text(),
				Timestamp:   time.Now(),
			})
		}
		return nil
	})

	t.bot = bot
	t.running = true

	go bot.Start()

	go func() {
		<-ctx.Done()
		bot.Stop()
	}()

	return nil
}

func (t *TelegramChannel) Stop(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.bot != nil {
		t.bot.Stop()
	}
	t.running = false
	return nil
}

func (t *TelegramChannel) Send(_ context.Context, msg OutboundMessage) error {
	recipient, err := t.recipient(msg.ThreadID)
	if err != nil {
		return err
	}
	_, err = t.bot.Send(recipient, msg.Text)
	return err
}

// SendStream posts a placeholder and edits it as chunks accumulate. The
// final edit carries the complete text.
func (t *TelegramChannel) SendStream(ctx context.Context, threadID string, chunks <-chan string) error {
	recipient, err := t.recipient(threadID)
	if err != nil {
		return err
	}

	placeholder, err := t.bot.Send(recipient, "thinking…")
	if err != nil {
		return fmt.Errorf("send placeholder: %w", err)
	}

	var full strings.Builder
	dirty := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk, ok := <-chunks:
			if !ok {
				if full.Len() == 0 {
					return nil
				}
				_, err := t.bot.Edit(placeholder, full.String())
				return err
			}
			full.WriteString(chunk)
			dirty = true

			// Intermediate edits only when the rate budget allows;
			// skipped chunks are folded into the next edit.
			if dirty && t.limiter.Allow() {
				if _, err := t.bot.Edit(placeholder, full.String()); err == nil {
					dirty = false
				}
			}
		}
	}
}

func (t *TelegramChannel) UploadFile(_ context.Context, threadID, path string) error {
	recipient, err := t.recipient(threadID)
	if err != nil {
		return err
	}
	doc := &tele.Document{
		File:     tele.FromDisk(path),
		FileName: filepath.Base(path),
	}
	_, err = t.bot.Send(recipient, doc)
	return err
}

func (t *TelegramChannel) OnMessage(handler func(InboundMessage)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = handler
}

func (t *TelegramChannel) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

func (t *TelegramChannel) recipient(threadID string) (tele.Recipient, error) {
	id, err := strconv.ParseInt(threadID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid telegram thread id %q: %w", threadID, err)
	}
	return tele.ChatID(id), nil
}
