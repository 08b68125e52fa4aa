// Package telegram connects to the Telegram Bot API using long polling.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/nextlevelbuilder/botgate/internal/bus"
	"github.com/nextlevelbuilder/botgate/internal/channels"
	"github.com/nextlevelbuilder/botgate/internal/config"
)

// Channel connects to Telegram via the Bot API using long polling.
type Channel struct {
	*channels.BaseChannel
	bot        *telego.Bot
	config     config.TelegramConfig
	gate       *channels.DMGate
	limiter    *channels.SenderRateLimiter
	pollCancel context.CancelFunc
	pollDone   chan struct{}
}

// New creates a new Telegram channel from config.
func New(cfg config.TelegramConfig, msgBus *bus.MessageBus, gate *channels.DMGate) (*Channel, error) {
	var opts []telego.BotOption

	if cfg.Proxy != "" {
		proxyURL, parseErr := url.Parse(cfg.Proxy)
		if parseErr != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", cfg.Proxy, parseErr)
		}
		opts = append(opts, telego.WithHTTPClient(&http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyURL(proxyURL),
			},
		}))
	}

	bot, err := telego.NewBot(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	return &Channel{
		BaseChannel: channels.NewBaseChannel("telegram", msgBus),
		bot:         bot,
		config:      cfg,
		gate:        gate,
		limiter:     channels.NewSenderRateLimiter(),
	}, nil
}

// Start begins long polling for Telegram updates.
func (c *Channel) Start(ctx context.Context) error {
	slog.Info("telegram.starting", "mode", "polling")

	pollCtx, cancel := context.WithCancel(ctx)
	c.pollCancel = cancel
	c.pollDone = make(chan struct{})

	updates, err := c.bot.UpdatesViaLongPolling(pollCtx, &telego.GetUpdatesParams{
		Timeout:        30,
		AllowedUpdates: []string{"message"},
	})
	if err != nil {
		cancel()
		return fmt.Errorf("start long polling: %w", err)
	}

	c.SetRunning(true)
	slog.Info("telegram.connected", "username", c.bot.Username())

	go func() {
		defer close(c.pollDone)
		for {
			select {
			case <-pollCtx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					slog.Info("telegram.updates_closed")
					return
				}
				if update.Message != nil {
					c.handleMessage(pollCtx, update.Message)
				}
			}
		}
	}()

	return nil
}

// Stop shuts down the Telegram bot by cancelling the long polling context
// and waiting for the polling goroutine to exit.
func (c *Channel) Stop(_ context.Context) error {
	slog.Info("telegram.stopping")
	c.SetRunning(false)

	if c.pollCancel != nil {
		c.pollCancel()
	}

	// Wait for the polling goroutine to fully exit so Telegram releases the
	// getUpdates lock before a new instance starts.
	if c.pollDone != nil {
		select {
		case <-c.pollDone:
			slog.Info("telegram.stopped")
		case <-time.After(10 * time.Second):
			slog.Warn("telegram.poll_shutdown_timeout")
		}
	}
	return nil
}

// Send delivers an outbound message to a Telegram chat.
func (c *Channel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("telegram bot not running")
	}

	chatID, err := parseChatID(msg.ChatID)
	if err != nil {
		return fmt.Errorf("invalid telegram chat ID %q: %w", msg.ChatID, err)
	}

	if _, err := c.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), msg.Content)); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

func (c *Channel) handleMessage(ctx context.Context, message *telego.Message) {
	if message.From == nil {
		return
	}

	senderID := strconv.FormatInt(message.From.ID, 10)
	senderName := message.From.Username
	if senderName == "" {
		senderName = message.From.FirstName
	}
	chatID := strconv.FormatInt(message.Chat.ID, 10)
	isDM := message.Chat.Type == telego.ChatTypePrivate

	if !c.limiter.Allow(senderID) {
		slog.Debug("telegram.rate_limited", "sender_id", senderID)
		return
	}

	if isDM {
		allowed, reply := c.gate.Admit(c.Name(), senderID, senderName)
		if !allowed {
			if reply != "" {
				if _, err := c.bot.SendMessage(ctx, tu.Message(tu.ID(message.Chat.ID), reply)); err != nil {
					slog.Warn("telegram.pairing_reply_failed", "sender_id", senderID, "error", err)
				}
			}
			return
		}
	}

	content := message.Text
	if content == "" && message.Caption != "" {
		content = message.Caption
	}
	if content == "" {
		return
	}

	slog.Debug("telegram.message_received",
		"sender_id", senderID,
		"chat_id", chatID,
		"is_dm", isDM,
		"preview", channels.Truncate(content, 50),
	)

	peerKind := "group"
	if isDM {
		peerKind = "direct"
	}

	c.HandleMessage(senderID, senderName, chatID, content, map[string]string{
		"message_id": strconv.Itoa(message.MessageID),
	}, peerKind)
}

// parseChatID converts a string chat ID to int64.
func parseChatID(chatIDStr string) (int64, error) {
	return strconv.ParseInt(chatIDStr, 10, 64)
}
