package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/simorgh/advanced-logger/config"
)

const telegramAPIBase = "https://api.telegram.org"

// TelegramChannel delivers alerts through the Telegram bot API.
type TelegramChannel struct {
	cfg    config.TelegramConfig
	client *http.Client
}

// NewTelegramChannel creates the channel from config.
func NewTelegramChannel(cfg config.TelegramConfig) *TelegramChannel {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = telegramAPIBase
	}
	return &TelegramChannel{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *TelegramChannel) Name() string { return "telegram" }

// Send posts a Markdown-formatted message with a severity emoji marker.
func (c *TelegramChannel) Send(ctx context.Context, p Payload) error {
	if c.cfg.BotToken == "" || c.cfg.ChatID == "" {
		return fmt.Errorf("telegram channel needs both bot token and chat id")
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "%s *Log Alert: %s*\n\n", p.Level.Emoji(), p.Level)
	fmt.Fprintf(&msg, "*Message:* %s\n", p.Message)
	fmt.Fprintf(&msg, "*Category:* %s\n", orNA(p.Category))
	fmt.Fprintf(&msg, "*Timestamp:* %s\n", p.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&msg, "*URL:* %s\n", orNA(p.URL))
	fmt.Fprintf(&msg, "*User ID:* %s\n", userIDString(p.UserID))
	fmt.Fprintf(&msg, "*IP:* %s\n", orNA(p.IPAddress))
	if ctxJSON := contextJSON(p.Context); ctxJSON != "" {
		fmt.Fprintf(&msg, "\n*Context:*\n```\n%s\n```", ctxJSON)
	}

	body, err := json.Marshal(map[string]string{
		"chat_id":    c.cfg.ChatID,
		"text":       msg.String(),
		"parse_mode": "Markdown",
	})
	if err != nil {
		return fmt.Errorf("encoding telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.cfg.APIBaseURL, c.cfg.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting to telegram: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}
	return nil
}
