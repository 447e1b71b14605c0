package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/simorgh/advanced-logger/config"
	"github.com/simorgh/advanced-logger/models"
)

// SlackChannel posts alerts to a Slack incoming webhook.
type SlackChannel struct {
	cfg    config.SlackConfig
	client *http.Client
}

// NewSlackChannel creates the channel from config.
func NewSlackChannel(cfg config.SlackConfig) *SlackChannel {
	if cfg.Channel == "" {
		cfg.Channel = "#alerts"
	}
	return &SlackChannel{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *SlackChannel) Name() string { return "slack" }

// slackMessage is the webhook payload.
type slackMessage struct {
	Channel     string            `json:"channel,omitempty"`
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Fallback string       `json:"fallback"`
	Color    string       `json:"color"`
	Title    string       `json:"title"`
	Text     string       `json:"text"`
	Fields   []slackField `json:"fields,omitempty"`
	Footer   string       `json:"footer,omitempty"`
	TS       int64        `json:"ts,omitempty"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short,omitempty"`
}

// Send posts the alert as a colored attachment.
func (c *SlackChannel) Send(ctx context.Context, p Payload) error {
	if c.cfg.WebhookURL == "" {
		return fmt.Errorf("slack channel has no webhook url")
	}

	attachment := slackAttachment{
		Fallback: fmt.Sprintf("[%s] %s", p.Level, p.Message),
		Color:    slackColor(p.Level),
		Title:    fmt.Sprintf("Log Alert: %s", p.Level),
		Text:     p.Message,
		Footer:   "Advanced Logger",
		TS:       p.Timestamp.Unix(),
		Fields: []slackField{
			{Title: "Category", Value: orNA(p.Category), Short: true},
			{Title: "Timestamp", Value: p.Timestamp.Format("2006-01-02 15:04:05"), Short: true},
			{Title: "URL", Value: orNA(p.URL)},
			{Title: "User ID", Value: userIDString(p.UserID), Short: true},
			{Title: "IP Address", Value: orNA(p.IPAddress), Short: true},
		},
	}
	if ctxJSON := contextJSON(p.Context); ctxJSON != "" {
		attachment.Fields = append(attachment.Fields, slackField{
			Title: "Context",
			Value: "```" + ctxJSON + "```",
		})
	}

	body, err := json.Marshal(slackMessage{
		Channel:     c.cfg.Channel,
		Attachments: []slackAttachment{attachment},
	})
	if err != nil {
		return fmt.Errorf("encoding slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting to slack webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// slackColor maps severities onto the three-tier visual marker.
func slackColor(l models.Level) string {
	switch l {
	case models.LevelEmergency, models.LevelAlert, models.LevelCritical:
		return "danger"
	case models.LevelError, models.LevelWarning:
		return "warning"
	default:
		return "good"
	}
}
