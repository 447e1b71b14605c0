// Package notify implements the alert delivery channels. Each channel is
// polymorphic over a single capability: format and send an alert payload,
// reporting success or a failure reason.
package notify

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/simorgh/advanced-logger/config"
	"github.com/simorgh/advanced-logger/models"
)

// Payload is the record snapshot a channel formats into its transport-specific
// message.
type Payload struct {
	Level     models.Level
	Message   string
	Category  string
	Context   models.Context
	Timestamp time.Time
	URL       string
	UserID    *int64
	IPAddress string
}

// Channel is an external delivery mechanism for alert payloads.
type Channel interface {
	Name() string
	Send(ctx context.Context, p Payload) error
}

// Channels builds the enabled channel set from config. Disabled channels are
// skipped silently.
func Channels(cfg config.ChannelsConfig) []Channel {
	var out []Channel
	if cfg.Email.Enabled {
		out = append(out, NewEmailChannel(cfg.Email))
	}
	if cfg.Slack.Enabled {
		out = append(out, NewSlackChannel(cfg.Slack))
	}
	if cfg.Telegram.Enabled {
		out = append(out, NewTelegramChannel(cfg.Telegram))
	}
	return out
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func userIDString(id *int64) string {
	if id == nil {
		return "N/A"
	}
	return strconv.FormatInt(*id, 10)
}

func contextJSON(ctx models.Context) string {
	if len(ctx) == 0 {
		return ""
	}
	data, err := json.MarshalIndent(ctx, "", "  ")
	if err != nil {
		return ""
	}
	return string(data)
}
