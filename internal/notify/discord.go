package notify

import (
	"context"
	"net/http"
)

// discordContentLimit is the webhook message length cap.
const discordContentLimit = 2000

// DiscordSender posts alerts to a Discord webhook.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordSender creates a DiscordSender for webhookURL.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{webhookURL: webhookURL, client: newHTTPClient()}
}

type discordMessage struct {
	Username string `json:"username"`
	Content  string `json:"content"`
}

// Send posts the alert with the title in bold. Discord answers 204.
func (d *DiscordSender) Send(ctx context.Context, title, message string) error {
	content := "**" + title + "**\n" + message
	if len(content) > discordContentLimit {
		content = content[:discordContentLimit]
	}
	return postJSON(ctx, d.client, "discord", d.webhookURL, discordMessage{
		Username: "skull-agent",
		Content:  content,
	})
}

func (d *DiscordSender) Name() string { return "discord" }
