package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ls1intum/thesis-management-sub000/pkg/logger"
)

// ChatAdapter posts workflow messages to a group chat webhook.
// Each adapter handles the payload format of its platform.
type ChatAdapter interface {
	SendText(ctx context.Context, webhook string, message string) error
}

// getChatAdapter returns the adapter for the configured chat type
func getChatAdapter(chatType string) ChatAdapter {
	switch strings.ToLower(chatType) {
	case "slack":
		return &slackAdapter{}
	case "discord":
		return &discordAdapter{}
	case "teams":
		return &teamsAdapter{}
	case "mattermost", "rocketchat":
		// both accept the Slack-compatible payload
		return &slackAdapter{}
	default:
		return &genericAdapter{}
	}
}

var notificationHTTPClient = &http.Client{Timeout: 10 * time.Second}

func postJSONWithClient(ctx context.Context, client *http.Client, webhookURL string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(respBody))
	}

	logger.Debug().Int("status", resp.StatusCode).Int("bytes", len(body)).Msg("[Chat] webhook delivered")
	return nil
}

// splitMessage splits a long message into chunks, preferring newline boundaries
func splitMessage(msg string, maxLen int) []string {
	if len(msg) <= maxLen {
		return []string{msg}
	}

	var parts []string
	remaining := msg

	for len(remaining) > 0 {
		if len(remaining) <= maxLen {
			parts = append(parts, remaining)
			break
		}

		chunk := remaining[:maxLen]
		breakPoint := maxLen

		for i := len(chunk) - 1; i > maxLen/2; i-- {
			if chunk[i] == '\n' {
				breakPoint = i + 1
				break
			}
		}

		parts = append(parts, remaining[:breakPoint])
		remaining = remaining[breakPoint:]
	}

	return parts
}

// buildChatMessage renders a notification as a short markdown text
func buildChatMessage(n *Notification) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("**%s**", chatHeadline(n.Kind)))
	if n.Title != "" {
		sb.WriteString(": " + n.Title)
	}
	if n.Message != "" {
		message := n.Message
		if len(message) > 500 {
			message = message[:500] + "..."
		}
		sb.WriteString("\n\n" + message)
	}
	return sb.String()
}

func chatHeadline(kind NotificationKind) string {
	if subject, ok := mailSubjects[kind]; ok {
		return subject
	}
	return string(kind)
}

type slackAdapter struct{}

func (a *slackAdapter) SendText(ctx context.Context, webhook, message string) error {
	// Slack uses single asterisks for bold
	message = strings.ReplaceAll(message, "**", "*")
	const maxLen = 3000
	for _, part := range splitMessage(message, maxLen) {
		payload := map[string]interface{}{
			"text": part,
			"blocks": []map[string]interface{}{
				{
					"type": "section",
					"text": map[string]string{
						"type": "mrkdwn",
						"text": part,
					},
				},
			},
		}
		if err := postJSONWithClient(ctx, notificationHTTPClient, webhook, payload); err != nil {
			return err
		}
	}
	return nil
}

type discordAdapter struct{}

func (a *discordAdapter) SendText(ctx context.Context, webhook, message string) error {
	const maxLen = 2000
	for _, part := range splitMessage(message, maxLen) {
		if err := postJSONWithClient(ctx, notificationHTTPClient, webhook, map[string]interface{}{"content": part}); err != nil {
			return err
		}
	}
	return nil
}

type teamsAdapter struct{}

func (a *teamsAdapter) SendText(ctx context.Context, webhook, message string) error {
	payload := map[string]interface{}{
		"type": "message",
		"attachments": []map[string]interface{}{
			{
				"contentType": "application/vnd.microsoft.card.adaptive",
				"content": map[string]interface{}{
					"type":    "AdaptiveCard",
					"$schema": "http://adaptivecards.io/schemas/adaptive-card.json",
					"version": "1.5",
					"body": []map[string]interface{}{
						{
							"type": "TextBlock",
							"text": message,
							"wrap": true,
						},
					},
				},
			},
		},
	}
	return postJSONWithClient(ctx, notificationHTTPClient, webhook, payload)
}

type genericAdapter struct{}

func (a *genericAdapter) SendText(ctx context.Context, webhook, message string) error {
	return postJSONWithClient(ctx, notificationHTTPClient, webhook, map[string]interface{}{"text": message})
}
