// Package telegram provides a client for sending notifications via Telegram
// Bot API. It formats newly detected anomalies into human-readable digests
// and handles delivery with retry logic for reliability.
//
// The client supports MarkdownV2 formatting and includes error handling for
// common Telegram API issues like rate limiting and network failures.
package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/munimap/anomaly-engine/internal/models"
)

// Client handles Telegram notifications
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	chatIDInt, err := parseChatID(chatID)
	if err != nil {
		return nil, err
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

func parseChatID(chatID string) (int64, error) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chat ID: %w", err)
	}
	return id, nil
}

// Send sends a digest of newly created anomalies
func (c *Client) Send(anomalies []models.Anomaly) error {
	if len(anomalies) == 0 {
		return nil
	}
	return c.sendMessage(formatDigest(anomalies))
}

// SendError notifies that a detection run failed
func (c *Client) SendError(err error) error {
	msg := fmt.Sprintf("⚠️ *Anomaly detection run failed*\n\n%s", escapeMarkdownV2(err.Error()))
	return c.sendMessage(msg)
}

// SendRecovery notifies that detection runs recovered after failures
func (c *Client) SendRecovery(failures int) error {
	msg := fmt.Sprintf("✅ *Anomaly detection recovered* after %d failed runs", failures)
	return c.sendMessage(msg)
}

func (c *Client) sendMessage(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}

	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

// formatDigest formats anomalies into a Telegram message
func formatDigest(anomalies []models.Anomaly) string {
	var b strings.Builder
	b.WriteString("🚨 *New anomalies detected*\n\n")

	detected := time.UnixMilli(anomalies[0].FirstDetected).Format("2006-01-02 15:04:05")
	fmt.Fprintf(&b, "📅 Detected: %s\n\n", escapeMarkdownV2(detected))

	for i, a := range anomalies {
		severityEmoji := "🟠"
		if a.Severity == models.SeverityHigh {
			severityEmoji = "🔴"
		}

		fmt.Fprintf(&b, "%d\\. %s %s\n", i+1, severityEmoji, escapeMarkdownV2(a.Title))
		fmt.Fprintf(&b, "   📍 Area: %s \\| Category: %s\n",
			escapeMarkdownV2(a.Area), escapeMarkdownV2(a.Category))

		switch m := a.Metrics.(type) {
		case models.SpikeMetrics:
			fmt.Fprintf(&b, "   📈 Reports: *%d* \\(baseline %s, threshold %s\\)\n",
				m.CurrentReports,
				escapeMarkdownV2(fmt.Sprintf("%.1f", m.BaselineMean)),
				escapeMarkdownV2(fmt.Sprintf("%.0f", m.Threshold)))
		case models.SlowResponseMetrics:
			fmt.Fprintf(&b, "   ⏱ Avg resolution: *%s days* \\(expected %s\\)\n",
				escapeMarkdownV2(fmt.Sprintf("%.1f", m.CurrentAvgDays)),
				escapeMarkdownV2(fmt.Sprintf("%.1f", m.Threshold)))
		}

		fmt.Fprintf(&b, "   🔗 Related reports: %d\n\n", len(a.RelatedReports))
	}

	return b.String()
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
