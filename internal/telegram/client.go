// Package telegram sends 2D notifications through the Telegram Bot API: newly
// settled session results, the analysis digest that follows them, and feed
// outage and recovery notices. Messages use MarkdownV2 and are delivered with
// linear-backoff retries.
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/twodoracle/internal/analysis"
	"github.com/rewired-gh/twodoracle/internal/models"
)

// digestSize is the number of top candidates listed in an analysis message
const digestSize = 5

// Client handles Telegram notifications
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client against the public Bot API
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	return NewClientWithEndpoint(botToken, chatID, tgbotapi.APIEndpoint, maxRetries, retryDelayBase)
}

// NewClientWithEndpoint creates a Telegram client against a custom Bot API
// endpoint, formatted like tgbotapi.APIEndpoint.
func NewClientWithEndpoint(botToken, chatID, endpoint string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	bot, err := tgbotapi.NewBotAPIWithClient(botToken, endpoint, &http.Client{Timeout: 30 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
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

// SendResult announces a newly settled session result
func (c *Client) SendResult(ctx context.Context, date string, session models.Session, r *models.SessionResult) error {
	return c.send(ctx, formatResult(date, session, r))
}

// SendAnalysis sends the digest of an analysis run
func (c *Client) SendAnalysis(ctx context.Context, out *analysis.Output) error {
	return c.send(ctx, formatAnalysis(out))
}

// SendError reports that monitoring cycles started failing
func (c *Client) SendError(ctx context.Context, cause error) error {
	msg := "⚠️ *2D feed unavailable*\n\n"
	msg += fmt.Sprintf("Error: `%s`\n", escapeCode(cause.Error()))
	msg += "Monitoring continues and a recovery notice follows when the feed is back\\."
	return c.send(ctx, msg)
}

// SendRecovery reports that monitoring recovered after failed cycles
func (c *Client) SendRecovery(ctx context.Context, failedCycles int, downtime time.Duration) error {
	msg := "✅ *2D feed recovered*\n\n"
	msg += fmt.Sprintf("Failed cycles: %d\n", failedCycles)
	msg += fmt.Sprintf("Downtime: %s", escapeMarkdownV2(formatDuration(downtime)))
	return c.send(ctx, msg)
}

// send delivers a MarkdownV2 message with retry
func (c *Client) send(ctx context.Context, text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelayBase * time.Duration(i)):
			}
		}

		if _, err := c.bot.Send(msg); err != nil {
			lastErr = err
			continue
		}
		return nil
	}

	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

func formatResult(date string, session models.Session, r *models.SessionResult) string {
	msg := fmt.Sprintf("🎯 *2D Result %s*\n\n", escapeMarkdownV2(string(session)))
	msg += fmt.Sprintf("📅 %s\n", escapeMarkdownV2(date))
	msg += fmt.Sprintf("Number: *%s*\n", r.TwoD)
	msg += fmt.Sprintf("SET: %s\n", escapeMarkdownV2(r.Set))
	msg += fmt.Sprintf("Value: %s", escapeMarkdownV2(r.Value))
	return msg
}

func formatAnalysis(out *analysis.Output) string {
	var b strings.Builder

	b.WriteString("📊 *2D Pattern Analysis*\n\n")

	prev := string(out.MarketContext.PreviousResult)
	if prev == "" {
		prev = "--"
	}
	fmt.Fprintf(&b, "Previous: *%s*  Power: %s\n\n",
		escapeMarkdownV2(prev), escapeMarkdownV2(strings.Join(out.MarketContext.PowerDigits, ", ")))

	if len(out.TopCandidates) == 0 {
		b.WriteString("No candidates remain after filtering\\.\n\n")
	} else {
		n := min(len(out.TopCandidates), digestSize)
		for i, c := range out.TopCandidates[:n] {
			fmt.Fprintf(&b, "%d\\. *%s*  %d%%  %s  %s\n",
				i+1, c.Number, c.Confidence, escapeMarkdownV2(string(c.Momentum)), escapeMarkdownV2(c.RuleOverlap))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Main: %s\n", joinNumbers(out.FinalSelection.Main))
	fmt.Fprintf(&b, "Support: %s\n", joinNumbers(out.FinalSelection.StrongSupport))
	fmt.Fprintf(&b, "Watch: %s\n\n", joinNumbers(out.FinalSelection.WatchRotation))
	b.WriteString("_Confidence is a heuristic score, not a probability\\._")

	return b.String()
}

func joinNumbers(nums []models.TwoD) string {
	if len(nums) == 0 {
		return "\\-"
	}
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = string(n)
	}
	return strings.Join(parts, ", ")
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}

// escapeCode escapes text placed inside a MarkdownV2 code span
func escapeCode(text string) string {
	r := strings.NewReplacer("\\", "\\\\", "`", "\\`")
	return r.Replace(text)
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if hours := int(d.Hours()); hours >= 1 {
		return fmt.Sprintf("%dh%dm", hours, int(d.Minutes())%60)
	}
	if mins := int(d.Minutes()); mins >= 1 {
		return fmt.Sprintf("%dm", mins)
	}
	return fmt.Sprintf("%ds", int(d.Seconds()))
}
