// Package telegram sends run summaries via the Telegram Bot API.
// It formats the latest Rt estimate of a region into a short MarkdownV2
// message and retries delivery on failure.
package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/rtestimate/internal/models"
)

// trendThreshold is the change in most likely Rt below which the trend is
// reported as flat.
const trendThreshold = 0.005

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

	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
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

// Send posts a summary of the latest estimate for region. estimates must be
// in date order. rev may be nil for the first run of a region.
func (c *Client) Send(region string, estimates []models.Estimate, rev *models.Revision) error {
	if len(estimates) == 0 {
		return fmt.Errorf("no estimates to send for %s", region)
	}
	return c.send(formatMessage(region, estimates, rev))
}

// SendError posts a failure notice for a run that produced no estimates.
func (c *Client) SendError(region string, runErr error) error {
	return c.send(formatError(region, runErr))
}

func (c *Client) send(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2

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

// formatMessage renders the latest estimate, its change from the day before
// and, when significant, the revision against the previous run.
func formatMessage(region string, estimates []models.Estimate, rev *models.Revision) string {
	latest := estimates[len(estimates)-1]

	var b strings.Builder
	fmt.Fprintf(&b, "🦠 *Rt estimate: %s*\n\n", escapeMarkdownV2(region))
	fmt.Fprintf(&b, "📅 %s\n", escapeMarkdownV2(latest.Date.Format(time.DateOnly)))
	fmt.Fprintf(&b, "Rt: *%s* \\[%s – %s\\]\n",
		escapeMarkdownV2(formatRt(latest.MostLikely)),
		escapeMarkdownV2(formatRt(latest.Low)),
		escapeMarkdownV2(formatRt(latest.High)))

	if len(estimates) > 1 {
		prev := estimates[len(estimates)-2]
		delta := latest.MostLikely - prev.MostLikely
		fmt.Fprintf(&b, "%s Trend: %s \\(%s\\)\n",
			trendEmoji(delta),
			escapeMarkdownV2(fmt.Sprintf("%+.2f", delta)),
			escapeMarkdownV2("was "+formatRt(prev.MostLikely)))
	}

	switch models.VerdictOf(latest) {
	case models.VerdictGrowing:
		b.WriteString("⚠️ Epidemic is growing\n")
	case models.VerdictShrinking:
		b.WriteString("✅ Epidemic is shrinking\n")
	}

	if rev != nil && rev.Significant {
		b.WriteString("\n")
		if rev.VerdictChanged() {
			fmt.Fprintf(&b, "🔔 Verdict changed: %s → %s\n", rev.PreviousVerdict, rev.Verdict)
		}
		if rev.Overlap > 0 && rev.MaxShift != 0 {
			fmt.Fprintf(&b, "🔁 Revised by %s on %s since the last run\n",
				escapeMarkdownV2(fmt.Sprintf("%+.2f", rev.MaxShift)),
				escapeMarkdownV2(rev.MaxShiftDate.Format(time.DateOnly)))
		}
	}
	return b.String()
}

func formatError(region string, err error) string {
	return fmt.Sprintf("❌ *Rt estimation failed: %s*\n\n%s\n",
		escapeMarkdownV2(region), escapeMarkdownV2(err.Error()))
}

func trendEmoji(delta float64) string {
	switch {
	case delta >= trendThreshold:
		return "📈"
	case delta <= -trendThreshold:
		return "📉"
	default:
		return "➡️"
	}
}

func formatRt(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	// Characters that need escaping in MarkdownV2:
	// _ * [ ] ( ) ~ ` > # + - = | { } . !
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
