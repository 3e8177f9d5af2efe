package notifications

import (
	"fmt"
	"html"
	"strings"

	"github.com/azure/community-signals-bot/internal/models"
	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramSender is the subset of tgbotapi.BotAPI used for notifications
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

func newTelegramAPI(token string) (TelegramSender, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return api, nil
}

func (s *Service) sendTelegram(htmlText string) error {
	if s.telegram == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}

	msg := tgbotapi.NewMessage(s.config.TelegramChatID, htmlText)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := s.telegram.Send(msg); err != nil {
		return fmt.Errorf("failed to send Telegram message: %w", err)
	}
	return nil
}

func buildTelegramReport(report *models.Report) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("📊 <b>Community Signals Report - %s</b>\n", html.EscapeString(capitalize(report.Period))))
	b.WriteString(fmt.Sprintf("%s posts from %d communities\n\n",
		humanize.Comma(int64(report.TotalPosts)), report.Summary.Communities))

	signals := make([]string, 0, len(models.AllBuckets()))
	for _, bucket := range models.AllBuckets() {
		signals = append(signals, fmt.Sprintf("%s %d", bucket, report.Summary.Signals.Get(bucket)))
	}
	b.WriteString(strings.Join(signals, " | ") + "\n")

	if len(report.Summary.Rising) > 0 {
		b.WriteString(fmt.Sprintf("📈 Rising in %s: %s\n", report.Summary.LatestWeek, joinBuckets(report.Summary.Rising)))
	}
	if len(report.Summary.Declining) > 0 {
		b.WriteString(fmt.Sprintf("📉 Declining in %s: %s\n", report.Summary.LatestWeek, joinBuckets(report.Summary.Declining)))
	}

	writeTelegramPosts(&b, report.TopInsights)
	return b.String()
}

func buildTelegramAlert(alert *models.Alert) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🔥 <b>%s</b>\n%s\n", html.EscapeString(alert.Title), html.EscapeString(alert.Message)))
	writeTelegramPosts(&b, alert.Posts)
	return b.String()
}

func writeTelegramPosts(b *strings.Builder, posts []models.ScoredPost) {
	limit := chatInsightLimit
	if len(posts) < limit {
		limit = len(posts)
	}

	for i, p := range posts[:limit] {
		b.WriteString(fmt.Sprintf("\n%d. <a href=\"%s\">%s</a>\n", i+1, html.EscapeString(p.Permalink), html.EscapeString(p.Title)))
		b.WriteString(fmt.Sprintf("r/%s | priority %d | %s | %s\n",
			html.EscapeString(p.Community), p.InsightPriority, html.EscapeString(p.Topic), p.Intent))
	}
}
