package notifications

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/azure/community-signals-bot/internal/config"
	"github.com/azure/community-signals-bot/internal/models"
	"github.com/dustin/go-humanize"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

const (
	// Posts listed in chat channels
	chatInsightLimit = 5
	// Posts listed in email
	emailInsightLimit = 10
	// Characters of body text shown per post
	excerptLength = 200
)

// Service handles sending notifications via various channels
type Service struct {
	config   *config.Config
	client   *resty.Client
	telegram TelegramSender
	dialer   *gomail.Dialer
}

// Ensure Service implements NotificationInterface
var _ NotificationInterface = (*Service)(nil)

// TeamsMessage represents a Microsoft Teams message
type TeamsMessage struct {
	Type     string         `json:"@type"`
	Context  string         `json:"@context"`
	Title    string         `json:"title"`
	Text     string         `json:"text"`
	Sections []TeamsSection `json:"sections,omitempty"`
}

type TeamsSection struct {
	ActivityTitle    string      `json:"activityTitle,omitempty"`
	ActivitySubtitle string      `json:"activitySubtitle,omitempty"`
	ActivityText     string      `json:"activityText,omitempty"`
	Facts            []TeamsFact `json:"facts,omitempty"`
	Markdown         bool        `json:"markdown,omitempty"`
}

type TeamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewService creates a new notification service. A Telegram client is only
// created when a token is configured.
func NewService(cfg *config.Config) *Service {
	s := &Service{
		config: cfg,
		client: resty.New().SetTimeout(30 * time.Second),
	}

	if cfg.NotificationEmail != "" {
		s.dialer = gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
	}

	if cfg.TelegramToken != "" {
		api, err := newTelegramAPI(cfg.TelegramToken)
		if err != nil {
			logrus.Errorf("Failed to initialize Telegram bot: %v", err)
		} else {
			s.telegram = api
		}
	}

	return s
}

// SendReport sends a report via configured notification channels
func (s *Service) SendReport(ctx context.Context, report *models.Report) error {
	var errors []string

	if s.config.TeamsWebhookURL != "" {
		if err := s.postToTeams(ctx, s.buildTeamsMessage(report)); err != nil {
			logrus.Errorf("Failed to send Teams notification: %v", err)
			errors = append(errors, fmt.Sprintf("Teams: %v", err))
		} else {
			logrus.Info("Successfully sent report to Teams")
		}
	}

	if s.config.NotificationEmail != "" {
		if err := s.sendReportEmail(report); err != nil {
			logrus.Errorf("Failed to send email notification: %v", err)
			errors = append(errors, fmt.Sprintf("Email: %v", err))
		} else {
			logrus.Info("Successfully sent report via email")
		}
	}

	if s.config.TelegramToken != "" {
		if err := s.sendTelegram(buildTelegramReport(report)); err != nil {
			logrus.Errorf("Failed to send Telegram notification: %v", err)
			errors = append(errors, fmt.Sprintf("Telegram: %v", err))
		} else {
			logrus.Info("Successfully sent report to Telegram")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

// SendAlert sends a hot post alert via configured notification channels
func (s *Service) SendAlert(ctx context.Context, alert *models.Alert) error {
	var errors []string

	if s.config.TeamsWebhookURL != "" {
		if err := s.postToTeams(ctx, s.buildTeamsAlert(alert)); err != nil {
			logrus.Errorf("Failed to send Teams alert: %v", err)
			errors = append(errors, fmt.Sprintf("Teams: %v", err))
		}
	}

	if s.config.NotificationEmail != "" {
		if err := s.sendAlertEmail(alert); err != nil {
			logrus.Errorf("Failed to send email alert: %v", err)
			errors = append(errors, fmt.Sprintf("Email: %v", err))
		}
	}

	if s.config.TelegramToken != "" {
		if err := s.sendTelegram(buildTelegramAlert(alert)); err != nil {
			logrus.Errorf("Failed to send Telegram alert: %v", err)
			errors = append(errors, fmt.Sprintf("Telegram: %v", err))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("alert errors: %s", strings.Join(errors, "; "))
	}

	logrus.Infof("Alert sent: %s - %s", alert.Type, alert.Title)
	return nil
}

func (s *Service) postToTeams(ctx context.Context, message *TeamsMessage) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(message).
		Post(s.config.TeamsWebhookURL)

	if err != nil {
		return fmt.Errorf("failed to send Teams message: %w", err)
	}

	if resp.StatusCode() != 200 {
		return fmt.Errorf("Teams webhook returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	return nil
}

func (s *Service) buildTeamsMessage(report *models.Report) *TeamsMessage {
	message := &TeamsMessage{
		Type:    "MessageCard",
		Context: "https://schema.org/extensions",
		Title:   fmt.Sprintf("Community Signals Report - %s", capitalize(report.Period)),
		Text: fmt.Sprintf("Analyzed %s posts from %d communities",
			humanize.Comma(int64(report.TotalPosts)), report.Summary.Communities),
	}

	facts := []TeamsFact{
		{Name: "Total Posts", Value: humanize.Comma(int64(report.TotalPosts))},
		{Name: "Generated", Value: report.GeneratedAt.UTC().Format("2006-01-02 15:04:05 UTC")},
	}
	for _, b := range models.AllBuckets() {
		facts = append(facts, TeamsFact{
			Name:  fmt.Sprintf("%s Signals", capitalize(string(b))),
			Value: fmt.Sprintf("%d", report.Summary.Signals.Get(b)),
		})
	}
	if report.Summary.LatestWeek != "" {
		facts = append(facts, TeamsFact{Name: "Latest Week", Value: report.Summary.LatestWeek})
	}
	if len(report.Summary.Rising) > 0 {
		facts = append(facts, TeamsFact{Name: "Rising", Value: joinBuckets(report.Summary.Rising)})
	}
	if len(report.Summary.Declining) > 0 {
		facts = append(facts, TeamsFact{Name: "Declining", Value: joinBuckets(report.Summary.Declining)})
	}
	if failed := failedCommunities(report); len(failed) > 0 {
		facts = append(facts, TeamsFact{Name: "Failed Communities", Value: strings.Join(failed, ", ")})
	}

	message.Sections = append(message.Sections, TeamsSection{
		ActivityTitle: "Summary",
		Facts:         facts,
		Markdown:      true,
	})

	if len(report.TopInsights) > 0 {
		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle: "Top Insights",
			ActivityText:  strings.Join(teamsPostLines(report.TopInsights, chatInsightLimit), "\n\n"),
			Markdown:      true,
		})
	}

	if len(report.Summary.TopPhrases) > 0 {
		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle: "Recurring Phrases",
			ActivityText:  strings.Join(report.Summary.TopPhrases, ", "),
			Markdown:      true,
		})
	}

	return message
}

func (s *Service) buildTeamsAlert(alert *models.Alert) *TeamsMessage {
	return &TeamsMessage{
		Type:    "MessageCard",
		Context: "https://schema.org/extensions",
		Title:   alert.Title,
		Text:    alert.Message,
		Sections: []TeamsSection{{
			ActivityTitle: "Posts",
			ActivityText:  strings.Join(teamsPostLines(alert.Posts, chatInsightLimit), "\n\n"),
			Markdown:      true,
		}},
	}
}

func teamsPostLines(posts []models.ScoredPost, limit int) []string {
	if len(posts) < limit {
		limit = len(posts)
	}

	lines := make([]string, 0, limit)
	for _, p := range posts[:limit] {
		lines = append(lines, fmt.Sprintf("**[%s](%s)** - r/%s | priority %d | %s | %s",
			p.Title, p.Permalink, p.Community, p.InsightPriority, p.Topic, p.Intent))
	}
	return lines
}

func (s *Service) sendReportEmail(report *models.Report) error {
	subject := fmt.Sprintf("Community Signals Report - %s (%s posts)",
		capitalize(report.Period), humanize.Comma(int64(report.TotalPosts)))

	htmlBody, err := buildEmailHTML(report)
	if err != nil {
		return fmt.Errorf("failed to build email HTML: %w", err)
	}

	return s.sendEmail(subject, buildEmailText(report), htmlBody)
}

func (s *Service) sendAlertEmail(alert *models.Alert) error {
	var text strings.Builder
	text.WriteString(alert.Message + "\n")
	writePostList(&text, alert.Posts, emailInsightLimit)
	return s.sendEmail(alert.Title, text.String(), "")
}

func (s *Service) sendEmail(subject, textBody, htmlBody string) error {
	if s.dialer == nil {
		return fmt.Errorf("email is not configured")
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.config.SMTPUsername)
	m.SetHeader("To", s.config.NotificationEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", textBody)
	if htmlBody != "" {
		m.AddAlternative("text/html", htmlBody)
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

const emailTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Community Signals Report</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        .header { background-color: #0078d4; color: white; padding: 20px; border-radius: 5px; }
        .summary { background-color: #f5f5f5; padding: 15px; margin: 20px 0; border-radius: 5px; }
        .post { border-left: 4px solid #0078d4; padding: 10px; margin: 10px 0; background-color: #fafafa; }
        .post-title { font-weight: bold; margin-bottom: 5px; }
        .post-meta { color: #666; font-size: 0.9em; }
        .opportunity { color: #107c10; }
    </style>
</head>
<body>
    <div class="header">
        <h1>Community Signals Report</h1>
        <p>{{.Period | title}} report generated on {{.GeneratedAt.Format "January 2, 2006 at 3:04 PM UTC"}}</p>
    </div>

    <div class="summary">
        <h2>Summary</h2>
        <p><strong>Total Posts:</strong> {{.TotalPosts | comma}} from {{.Summary.Communities}} communities</p>
        <p><strong>Pain:</strong> {{.Summary.Signals.Pain}} | <strong>Demand:</strong> {{.Summary.Signals.Demand}} | <strong>Cost:</strong> {{.Summary.Signals.Cost}} | <strong>Confusion:</strong> {{.Summary.Signals.Confusion}} | <strong>Sentiment:</strong> {{.Summary.Signals.Sentiment}}</p>
        {{if .Summary.LatestWeek}}<p><strong>Latest week:</strong> {{.Summary.LatestWeek}}</p>{{end}}
        {{if .Summary.Rising}}<p><strong>Rising:</strong> {{range $i, $b := .Summary.Rising}}{{if $i}}, {{end}}{{$b}}{{end}}</p>{{end}}
        {{if .Summary.TopPhrases}}<p><strong>Recurring phrases:</strong> {{range $i, $p := .Summary.TopPhrases}}{{if $i}}, {{end}}{{$p}}{{end}}</p>{{end}}
    </div>

    {{if .TopInsights}}
    <h2>Top Insights</h2>
    {{range $index, $post := .TopInsights}}
        {{if lt $index 10}}
        <div class="post">
            <div class="post-title">
                <a href="{{$post.Permalink}}" target="_blank">{{$post.Title}}</a>
            </div>
            <div class="post-meta">
                r/{{$post.Community}} | priority {{$post.InsightPriority}} | {{$post.Topic}} | {{$post.Intent}} | score {{$post.Score}}
            </div>
            <p class="opportunity">{{$post.Opportunity}}</p>
            {{if $post.Body}}<p>{{$post.Body | truncate}}</p>{{end}}
        </div>
        {{end}}
    {{end}}
    {{end}}

    <hr>
    <p><small>This report was generated automatically by the Community Signals Bot.</small></p>
</body>
</html>
`

func buildEmailHTML(report *models.Report) (string, error) {
	t := template.New("email").Funcs(template.FuncMap{
		"title":    capitalize,
		"truncate": truncate,
		"comma": func(n int) string {
			return humanize.Comma(int64(n))
		},
	})

	t, err := t.Parse(emailTemplate)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, report); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func buildEmailText(report *models.Report) string {
	var text strings.Builder

	text.WriteString(fmt.Sprintf("Community Signals Report - %s\n", capitalize(report.Period)))
	text.WriteString(fmt.Sprintf("Generated: %s\n\n", report.GeneratedAt.UTC().Format("2006-01-02 15:04:05 UTC")))

	text.WriteString("SUMMARY\n")
	text.WriteString("=======\n")
	text.WriteString(fmt.Sprintf("Total Posts: %s\n", humanize.Comma(int64(report.TotalPosts))))
	text.WriteString(fmt.Sprintf("Communities: %d\n", report.Summary.Communities))
	for _, b := range models.AllBuckets() {
		text.WriteString(fmt.Sprintf("%s Signals: %d\n", capitalize(string(b)), report.Summary.Signals.Get(b)))
	}
	if report.Summary.LatestWeek != "" {
		text.WriteString(fmt.Sprintf("Latest Week: %s\n", report.Summary.LatestWeek))
	}
	if len(report.Summary.Rising) > 0 {
		text.WriteString(fmt.Sprintf("Rising: %s\n", joinBuckets(report.Summary.Rising)))
	}
	if len(report.Summary.Declining) > 0 {
		text.WriteString(fmt.Sprintf("Declining: %s\n", joinBuckets(report.Summary.Declining)))
	}
	if failed := failedCommunities(report); len(failed) > 0 {
		text.WriteString(fmt.Sprintf("Failed Communities: %s\n", strings.Join(failed, ", ")))
	}

	if len(report.Summary.TopPhrases) > 0 {
		text.WriteString("\nRECURRING PHRASES\n")
		text.WriteString("=================\n")
		text.WriteString(strings.Join(report.Summary.TopPhrases, ", ") + "\n")
	}

	if len(report.TopInsights) > 0 {
		text.WriteString("\nTOP INSIGHTS\n")
		text.WriteString("============\n")
		writePostList(&text, report.TopInsights, emailInsightLimit)
	}

	text.WriteString("\n---\nThis report was generated automatically by the Community Signals Bot.\n")

	return text.String()
}

func writePostList(text *strings.Builder, posts []models.ScoredPost, limit int) {
	if len(posts) < limit {
		limit = len(posts)
	}

	for i, p := range posts[:limit] {
		text.WriteString(fmt.Sprintf("\n%d. %s\n", i+1, p.Title))
		text.WriteString(fmt.Sprintf("   r/%s | Priority: %d | Topic: %s | Intent: %s | Posted %s\n",
			p.Community, p.InsightPriority, p.Topic, p.Intent, humanize.Time(p.CreatedAt)))
		text.WriteString(fmt.Sprintf("   Opportunity: %s\n", p.Opportunity))
		text.WriteString(fmt.Sprintf("   URL: %s\n", p.Permalink))
		if p.Body != "" {
			text.WriteString(fmt.Sprintf("   Content: %s\n", truncate(p.Body)))
		}
	}
}

func failedCommunities(report *models.Report) []string {
	var failed []string
	for _, r := range report.Fetch {
		if !r.OK() || r.Reason != "" {
			failed = append(failed, r.Community)
		}
	}
	return failed
}

func joinBuckets(buckets []models.Bucket) string {
	names := make([]string, 0, len(buckets))
	for _, b := range buckets {
		names = append(names, string(b))
	}
	return strings.Join(names, ", ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func truncate(s string) string {
	runes := []rune(s)
	if len(runes) <= excerptLength {
		return s
	}
	return string(runes[:excerptLength]) + "..."
}
