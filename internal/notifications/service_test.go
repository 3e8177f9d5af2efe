package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/azure/community-signals-bot/internal/config"
	"github.com/azure/community-signals-bot/internal/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockTelegram struct {
	mock.Mock
}

func (m *mockTelegram) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return args.Get(0).(tgbotapi.Message), args.Error(1)
}

func sampleReport() *models.Report {
	return &models.Report{
		ID:          "report-1",
		GeneratedAt: time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC),
		Period:      "weekly",
		TotalPosts:  1234,
		Summary: models.Summary{
			Signals:     models.BucketCounts{Pain: 10, Demand: 4, Cost: 3},
			LatestWeek:  "2024-W10",
			Rising:      []models.Bucket{models.BucketPain},
			TopPhrases:  []string{"rate limiting", "vector database"},
			Communities: 2,
		},
		TopInsights: []models.ScoredPost{
			{
				RawPost: models.RawPost{
					Title:     "Is there a tool for <RAG>?",
					Body:      strings.Repeat("x", 300),
					Community: "SaaS",
					Permalink: "https://reddit.com/r/SaaS/comments/a/x/",
					CreatedAt: time.Now().Add(-2 * time.Hour),
				},
				InsightPriority: 5,
				Topic:           "rag",
				Intent:          "question",
				Opportunity:     "RAG tooling",
			},
		},
		Fetch: []models.CommunityResult{
			{Community: "SaaS", Fetched: 100, Kept: 100},
			{Community: "private", Err: errors.New("status 403"), Reason: "status 403"},
		},
	}
}

func TestBuildTeamsMessage(t *testing.T) {
	s := NewService(&config.Config{})
	message := s.buildTeamsMessage(sampleReport())

	assert.Equal(t, "MessageCard", message.Type)
	assert.Equal(t, "Community Signals Report - Weekly", message.Title)
	assert.Equal(t, "Analyzed 1,234 posts from 2 communities", message.Text)
	require.Len(t, message.Sections, 3)

	facts := make(map[string]string)
	for _, f := range message.Sections[0].Facts {
		facts[f.Name] = f.Value
	}
	assert.Equal(t, "1,234", facts["Total Posts"])
	assert.Equal(t, "10", facts["Pain Signals"])
	assert.Equal(t, "0", facts["Sentiment Signals"])
	assert.Equal(t, "pain", facts["Rising"])
	assert.Equal(t, "private", facts["Failed Communities"])
	assert.NotContains(t, facts, "Declining")

	assert.Contains(t, message.Sections[1].ActivityText, "r/SaaS | priority 5 | rag | question")
	assert.Equal(t, "rate limiting, vector database", message.Sections[2].ActivityText)
}

func TestSendReport_Teams(t *testing.T) {
	var received TeamsMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	s := NewService(&config.Config{TeamsWebhookURL: server.URL})
	require.NoError(t, s.SendReport(context.Background(), sampleReport()))
	assert.Equal(t, "Community Signals Report - Weekly", received.Title)
}

func TestSendReport_TeamsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	s := NewService(&config.Config{TeamsWebhookURL: server.URL})
	err := s.SendReport(context.Background(), sampleReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Teams")
	assert.Contains(t, err.Error(), "400")
}

func TestSendReport_NoChannels(t *testing.T) {
	s := NewService(&config.Config{})
	assert.NoError(t, s.SendReport(context.Background(), sampleReport()))
	assert.NoError(t, s.SendAlert(context.Background(), &models.Alert{Type: "hot", Title: "t"}))
}

func TestSendReport_Telegram(t *testing.T) {
	telegram := &mockTelegram{}
	telegram.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		return ok &&
			msg.ChatID == -100 &&
			msg.ParseMode == tgbotapi.ModeHTML &&
			strings.Contains(msg.Text, "Community Signals Report - Weekly") &&
			strings.Contains(msg.Text, "Is there a tool for &lt;RAG&gt;?")
	})).Return(tgbotapi.Message{MessageID: 1}, nil).Once()

	s := &Service{config: &config.Config{TelegramToken: "token", TelegramChatID: -100}, telegram: telegram}
	require.NoError(t, s.SendReport(context.Background(), sampleReport()))
	telegram.AssertExpectations(t)
}

func TestSendReport_TelegramNotInitialized(t *testing.T) {
	s := &Service{config: &config.Config{TelegramToken: "token", TelegramChatID: -100}}
	err := s.SendReport(context.Background(), sampleReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Telegram")
}

func TestSendAlert_Telegram(t *testing.T) {
	telegram := &mockTelegram{}
	telegram.On("Send", mock.Anything).Return(tgbotapi.Message{}, errors.New("chat not found")).Once()

	s := &Service{config: &config.Config{TelegramToken: "token", TelegramChatID: 1}, telegram: telegram}
	err := s.SendAlert(context.Background(), &models.Alert{
		Type:  "hot",
		Title: "2 hot posts",
		Posts: sampleReport().TopInsights,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestBuildEmailText(t *testing.T) {
	text := buildEmailText(sampleReport())

	assert.Contains(t, text, "Community Signals Report - Weekly")
	assert.Contains(t, text, "Total Posts: 1,234")
	assert.Contains(t, text, "Pain Signals: 10")
	assert.Contains(t, text, "Rising: pain")
	assert.Contains(t, text, "Failed Communities: private")
	assert.Contains(t, text, "rate limiting, vector database")
	assert.Contains(t, text, "1. Is there a tool for <RAG>?")
	assert.Contains(t, text, "Opportunity: RAG tooling")
	assert.Contains(t, text, strings.Repeat("x", 200)+"...")
	assert.NotContains(t, text, strings.Repeat("x", 201))
}

func TestBuildEmailHTML(t *testing.T) {
	body, err := buildEmailHTML(sampleReport())
	require.NoError(t, err)

	assert.Contains(t, body, "Weekly report generated on March 4, 2024")
	assert.Contains(t, body, "1,234")
	assert.Contains(t, body, "Is there a tool for &lt;RAG&gt;?")
	assert.Contains(t, body, "rate limiting, vector database")
}

func TestSendEmail_NotConfigured(t *testing.T) {
	s := &Service{config: &config.Config{NotificationEmail: "team@example.com"}}
	err := s.SendReport(context.Background(), sampleReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Email")
}

func TestBuildTelegramAlert(t *testing.T) {
	text := buildTelegramAlert(&models.Alert{Title: "Hot & new", Message: "1 post", Posts: sampleReport().TopInsights})
	assert.Contains(t, text, "<b>Hot &amp; new</b>")
	assert.Contains(t, text, `<a href="https://reddit.com/r/SaaS/comments/a/x/">`)
}
