package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/azure/community-signals-bot/internal/config"
	"github.com/azure/community-signals-bot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig() *config.Config {
	return &config.Config{
		Communities: []string{"SaaS", "startups"},
		PostLimit:   100,
		MinScore:    2,
	}
}

func TestBuildQuery_Defaults(t *testing.T) {
	q, err := buildQuery(defaultConfig(), parseFlags(nil))
	require.NoError(t, err)

	assert.Equal(t, []string{"SaaS", "startups"}, q.Communities)
	assert.Equal(t, 100, q.Limit)
	assert.Equal(t, 2, q.MinScore)
	assert.True(t, q.Since.IsZero())
	assert.True(t, q.Until.IsZero())
}

func TestBuildQuery_Flags(t *testing.T) {
	opts := parseFlags([]string{
		"-communities", "LocalLLaMA, ,MachineLearning",
		"-limit", "50",
		"-keywords", "rag,agents",
		"-since", "2024-03-01",
		"-until", "2024-03-07",
		"-min-score", "0",
		"-min-comments", "3",
	})

	q, err := buildQuery(defaultConfig(), opts)
	require.NoError(t, err)

	assert.Equal(t, []string{"LocalLLaMA", "MachineLearning"}, q.Communities)
	assert.Equal(t, 50, q.Limit)
	assert.Equal(t, []string{"rag", "agents"}, q.FilterKeywords)
	assert.Equal(t, 0, q.MinScore)
	assert.Equal(t, 3, q.MinComments)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), q.Since)
	assert.Equal(t, time.Date(2024, 3, 7, 23, 59, 59, 999999999, time.UTC), q.Until)
}

func TestBuildQuery_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad since", []string{"-since", "March 1"}},
		{"bad until", []string{"-until", "2024/03/07"}},
		{"until before since", []string{"-since", "2024-03-07", "-until", "2024-03-01"}},
		{"limit too high", []string{"-limit", "500"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildQuery(defaultConfig(), parseFlags(tt.args))
			assert.Error(t, err)
		})
	}
}

func TestWriteFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	at := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)

	require.NoError(t, writeFiles(dir, &models.Tables{}, at))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{
		"posts_20240304_120000.csv",
		"weekly_trends_20240304_120000.csv",
		"communities_20240304_120000.csv",
		"phrases_20240304_120000.csv",
		"insights_20240304_120000.xlsx",
	}, names)
}
