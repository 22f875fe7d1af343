package notifications

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brentwatch/brent-news-bot/internal/config"
	"github.com/brentwatch/brent-news-bot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() *models.Report {
	return &models.Report{
		GeneratedAt:  time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC),
		Period:       "daily",
		CurrentPrice: models.CurrentPrice{Price: 84.12, Currency: "USD"},
		Prediction: &models.Prediction{
			CurrentPrice:   84.12,
			PredictedPrice: 85.38,
			Change:         1.26,
			ChangePercent:  1.5,
			Confidence:     80,
			Factors: []models.InfluenceFactor{
				{Name: "Technical trend", Description: "Price above its 5-day moving average (bullish trend)", Impact: models.ImpactPositive},
			},
		},
		TotalHeadlines: 2,
		Headlines: []models.NewsItem{
			{Title: "Oil prices surge", URL: "https://news.test/1", Source: "reuters", Date: "2024-03-04", Sentiment: models.SentimentPositive},
			{Title: "OPEC <meeting> scheduled", URL: "https://news.test/2", Source: "bloomberg", Date: "2024-03-04", Sentiment: models.SentimentNeutral},
		},
		Summary: map[string]int{models.SentimentPositive: 1, models.SentimentNeutral: 1},
	}
}

func teamsServer(t *testing.T, status int, received *[]TeamsMessage) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg TeamsMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		*received = append(*received, msg)
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestService_SendReport_Teams(t *testing.T) {
	var received []TeamsMessage
	srv := teamsServer(t, http.StatusOK, &received)

	svc := NewService(&config.Config{TeamsWebhookURL: srv.URL})
	require.NoError(t, svc.SendReport(sampleReport()))

	require.Len(t, received, 1)
	msg := received[0]
	assert.Equal(t, "MessageCard", msg.Type)
	assert.Equal(t, "Brent Forecast Report - Daily", msg.Title)
	assert.Equal(t, "107c10", msg.ThemeColor)
	require.Len(t, msg.Sections, 3)

	facts := map[string]string{}
	for _, f := range msg.Sections[0].Facts {
		facts[f.Name] = f.Value
	}
	assert.Equal(t, "84.12 USD", facts["Current Price"])
	assert.Equal(t, "85.38", facts["Predicted Price"])
	assert.Equal(t, "+1.26 (+1.50%)", facts["Expected Change"])
	assert.Equal(t, "80%", facts["Confidence"])
	assert.Equal(t, "0", facts["Negative Headlines"])

	assert.Contains(t, msg.Sections[2].ActivityText, "[Oil prices surge](https://news.test/1)")
}

func TestService_SendReport_Failures(t *testing.T) {
	var received []TeamsMessage
	srv := teamsServer(t, http.StatusBadRequest, &received)

	svc := NewService(&config.Config{TeamsWebhookURL: srv.URL})
	err := svc.SendReport(sampleReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Teams webhook returned status 400")
}

func TestService_SendReport_NoChannels(t *testing.T) {
	svc := NewService(&config.Config{})
	assert.NoError(t, svc.SendReport(sampleReport()))
}

func TestService_SendAlert(t *testing.T) {
	var received []TeamsMessage
	srv := teamsServer(t, http.StatusOK, &received)

	svc := NewService(&config.Config{TeamsWebhookURL: srv.URL})
	err := svc.SendAlert(&models.Alert{ID: "run-1", Type: "critical", Title: "All news sources failed", Message: "nothing collected"})
	require.NoError(t, err)

	require.Len(t, received, 1)
	assert.Equal(t, "[CRITICAL] All news sources failed", received[0].Title)
	assert.Equal(t, "nothing collected", received[0].Text)

	assert.NoError(t, NewService(&config.Config{}).SendAlert(&models.Alert{Type: "info"}))
}

func TestBuildEmail(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(r *models.Report)
		contains []string
	}{
		{
			name: "With prediction",
			contains: []string{
				"Predicted Price:</strong> 85.38 (&#43;1.50%)",
				"OPEC &lt;meeting&gt; scheduled",
				`class="headline positive"`,
			},
		},
		{
			name: "Prediction unavailable",
			mutate: func(r *models.Report) {
				r.Prediction = nil
				r.PredictionError = "unavailable"
			},
			contains: []string{"<strong>Prediction:</strong> unavailable"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := sampleReport()
			if tt.mutate != nil {
				tt.mutate(report)
			}
			html, err := buildEmailHTML(report)
			require.NoError(t, err)
			for _, s := range tt.contains {
				assert.Contains(t, html, s)
			}
		})
	}

	text := buildEmailText(sampleReport())
	assert.Contains(t, text, "Predicted Price: 85.38 +1.26 (+1.50%)")
	assert.Contains(t, text, "Positive: 1")
	assert.Contains(t, text, "1. Oil prices surge")
}
