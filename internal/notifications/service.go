package notifications

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/brentwatch/brent-news-bot/internal/config"
	"github.com/brentwatch/brent-news-bot/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// Service handles sending notifications via various channels
type Service struct {
	config *config.Config
	client *resty.Client
}

// Ensure Service implements NotificationInterface
var _ NotificationInterface = (*Service)(nil)

// TeamsMessage represents a Microsoft Teams message
type TeamsMessage struct {
	Type       string         `json:"@type"`
	Context    string         `json:"@context"`
	ThemeColor string         `json:"themeColor,omitempty"`
	Title      string         `json:"title"`
	Text       string         `json:"text"`
	Sections   []TeamsSection `json:"sections,omitempty"`
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

// sentimentOrder fixes the order labels are listed in reports
var sentimentOrder = []string{models.SentimentPositive, models.SentimentNeutral, models.SentimentNegative}

// NewService creates a new notification service
func NewService(cfg *config.Config) *Service {
	return &Service{
		config: cfg,
		client: resty.New().SetTimeout(30 * time.Second),
	}
}

// SendReport sends a report via configured notification channels
func (s *Service) SendReport(report *models.Report) error {
	var errors []string

	if s.config.TeamsWebhookURL != "" {
		if err := s.postToTeams(s.buildTeamsMessage(report)); err != nil {
			logrus.Errorf("Failed to send Teams notification: %v", err)
			errors = append(errors, fmt.Sprintf("Teams: %v", err))
		} else {
			logrus.Info("Successfully sent report to Teams")
		}
	}

	if s.config.NotificationEmail != "" {
		if err := s.sendEmail(report); err != nil {
			logrus.Errorf("Failed to send email notification: %v", err)
			errors = append(errors, fmt.Sprintf("Email: %v", err))
		} else {
			logrus.Info("Successfully sent report via email")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

func (s *Service) postToTeams(message *TeamsMessage) error {
	resp, err := s.client.R().
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

func formatChange(p *models.Prediction) string {
	return fmt.Sprintf("%+.2f (%+.2f%%)", p.Change, p.ChangePercent)
}

func (s *Service) buildTeamsMessage(report *models.Report) *TeamsMessage {
	message := &TeamsMessage{
		Type:    "MessageCard",
		Context: "https://schema.org/extensions",
		Title:   fmt.Sprintf("Brent Forecast Report - %s", strings.Title(report.Period)),
		Text:    fmt.Sprintf("Analyzed %d headlines", report.TotalHeadlines),
	}

	facts := []TeamsFact{
		{Name: "Current Price", Value: fmt.Sprintf("%.2f %s", report.CurrentPrice.Price, report.CurrentPrice.Currency)},
		{Name: "Generated", Value: report.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
	}
	if p := report.Prediction; p != nil {
		facts = append(facts,
			TeamsFact{Name: "Predicted Price", Value: fmt.Sprintf("%.2f", p.PredictedPrice)},
			TeamsFact{Name: "Expected Change", Value: formatChange(p)},
			TeamsFact{Name: "Confidence", Value: fmt.Sprintf("%d%%", p.Confidence)},
		)
		message.ThemeColor = "605e5c"
		switch {
		case p.Change > 0:
			message.ThemeColor = "107c10"
		case p.Change < 0:
			message.ThemeColor = "d13438"
		}
	} else {
		facts = append(facts, TeamsFact{Name: "Prediction", Value: report.PredictionError})
	}
	for _, label := range sentimentOrder {
		facts = append(facts, TeamsFact{
			Name:  fmt.Sprintf("%s Headlines", strings.Title(label)),
			Value: fmt.Sprintf("%d", report.Summary[label]),
		})
	}

	message.Sections = append(message.Sections, TeamsSection{
		ActivityTitle: "Forecast",
		Facts:         facts,
		Markdown:      true,
	})

	if report.Prediction != nil && len(report.Prediction.Factors) > 0 {
		var lines []string
		for _, f := range report.Prediction.Factors {
			lines = append(lines, fmt.Sprintf("**%s** (%s): %s", f.Name, f.Impact, f.Description))
		}
		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle: "Influence Factors",
			ActivityText:  strings.Join(lines, "\n\n"),
			Markdown:      true,
		})
	}

	if len(report.Headlines) > 0 {
		var top []string
		limit := 5
		if len(report.Headlines) < limit {
			limit = len(report.Headlines)
		}

		for i := 0; i < limit; i++ {
			h := report.Headlines[i]
			top = append(top, fmt.Sprintf("**[%s](%s)** - %s (%s, %s)", h.Title, h.URL, h.Source, h.Date, h.Sentiment))
		}

		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle: "Latest Headlines",
			ActivityText:  strings.Join(top, "\n\n"),
			Markdown:      true,
		})
	}

	return message
}

func (s *Service) sendEmail(report *models.Report) error {
	subject := fmt.Sprintf("Brent Forecast Report - %s (%d headlines)",
		strings.Title(report.Period), report.TotalHeadlines)

	htmlBody, err := buildEmailHTML(report)
	if err != nil {
		return fmt.Errorf("failed to build email HTML: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.config.SMTPUsername)
	m.SetHeader("To", s.config.NotificationEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", buildEmailText(report))
	m.AddAlternative("text/html", htmlBody)

	d := gomail.NewDialer(s.config.SMTPHost, s.config.SMTPPort, s.config.SMTPUsername, s.config.SMTPPassword)

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

const emailTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Brent Forecast Report</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        .header { background-color: #1f3a5f; color: white; padding: 20px; border-radius: 5px; }
        .summary { background-color: #f5f5f5; padding: 15px; margin: 20px 0; border-radius: 5px; }
        .headline { border-left: 4px solid #1f3a5f; padding: 10px; margin: 10px 0; background-color: #fafafa; }
        .headline-meta { color: #666; font-size: 0.9em; }
        .positive { border-left-color: #107c10; }
        .negative { border-left-color: #d13438; }
        .neutral { border-left-color: #605e5c; }
    </style>
</head>
<body>
    <div class="header">
        <h1>Brent Forecast Report</h1>
        <p>{{.Period}} report generated on {{.GeneratedAt.Format "January 2, 2006 at 3:04 PM MST"}}</p>
    </div>

    <div class="summary">
        <h2>Forecast</h2>
        <p><strong>Current Price:</strong> {{printf "%.2f" .CurrentPrice.Price}} {{.CurrentPrice.Currency}}</p>
        {{with .Prediction}}
        <p><strong>Predicted Price:</strong> {{printf "%.2f" .PredictedPrice}} ({{printf "%+.2f%%" .ChangePercent}})</p>
        <p><strong>Confidence:</strong> {{.Confidence}}%</p>
        <ul>
        {{range .Factors}}<li><strong>{{.Name}}</strong> ({{.Impact}}): {{.Description}}</li>
        {{end}}
        </ul>
        {{else}}
        <p><strong>Prediction:</strong> {{.PredictionError}}</p>
        {{end}}
        <p><strong>Headlines analyzed:</strong> {{.TotalHeadlines}}</p>
        {{range $label, $count := .Summary}}
        <p><strong>{{$label | title}}:</strong> {{$count}}</p>
        {{end}}
    </div>

    {{if .Headlines}}
    <h2>Latest Headlines</h2>
    {{range .Headlines}}
    <div class="headline {{.Sentiment}}">
        <div><a href="{{.URL}}" target="_blank">{{.Title | truncate 200}}</a></div>
        <div class="headline-meta">{{.Source}} | {{.Date}} | compound {{printf "%.3f" .Sentiments.Compound}}</div>
    </div>
    {{end}}
    {{end}}

    <hr>
    <p><small>This report was generated automatically by the Brent news bot.</small></p>
</body>
</html>
`

var emailTmpl = template.Must(template.New("email").Funcs(template.FuncMap{
	"title": strings.Title,
	"truncate": func(length int, s string) string {
		if len(s) <= length {
			return s
		}
		return s[:length] + "..."
	},
}).Parse(emailTemplate))

func buildEmailHTML(report *models.Report) (string, error) {
	var buf bytes.Buffer
	if err := emailTmpl.Execute(&buf, report); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func buildEmailText(report *models.Report) string {
	var text strings.Builder

	text.WriteString(fmt.Sprintf("Brent Forecast Report - %s\n", strings.Title(report.Period)))
	text.WriteString(fmt.Sprintf("Generated: %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05 MST")))

	text.WriteString("FORECAST\n")
	text.WriteString("========\n")
	text.WriteString(fmt.Sprintf("Current Price: %.2f %s\n", report.CurrentPrice.Price, report.CurrentPrice.Currency))
	if p := report.Prediction; p != nil {
		text.WriteString(fmt.Sprintf("Predicted Price: %.2f %s\n", p.PredictedPrice, formatChange(p)))
		text.WriteString(fmt.Sprintf("Confidence: %d%%\n", p.Confidence))
		for _, f := range p.Factors {
			text.WriteString(fmt.Sprintf("  - %s (%s): %s\n", f.Name, f.Impact, f.Description))
		}
	} else {
		text.WriteString(fmt.Sprintf("Prediction: %s\n", report.PredictionError))
	}

	text.WriteString(fmt.Sprintf("\nHeadlines analyzed: %d\n", report.TotalHeadlines))
	for _, label := range sentimentOrder {
		text.WriteString(fmt.Sprintf("%s: %d\n", strings.Title(label), report.Summary[label]))
	}

	if len(report.Headlines) > 0 {
		text.WriteString("\nLATEST HEADLINES\n")
		text.WriteString("================\n")

		for i, h := range report.Headlines {
			text.WriteString(fmt.Sprintf("\n%d. %s\n", i+1, h.Title))
			text.WriteString(fmt.Sprintf("   Source: %s | Date: %s | Sentiment: %s\n", h.Source, h.Date, h.Sentiment))
			if h.URL != "" {
				text.WriteString(fmt.Sprintf("   URL: %s\n", h.URL))
			}
		}
	}

	text.WriteString("\n---\nThis report was generated automatically by the Brent news bot.\n")

	return text.String()
}

// SendAlert posts an urgent alert to Teams when a webhook is configured
func (s *Service) SendAlert(alert *models.Alert) error {
	if s.config.TeamsWebhookURL == "" {
		logrus.Warnf("Alert not delivered, no Teams webhook configured: %s - %s", alert.Type, alert.Title)
		return nil
	}

	message := &TeamsMessage{
		Type:       "MessageCard",
		Context:    "https://schema.org/extensions",
		ThemeColor: "d13438",
		Title:      fmt.Sprintf("[%s] %s", strings.ToUpper(alert.Type), alert.Title),
		Text:       alert.Message,
		Sections: []TeamsSection{{
			Facts: []TeamsFact{
				{Name: "Alert ID", Value: alert.ID},
				{Name: "Raised", Value: alert.CreatedAt.Format(time.RFC3339)},
			},
		}},
	}

	if err := s.postToTeams(message); err != nil {
		return err
	}
	logrus.Infof("Sent %s alert: %s", alert.Type, alert.Title)
	return nil
}
