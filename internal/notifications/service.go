package notifications

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"github.com/npaujiana/scraper-tiktok/internal/config"
	"github.com/npaujiana/scraper-tiktok/internal/databank"
)

// Service delivers ingest and export reports via the configured channels
type Service struct {
	config *config.Config
	client *resty.Client
}

// Ensure Service implements NotificationInterface
var _ NotificationInterface = (*Service)(nil)

// TeamsMessage represents a Microsoft Teams message card
type TeamsMessage struct {
	Type     string         `json:"@type"`
	Context  string         `json:"@context"`
	Title    string         `json:"title"`
	Text     string         `json:"text"`
	Sections []TeamsSection `json:"sections,omitempty"`
}

type TeamsSection struct {
	ActivityTitle string      `json:"activityTitle,omitempty"`
	ActivityText  string      `json:"activityText,omitempty"`
	Facts         []TeamsFact `json:"facts,omitempty"`
	Markdown      bool        `json:"markdown,omitempty"`
}

type TeamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewService creates a new notification service
func NewService(cfg *config.Config) *Service {
	return &Service{
		config: cfg,
		client: resty.New().SetTimeout(30 * time.Second),
	}
}

// SendIngestReport pushes a batch summary to every configured channel.
// Failed channels are collected rather than short-circuiting: a Teams outage
// must not block the email path.
func (s *Service) SendIngestReport(report *databank.BatchReport) error {
	var errs []string

	if s.config.TeamsWebhookURL != "" {
		if err := s.postToTeams(s.buildIngestMessage(report)); err != nil {
			logrus.Errorf("Failed to send Teams notification: %v", err)
			errs = append(errs, fmt.Sprintf("Teams: %v", err))
		} else {
			logrus.Info("Successfully sent ingest report to Teams")
		}
	}

	if s.config.NotificationEmail != "" {
		subject := fmt.Sprintf("Data Bank ingest report - batch %s (%d records)", report.BatchID, report.Received)
		if err := s.sendEmail(subject, s.buildIngestText(report)); err != nil {
			logrus.Errorf("Failed to send email notification: %v", err)
			errs = append(errs, fmt.Sprintf("Email: %v", err))
		} else {
			logrus.Info("Successfully sent ingest report via email")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// SendExportNotice announces a finished export artifact
func (s *Service) SendExportNotice(notice *ExportNotice) error {
	var errs []string

	if s.config.TeamsWebhookURL != "" {
		message := &TeamsMessage{
			Type:    "MessageCard",
			Context: "https://schema.org/extensions",
			Title:   "Data Bank export ready",
			Text:    fmt.Sprintf("Exported %d rows to %s", notice.Rows, notice.Artifact),
			Sections: []TeamsSection{{
				Facts: []TeamsFact{
					{Name: "Artifact", Value: notice.Artifact},
					{Name: "Rows", Value: fmt.Sprintf("%d", notice.Rows)},
					{Name: "Generated", Value: notice.GeneratedAt.Format("2006-01-02 15:04:05 UTC")},
				},
				Markdown: true,
			}},
		}
		if err := s.postToTeams(message); err != nil {
			logrus.Errorf("Failed to send Teams notification: %v", err)
			errs = append(errs, fmt.Sprintf("Teams: %v", err))
		}
	}

	if s.config.NotificationEmail != "" {
		subject := fmt.Sprintf("Data Bank export ready - %s", notice.Artifact)
		body := fmt.Sprintf(
			"Export finished at %s\n\nArtifact: %s\nRows: %d\n\n---\nThis notice was generated automatically by the Data Bank.\n",
			notice.GeneratedAt.Format("2006-01-02 15:04:05 UTC"), notice.Artifact, notice.Rows)
		if err := s.sendEmail(subject, body); err != nil {
			logrus.Errorf("Failed to send email notification: %v", err)
			errs = append(errs, fmt.Sprintf("Email: %v", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errs, "; "))
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

func (s *Service) buildIngestMessage(report *databank.BatchReport) *TeamsMessage {
	message := &TeamsMessage{
		Type:    "MessageCard",
		Context: "https://schema.org/extensions",
		Title:   fmt.Sprintf("Data Bank ingest report - batch %s", report.BatchID),
		Text: fmt.Sprintf("%d received, %d inserted, %d updated, %d failed in %v",
			report.Received, report.Inserted, report.Updated, report.Failed, report.Duration),
	}

	facts := []TeamsFact{
		{Name: "Received", Value: fmt.Sprintf("%d", report.Received)},
		{Name: "Inserted", Value: fmt.Sprintf("%d", report.Inserted)},
		{Name: "Updated", Value: fmt.Sprintf("%d", report.Updated)},
		{Name: "Failed", Value: fmt.Sprintf("%d", report.Failed)},
	}
	for kind, tally := range report.ByKind {
		facts = append(facts, TeamsFact{
			Name:  string(kind),
			Value: fmt.Sprintf("%d inserted / %d updated / %d failed", tally.Inserted, tally.Updated, tally.Failed),
		})
	}
	message.Sections = append(message.Sections, TeamsSection{
		ActivityTitle: "Summary",
		Facts:         facts,
		Markdown:      true,
	})

	if len(report.Failures) > 0 {
		var lines []string
		limit := 10
		if len(report.Failures) < limit {
			limit = len(report.Failures)
		}
		for i := 0; i < limit; i++ {
			f := report.Failures[i]
			lines = append(lines, fmt.Sprintf("**%s** - %s", f.Key, f.Reason))
		}
		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle: "Failures",
			ActivityText:  strings.Join(lines, "\n\n"),
			Markdown:      true,
		})
	}

	return message
}

func (s *Service) buildIngestText(report *databank.BatchReport) string {
	var text strings.Builder

	text.WriteString(fmt.Sprintf("Data Bank ingest report - batch %s\n", report.BatchID))
	text.WriteString(fmt.Sprintf("Started: %s\n\n", report.StartedAt.Format("2006-01-02 15:04:05 UTC")))

	text.WriteString("SUMMARY\n")
	text.WriteString("=======\n")
	text.WriteString(fmt.Sprintf("Received: %d\n", report.Received))
	text.WriteString(fmt.Sprintf("Inserted: %d\n", report.Inserted))
	text.WriteString(fmt.Sprintf("Updated:  %d\n", report.Updated))
	text.WriteString(fmt.Sprintf("Failed:   %d\n", report.Failed))

	for kind, tally := range report.ByKind {
		text.WriteString(fmt.Sprintf("%s: %d inserted / %d updated / %d failed\n",
			kind, tally.Inserted, tally.Updated, tally.Failed))
	}

	if len(report.Failures) > 0 {
		text.WriteString("\nFAILURES\n")
		text.WriteString("========\n")
		limit := 20
		if len(report.Failures) < limit {
			limit = len(report.Failures)
		}
		for i := 0; i < limit; i++ {
			f := report.Failures[i]
			text.WriteString(fmt.Sprintf("%d. %s: %s\n", i+1, f.Key, f.Reason))
		}
	}

	text.WriteString("\n---\nThis report was generated automatically by the Data Bank.\n")
	return text.String()
}

func (s *Service) sendEmail(subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.config.SMTPUsername)
	m.SetHeader("To", s.config.NotificationEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	d := gomail.NewDialer(s.config.SMTPHost, s.config.SMTPPort, s.config.SMTPUsername, s.config.SMTPPassword)

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
