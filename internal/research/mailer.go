package research

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/russross/blackfriday/v2"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/nithiin7/deep-research-app/config"
	"github.com/nithiin7/deep-research-app/internal/telemetry"
)

const maxSubjectLength = 100

// sendClient is the slice of the SendGrid client the mailer needs.
type sendClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridMailer implements Mailer: it renders the markdown report to HTML
// and hands it to SendGrid. Single attempt, no retry.
type SendGridMailer struct {
	cfg       config.EmailConfig
	client    sendClient
	telemetry *telemetry.Telemetry
	logger    *log.Logger
}

// NewSendGridMailer creates a new mailer backed by the SendGrid API
func NewSendGridMailer(cfg config.EmailConfig, tele *telemetry.Telemetry) *SendGridMailer {
	return &SendGridMailer{
		cfg:       cfg,
		client:    sendgrid.NewSendClient(cfg.SendGridAPIKey),
		telemetry: tele,
		logger:    log.New(log.Writer(), "[MAILER] ", log.LstdFlags),
	}
}

// Send delivers the report by email. Failures come back as DeliveryError.
func (m *SendGridMailer) Send(ctx context.Context, report ReportData) (DeliveryReceipt, error) {
	startTime := time.Now()

	from := mail.NewEmail("Deep Research", m.cfg.FromEmail)
	to := mail.NewEmail("", m.cfg.ToEmail)
	html := string(blackfriday.Run([]byte(report.MarkdownReport)))
	message := mail.NewSingleEmail(from, subjectFor(report), to, report.MarkdownReport, html)

	resp, err := m.client.SendWithContext(ctx, message)
	success := err == nil && resp != nil && resp.StatusCode < 300
	m.telemetry.RecordStageEvent(ctx, telemetry.StageEvent{
		RunID:    RunIDFromContext(ctx),
		Stage:    "delivering",
		Duration: time.Since(startTime),
		Success:  success,
	})
	if err != nil {
		return DeliveryReceipt{}, DeliveryError{Err: err}
	}
	if resp == nil || resp.StatusCode >= 300 {
		code := 0
		if resp != nil {
			code = resp.StatusCode
		}
		return DeliveryReceipt{}, DeliveryError{Err: fmt.Errorf("sendgrid status %d", code)}
	}

	m.logger.Printf("[run %s] email sent to %s (status %d)", RunIDFromContext(ctx), m.cfg.ToEmail, resp.StatusCode)
	return DeliveryReceipt{StatusCode: resp.StatusCode, SentAt: time.Now()}, nil
}

// subjectFor derives the email subject from the report's short summary.
func subjectFor(report ReportData) string {
	subject := strings.TrimSpace(report.ShortSummary)
	if idx := strings.IndexAny(subject, ".\n"); idx > 0 {
		subject = subject[:idx]
	}
	if subject == "" {
		subject = "Research Report"
	}
	if len(subject) > maxSubjectLength {
		subject = subject[:maxSubjectLength-3] + "..."
	}
	return subject
}
