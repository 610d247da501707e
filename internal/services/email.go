package services

import (
	"context"
	"crypto/tls"
	"fmt"
	"html"
	"net/smtp"
	"strings"

	"github.com/ls1intum/thesis-management-sub000/internal/config"
	"github.com/ls1intum/thesis-management-sub000/pkg/logger"
)

type EmailService struct {
	cfg       *config.MailConfig
	clientURL string
}

func NewEmailService(cfg *config.MailConfig, clientURL string) *EmailService {
	return &EmailService{cfg: cfg, clientURL: strings.TrimRight(clientURL, "/")}
}

func (s *EmailService) Enabled() bool {
	return s.cfg != nil && s.cfg.Enabled && s.cfg.Host != ""
}

var mailSubjects = map[NotificationKind]string{
	NotifyApplicationCreated:    "New application",
	NotifyApplicationAccepted:   "Your application was accepted",
	NotifyApplicationRejected:   "Your application was rejected",
	NotifyApplicationReminder:   "Applications waiting for review",
	NotifyThesisCreated:         "Thesis created",
	NotifyThesisClosed:          "Thesis closed",
	NotifyThesisSubmitted:       "Thesis submitted",
	NotifyThesisFinished:        "Thesis completed",
	NotifyProposalUploaded:      "New thesis proposal",
	NotifyProposalAccepted:      "Proposal accepted",
	NotifyChangesRequested:      "Changes requested",
	NotifyAssessmentAdded:       "Assessment added",
	NotifyFinalGradeAvailable:   "Final grade available",
	NotifyCommentPosted:         "New comment",
	NotifyPresentationScheduled: "Presentation scheduled",
	NotifyPresentationUpdated:   "Presentation updated",
	NotifyPresentationDeleted:   "Presentation cancelled",
}

// BuildMail renders a notification into a mail task; nil when nobody has an address
func (s *EmailService) BuildMail(n *Notification) *MailTask {
	var to []string
	for _, r := range n.Recipients {
		if r.Email != "" {
			to = append(to, r.Email)
		}
	}
	if len(to) == 0 {
		return nil
	}

	subject := mailSubjects[n.Kind]
	if subject == "" {
		subject = string(n.Kind)
	}
	if n.Title != "" {
		subject = fmt.Sprintf("%s: %s", subject, n.Title)
	}

	return &MailTask{
		Kind:     n.Kind,
		EntityID: n.EntityID.String(),
		To:       to,
		Subject:  "[Thesis Management] " + subject,
		Body:     s.buildBody(n),
	}
}

func (s *EmailService) buildBody(n *Notification) string {
	var sb strings.Builder

	sb.WriteString("<html><body style=\"font-family: Arial, sans-serif;\">")
	sb.WriteString(fmt.Sprintf("<h2>%s</h2>", html.EscapeString(n.Title)))
	if n.Message != "" {
		sb.WriteString(fmt.Sprintf("<div style=\"background: #f9f9f9; padding: 16px; border-radius: 4px; white-space: pre-wrap;\">%s</div>",
			html.EscapeString(n.Message)))
	}
	if link := s.entityLink(n); link != "" {
		sb.WriteString(fmt.Sprintf("<p><a href=\"%s\">Open in Thesis Management</a></p>", link))
	}
	sb.WriteString("<hr><p style=\"color: #888; font-size: 12px;\">This mail was sent automatically.</p>")
	sb.WriteString("</body></html>")

	return sb.String()
}

func (s *EmailService) entityLink(n *Notification) string {
	if s.clientURL == "" {
		return ""
	}
	switch n.EntityType {
	case "application":
		return fmt.Sprintf("%s/applications/%s", s.clientURL, n.EntityID)
	case "thesis":
		return fmt.Sprintf("%s/theses/%s", s.clientURL, n.EntityID)
	case "topic":
		return fmt.Sprintf("%s/topics/%s", s.clientURL, n.EntityID)
	case "research_group":
		return fmt.Sprintf("%s/applications", s.clientURL)
	}
	return ""
}

// Send delivers one mail task; it is the processor behind the mail queue
func (s *EmailService) Send(ctx context.Context, task *MailTask) error {
	if !s.Enabled() || len(task.To) == 0 {
		return nil
	}

	from := s.cfg.From
	if from == "" {
		from = s.cfg.Username
	}

	rcpt := append([]string{}, task.To...)
	if s.cfg.Bcc != "" {
		rcpt = append(rcpt, s.cfg.Bcc)
	}

	headers := []struct{ k, v string }{
		{"From", from},
		{"To", strings.Join(task.To, ",")},
		{"Subject", task.Subject},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/html; charset=UTF-8"},
	}

	var message strings.Builder
	for _, h := range headers {
		message.WriteString(fmt.Sprintf("%s: %s\r\n", h.k, h.v))
	}
	message.WriteString("\r\n")
	message.WriteString(task.Body)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	var auth smtp.Auth
	if s.cfg.Username != "" && s.cfg.Password != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	var err error
	if s.cfg.UseTLS {
		err = s.sendTLS(addr, auth, from, rcpt, message.String())
	} else {
		err = smtp.SendMail(addr, auth, from, rcpt, []byte(message.String()))
	}
	if err != nil {
		return fmt.Errorf("send mail %s: %w", task.Kind, err)
	}

	logger.Debug().Str("kind", string(task.Kind)).Strs("to", task.To).Msg("[Email] mail sent")
	return nil
}

func (s *EmailService) sendTLS(addr string, auth smtp.Auth, from string, to []string, message string) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: s.cfg.Host})
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return err
	}
	defer client.Close()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return err
		}
	}
	if err := client.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return err
		}
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte(message)); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}
