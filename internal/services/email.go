package services

import (
	"fmt"
	"log"
	"net/smtp"
	"strings"
	"time"
)

type EmailService struct {
	host        string
	port        string
	user        string
	pass        string
	from        string
	frontendURL string
	devMode     bool
}

func NewEmailService(host, port, user, pass, from, frontendURL string) *EmailService {
	devMode := host == "" || user == ""
	if devMode {
		log.Println("⚠ Email service running in DEV MODE (logging to console)")
	}
	return &EmailService{
		host:        host,
		port:        port,
		user:        user,
		pass:        pass,
		from:        from,
		frontendURL: frontendURL,
		devMode:     devMode,
	}
}

func (s *EmailService) SendVerificationEmail(to, token string) error {
	verifyURL := fmt.Sprintf("%s/verify-email?token=%s", s.frontendURL, token)

	subject := "Verify your StudyHub account"
	body := s.wrap("Verify Your Email", fmt.Sprintf(`
      <p style="color: #64748b; font-size: 14px; line-height: 1.6; margin: 0 0 24px;">
        Welcome to StudyHub! Click the button below to verify your email address and start studying smarter.
      </p>
      <a href="%s" style="display: inline-block; background: #6366f1; color: white; text-decoration: none; padding: 12px 32px; border-radius: 8px; font-weight: 600; font-size: 14px;">
        Verify Email
      </a>
      <p style="color: #94a3b8; font-size: 12px; margin: 24px 0 0; line-height: 1.5;">
        If the button doesn't work, copy and paste this link:<br>
        <a href="%s" style="color: #6366f1;">%s</a>
      </p>
      <p style="color: #94a3b8; font-size: 12px; margin: 16px 0 0;">
        This link expires in 24 hours.
      </p>`, verifyURL, verifyURL, verifyURL))

	return s.sendHTML(to, subject, body)
}

func (s *EmailService) SendPasswordResetEmail(to, token string) error {
	resetURL := fmt.Sprintf("%s/reset-password?token=%s", s.frontendURL, token)

	subject := "Reset your StudyHub password"
	body := s.wrap("Reset Your Password", fmt.Sprintf(`
      <p style="color: #64748b; font-size: 14px; line-height: 1.6; margin: 0 0 24px;">
        We received a request to reset your password. Click the button below to create a new one.
      </p>
      <a href="%s" style="display: inline-block; background: #6366f1; color: white; text-decoration: none; padding: 12px 32px; border-radius: 8px; font-weight: 600; font-size: 14px;">
        Reset Password
      </a>
      <p style="color: #94a3b8; font-size: 12px; margin: 24px 0 0;">
        If you didn't request this, you can safely ignore this email. This link expires in 1 hour.
      </p>`, resetURL))

	return s.sendHTML(to, subject, body)
}

func (s *EmailService) SendProcessingCompleteEmail(to, noteTitle, noteID string) error {
	subject := fmt.Sprintf("Your note \"%s\" is ready", noteTitle)
	body := s.wrap("Note Ready", fmt.Sprintf(`
      <p style="color: #64748b; font-size: 14px; line-height: 1.6; margin: 0 0 24px;">
        We finished processing <strong>%s</strong>. The summary, key points and tags are ready for review.
      </p>
      <a href="%s/notes/%s" style="display: inline-block; background: #6366f1; color: white; text-decoration: none; padding: 12px 32px; border-radius: 8px; font-weight: 600; font-size: 14px;">
        Open Note
      </a>`, noteTitle, s.frontendURL, noteID))

	return s.sendHTML(to, subject, body)
}

func (s *EmailService) SendWeeklyDigestEmail(to, fullName string, notes, quizzes, decks int, studyHours float64) error {
	subject := "Your week on StudyHub"
	body := s.wrap("Your Weekly Progress", fmt.Sprintf(`
      <p style="color: #64748b; font-size: 14px; line-height: 1.6; margin: 0 0 24px;">
        Hi %s, here's what you got done this week:
      </p>
      <table style="width: 100%%; font-size: 14px; color: #1e293b; border-collapse: collapse;">
        <tr><td style="padding: 8px 0;">Hours studied</td><td style="text-align: right; font-weight: 600;">%.1f</td></tr>
        <tr><td style="padding: 8px 0;">Notes created</td><td style="text-align: right; font-weight: 600;">%d</td></tr>
        <tr><td style="padding: 8px 0;">Quizzes created</td><td style="text-align: right; font-weight: 600;">%d</td></tr>
        <tr><td style="padding: 8px 0;">Flashcard decks created</td><td style="text-align: right; font-weight: 600;">%d</td></tr>
      </table>
      <a href="%s/dashboard" style="display: inline-block; margin-top: 24px; background: #6366f1; color: white; text-decoration: none; padding: 12px 32px; border-radius: 8px; font-weight: 600; font-size: 14px;">
        Open Dashboard
      </a>`, fullName, studyHours, notes, quizzes, decks, s.frontendURL))

	return s.sendHTML(to, subject, body)
}

func (s *EmailService) SendStudyReminderEmail(to, fullName string, lastActivityAt *time.Time) error {
	lastSeen := "a while"
	if lastActivityAt != nil {
		days := int(time.Since(*lastActivityAt).Hours() / 24)
		if days >= 1 {
			lastSeen = fmt.Sprintf("%d days", days)
		}
	}

	subject := "Time to get back to studying"
	body := s.wrap("We Miss You", fmt.Sprintf(`
      <p style="color: #64748b; font-size: 14px; line-height: 1.6; margin: 0 0 24px;">
        Hi %s, it's been %s since your last study session. A quick flashcard review keeps your streak alive.
      </p>
      <a href="%s/flashcards" style="display: inline-block; background: #6366f1; color: white; text-decoration: none; padding: 12px 32px; border-radius: 8px; font-weight: 600; font-size: 14px;">
        Review Due Cards
      </a>`, fullName, lastSeen, s.frontendURL))

	return s.sendHTML(to, subject, body)
}

func (s *EmailService) SendTodoReminderEmail(to, fullName, todoTitle string, dueAt *time.Time) error {
	due := ""
	if dueAt != nil {
		due = fmt.Sprintf(`<p style="color: #94a3b8; font-size: 12px; margin: 16px 0 0;">Due %s.</p>`,
			dueAt.Format("Mon, Jan 2 at 15:04 MST"))
	}

	subject := fmt.Sprintf("Reminder: %s", todoTitle)
	body := s.wrap("Task Reminder", fmt.Sprintf(`
      <p style="color: #64748b; font-size: 14px; line-height: 1.6; margin: 0 0 24px;">
        Hi %s, you asked to be reminded about:
      </p>
      <p style="font-size: 16px; font-weight: 600; color: #1e293b; margin: 0 0 24px;">%s</p>
      <a href="%s/todos" style="display: inline-block; background: #6366f1; color: white; text-decoration: none; padding: 12px 32px; border-radius: 8px; font-weight: 600; font-size: 14px;">
        View Tasks
      </a>%s`, fullName, todoTitle, s.frontendURL, due))

	return s.sendHTML(to, subject, body)
}

func (s *EmailService) wrap(heading, inner string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: 'Segoe UI', Arial, sans-serif; margin: 0; padding: 0; background-color: #f8fafc;">
  <div style="max-width: 480px; margin: 40px auto; background: white; border-radius: 12px; box-shadow: 0 4px 24px rgba(0,0,0,0.08); overflow: hidden;">
    <div style="background: linear-gradient(135deg, #6366f1 0%%, #8b5cf6 100%%); padding: 32px; text-align: center;">
      <h1 style="color: white; margin: 0; font-size: 24px; font-weight: 700;">StudyHub</h1>
      <p style="color: rgba(255,255,255,0.85); margin: 8px 0 0; font-size: 14px;">Study Smarter Together</p>
    </div>
    <div style="padding: 32px;">
      <h2 style="margin: 0 0 16px; font-size: 20px; color: #1e293b;">%s</h2>%s
    </div>
  </div>
</body>
</html>`, heading, inner)
}

func (s *EmailService) sendHTML(to, subject, htmlBody string) error {
	if s.devMode {
		log.Printf("📧 [DEV EMAIL] To: %s | Subject: %s", to, subject)
		log.Printf("📧 Body:\n%s", htmlBody)
		return nil
	}

	headers := []string{
		fmt.Sprintf("From: %s", s.from),
		fmt.Sprintf("To: %s", to),
		fmt.Sprintf("Subject: %s", subject),
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=UTF-8",
	}

	message := strings.Join(headers, "\r\n") + "\r\n\r\n" + htmlBody

	auth := smtp.PlainAuth("", s.user, s.pass, s.host)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)

	err := smtp.SendMail(addr, auth, s.from, []string{to}, []byte(message))
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}

	log.Printf("📧 Email sent to %s: %s", to, subject)
	return nil
}
