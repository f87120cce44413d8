package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/arjunrose/Personal-Locker/internal/config"
	"github.com/arjunrose/Personal-Locker/internal/model"
)

// Email sends a plaintext alert over SMTP.
type Email struct {
	addr     string
	username string
	password string
	from     string
	subject  string
}

func NewEmail(cfg config.EmailConfig) *Email {
	return &Email{
		addr:     cfg.SMTPAddr,
		username: cfg.Username,
		password: cfg.Password,
		from:     cfg.From,
		subject:  cfg.Subject,
	}
}

func (e *Email) Name() string { return "email" }

func (e *Email) Send(ctx context.Context, recipient string, entry model.IntruderLog) error {
	host := e.addr
	if h, _, err := net.SplitHostPort(e.addr); err == nil {
		host = h
	}
	var auth smtp.Auth
	if e.username != "" {
		auth = smtp.PlainAuth("", e.username, e.password, host)
	}
	subject := e.subject
	if subject == "" {
		subject = "Locker intruder alert"
	}
	when := time.UnixMilli(entry.Timestamp).UTC().Format(time.RFC1123)
	body := fmt.Sprintf("A failed unlock attempt triggered a capture.\r\n\r\n"+
		"Attempt number: %d\r\nCaptured at: %s\r\nLog entry: %s\r\n",
		entry.AttemptNumber, when, entry.ID)
	if entry.AIAnalysis != "" {
		body += fmt.Sprintf("Analysis: %s\r\n", entry.AIAnalysis)
	}
	msg := strings.Join([]string{
		"From: " + e.from,
		"To: " + recipient,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
		"",
		body,
	}, "\r\n")
	return smtp.SendMail(e.addr, auth, e.from, []string{recipient}, []byte(msg))
}
