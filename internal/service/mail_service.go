package service

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"
	"strconv"
	"techacademy_backend/internal/config"
	"techacademy_backend/pkg/logger"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

const inviteSubject = "Welcome to Tech Academy - Your Account Details"

var inviteTemplate = template.Must(template.New("invite").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #6366f1;">Welcome to Tech Academy!</h2>
  <p>Hello {{.FirstName}},</p>
  <p>You have been invited to join Tech Academy. Your account has been created with the following credentials:</p>
  <div style="background-color: #f3f4f6; padding: 20px; border-radius: 8px; margin: 20px 0;">
    <p><strong>Email:</strong> {{.Email}}</p>
    <p><strong>Password:</strong> {{.Password}}</p>
  </div>
  {{if .LoginURL}}<p><a href="{{.LoginURL}}">Log in to Tech Academy</a></p>{{end}}
  <p>Please log in using these credentials and change your password after your first login.</p>
  <p style="color: #ef4444; font-weight: bold;">Keep this password secure and do not share it with anyone.</p>
  <p>Best regards,<br>Tech Academy Team</p>
</div>`))

type Invite struct {
	Email     string
	FirstName string
	Password  string
	LoginURL  string
}

func (i Invite) html() (string, error) {
	var buf bytes.Buffer
	if err := inviteTemplate.Execute(&buf, i); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (i Invite) text() string {
	return fmt.Sprintf("Hello %s,\n\nYou have been invited to join Tech Academy.\nEmail: %s\nPassword: %s\n\nPlease change your password after your first login.\n",
		i.FirstName, i.Email, i.Password)
}

// Mailer 发送邀请邮件
type Mailer interface {
	SendInvite(ctx context.Context, invite Invite) error
}

// NewMailer 按配置选择 sendgrid / smtp，缺少凭据时退化为日志输出
func NewMailer(cfg *config.MailConfig) Mailer {
	switch cfg.Provider {
	case "sendgrid":
		if cfg.SendGridAPIKey != "" {
			return &SendGridMailer{cfg: cfg, client: sendgrid.NewSendClient(cfg.SendGridAPIKey)}
		}
	case "smtp":
		if cfg.SMTPUser != "" && cfg.SMTPPassword != "" {
			return &SMTPMailer{cfg: cfg, send: smtp.SendMail}
		}
	}
	if cfg.Provider != "log" {
		logger.Log.Warn("Email not configured, invitations will only be logged", zap.String("provider", cfg.Provider))
	}
	return &LogMailer{}
}

type SendGridMailer struct {
	cfg    *config.MailConfig
	client *sendgrid.Client
}

func (m *SendGridMailer) SendInvite(ctx context.Context, invite Invite) error {
	body, err := invite.html()
	if err != nil {
		return err
	}
	from := mail.NewEmail(m.cfg.FromName, m.cfg.From)
	to := mail.NewEmail(invite.FirstName, invite.Email)
	message := mail.NewSingleEmail(from, inviteSubject, to, invite.text(), body)

	resp, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

type SMTPMailer struct {
	cfg  *config.MailConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func (m *SMTPMailer) SendInvite(ctx context.Context, invite Invite) error {
	body, err := invite.html()
	if err != nil {
		return err
	}

	from := m.cfg.From
	if from == "" {
		from = m.cfg.SMTPUser
	}
	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s <%s>\r\n", m.cfg.FromName, from)
	fmt.Fprintf(&msg, "To: %s\r\n", invite.Email)
	fmt.Fprintf(&msg, "Subject: %s\r\n", inviteSubject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	msg.WriteString(body)

	auth := smtp.PlainAuth("", m.cfg.SMTPUser, m.cfg.SMTPPassword, m.cfg.SMTPHost)
	addr := m.cfg.SMTPHost + ":" + strconv.Itoa(m.cfg.SMTPPort)
	if err := m.send(addr, auth, from, []string{invite.Email}, msg.Bytes()); err != nil {
		return fmt.Errorf("smtp: %w", err)
	}
	return nil
}

// LogMailer 未配置邮件服务时把账号信息写入日志，管理员可手动转告
type LogMailer struct{}

func (LogMailer) SendInvite(ctx context.Context, invite Invite) error {
	logger.Log.Warn("Email not configured, user credentials",
		zap.String("email", invite.Email),
		zap.String("password", invite.Password),
	)
	return nil
}
