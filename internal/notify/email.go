package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"gopkg.in/mail.v2"

	"github.com/hamed0406/statuspulse/internal/domain"
)

// Dialer is the part of mail.Dialer the sender needs.
type Dialer interface {
	DialAndSend(m ...*mail.Message) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Email    string
	Password string
	FromName string
}

// Email sends status alerts over SMTP. Without credentials every Send
// returns ErrNotConfigured.
type Email struct {
	cfg    SMTPConfig
	dialer Dialer
	now    func() time.Time
}

func NewEmail(cfg SMTPConfig) *Email {
	if cfg.FromName == "" {
		cfg.FromName = "StatusPulse"
	}
	e := &Email{cfg: cfg, now: func() time.Time { return time.Now().UTC() }}
	if cfg.Email == "" || cfg.Password == "" {
		return e
	}
	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.Email, cfg.Password)
	d.StartTLSPolicy = mail.MandatoryStartTLS
	d.Timeout = 10 * time.Second
	e.dialer = d
	return e
}

// NewEmailWithDialer is used by tests to swap the SMTP transport.
func NewEmailWithDialer(cfg SMTPConfig, d Dialer) *Email {
	e := NewEmail(SMTPConfig{Host: cfg.Host, Port: cfg.Port, FromName: cfg.FromName, Email: cfg.Email})
	e.dialer = d
	return e
}

func (e *Email) Configured() bool { return e.dialer != nil }

func (e *Email) Send(ctx context.Context, cfg domain.AlertConfig, m domain.Monitor, status domain.Status) error {
	if e.dialer == nil {
		return ErrNotConfigured
	}
	msg, err := e.message(cfg.Destination, m, status)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- e.dialer.DialAndSend(msg) }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Email) message(to string, m domain.Monitor, status domain.Status) (*mail.Message, error) {
	subject, tpl := fmt.Sprintf("🔴 %s is DOWN", m.Name), downTemplate
	if status == domain.StatusUp {
		subject, tpl = fmt.Sprintf("🟢 %s is back UP", m.Name), upTemplate
	}
	var body bytes.Buffer
	err := tpl.Execute(&body, map[string]string{
		"Name": m.Name,
		"URL":  m.URL,
		"Time": e.now().Format("2006-01-02 15:04:05 UTC"),
	})
	if err != nil {
		return nil, fmt.Errorf("render email: %w", err)
	}

	msg := mail.NewMessage()
	msg.SetAddressHeader("From", e.cfg.Email, e.cfg.FromName)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body.String())
	return msg, nil
}

var downTemplate = template.Must(template.New("down").Parse(`<div style="font-family: sans-serif; max-width: 600px;">
  <h2 style="color: #DC2626;">Monitor Down</h2>
  <p><strong>{{.Name}}</strong> is not responding.</p>
  <p>URL: <a href="{{.URL}}">{{.URL}}</a></p>
  <p>Detected at: {{.Time}}</p>
  <p style="color: #6B7280;">You will be notified when it recovers.</p>
</div>`))

var upTemplate = template.Must(template.New("up").Parse(`<div style="font-family: sans-serif; max-width: 600px;">
  <h2 style="color: #16A34A;">Monitor Recovered</h2>
  <p><strong>{{.Name}}</strong> is back up.</p>
  <p>URL: <a href="{{.URL}}">{{.URL}}</a></p>
  <p>Recovered at: {{.Time}}</p>
</div>`))
