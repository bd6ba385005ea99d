package services

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
	"time"

	"greentera/internal/config"
	"greentera/internal/logging"
)

var (
	welcomeTmpl = template.Must(template.New("welcome").Parse(`<p>Halo {{.Name}},</p>
<p>Terima kasih telah bergabung dengan Greentera! Setorkan sampahmu, kumpulkan poin, dan tumbuhkan pohon virtualmu.</p>
<p>Salam hijau,<br>Tim Greentera</p>`))

	voucherTmpl = template.Must(template.New("voucher").Parse(`<p>Voucher <strong>{{.Name}}</strong> berhasil ditukar.</p>
<p>Kode voucher: <strong style="font-size:18px;letter-spacing:2px">{{.Code}}</strong></p>
<p>Nilai: Rp {{.Nominal}}<br>Berlaku sampai: {{.ExpiresAt}}</p>
<p>Tim Greentera</p>`))
)

// MailService sends transactional email over SMTP. It is disabled when the
// SMTP settings are incomplete; every send is then a no-op.
type MailService struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	Enabled  bool

	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewMailService(cfg config.SMTPConfig) *MailService {
	enabled := cfg.Host != "" && cfg.Port != "" && cfg.User != "" && cfg.Pass != "" && cfg.From != ""
	if !enabled {
		logging.Warn().Msg("MailService disabled: missing SMTP settings")
	}
	return &MailService{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.User,
		Password: cfg.Pass,
		From:     cfg.From,
		Enabled:  enabled,
		send:     smtp.SendMail,
	}
}

func (s *MailService) buildMessage(to []string, subject, body string) []byte {
	mime := "MIME-version: 1.0;\nContent-Type: text/html; charset=\"UTF-8\";\n\n"
	return []byte(fmt.Sprintf("To: %s\r\n"+
		"From: Greentera <%s>\r\n"+
		"Subject: %s\r\n"+
		"%s\r\n%s", strings.Join(to, ","), s.From, subject, mime, body))
}

func (s *MailService) deliver(to []string, subject, body string) error {
	auth := smtp.PlainAuth("", s.Username, s.Password, s.Host)
	addr := fmt.Sprintf("%s:%s", s.Host, s.Port)
	return s.send(addr, auth, s.From, to, s.buildMessage(to, subject, body))
}

func (s *MailService) sendAsync(to []string, subject, body string) {
	if s == nil || !s.Enabled {
		return
	}
	go func() {
		if err := s.deliver(to, subject, body); err != nil {
			logging.Error().Err(err).Strs("to", to).Msg("Failed to send email")
			return
		}
		logging.Info().Strs("to", to).Str("subject", subject).Msg("Email sent")
	}()
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}

func (s *MailService) SendWelcomeEmail(email, name string) {
	if s == nil || !s.Enabled {
		return
	}
	body, err := render(welcomeTmpl, map[string]string{"Name": name})
	if err != nil {
		logging.Error().Err(err).Msg("Error rendering welcome email")
		return
	}
	s.sendAsync([]string{email}, "Selamat datang di Greentera 🌱", body)
}

// SendVoucherEmail mails the voucher code to its owner.
func (s *MailService) SendVoucherEmail(email, name, code string, nominal int, expiresAt time.Time) {
	if s == nil || !s.Enabled || email == "" {
		return
	}
	body, err := render(voucherTmpl, map[string]string{
		"Name":      name,
		"Code":      code,
		"Nominal":   formatRupiah(nominal),
		"ExpiresAt": expiresAt.Format("02 Jan 2006"),
	})
	if err != nil {
		logging.Error().Err(err).Msg("Error rendering voucher email")
		return
	}
	s.sendAsync([]string{email}, "[Greentera] Kode voucher "+name, body)
}
