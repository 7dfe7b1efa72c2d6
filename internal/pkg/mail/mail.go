package mail

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"net/smtp"
	"strings"
	"time"
)

// Config holds mail provider settings (matches NotifyRuntimeConfig.Mail).
type Config struct {
	Enable    bool   `json:"enable"`
	Host      string `json:"host"`
	Port      int    `json:"port"`
	User      string `json:"user"`
	Pass      string `json:"pass"`
	From      string `json:"from"`
	ReplyTo   string `json:"reply_to"`
	UseResend bool   `json:"use_resend"`
	ResendKey string `json:"resend_key"`
}

// Message is a single email to send.
type Message struct {
	To      []string
	Subject string
	HTML    string
	Text    string
}

// Sender sends emails via SMTP or Resend.
type Sender struct {
	cfg Config
}

func New(cfg Config) *Sender {
	return &Sender{cfg: cfg}
}

// Send dispatches an email. Uses Resend if configured, otherwise SMTP.
func (s *Sender) Send(msg Message) error {
	if !s.cfg.Enable {
		return nil
	}
	if s.cfg.UseResend && s.cfg.ResendKey != "" {
		return s.sendResend(msg)
	}
	return s.sendSMTP(msg)
}

// sendSMTP sends via net/smtp.
func (s *Sender) sendSMTP(msg Message) error {
	host := s.cfg.Host
	port := s.cfg.Port
	if port == 0 {
		port = 587
	}
	addr := fmt.Sprintf("%s:%d", host, port)

	from := s.cfg.From
	if from == "" {
		from = s.cfg.User
	}

	var body bytes.Buffer
	body.WriteString("MIME-Version: 1.0\r\n")
	body.WriteString(fmt.Sprintf("From: %s\r\n", from))
	body.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(msg.To, ", ")))
	body.WriteString(fmt.Sprintf("Subject: %s\r\n", msg.Subject))
	body.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	if s.cfg.ReplyTo != "" {
		body.WriteString(fmt.Sprintf("Reply-To: %s\r\n", s.cfg.ReplyTo))
	}
	body.WriteString("\r\n")
	body.WriteString(msg.HTML)

	auth := smtp.PlainAuth("", s.cfg.User, s.cfg.Pass, host)
	return smtp.SendMail(addr, auth, from, msg.To, body.Bytes())
}

// sendResend sends via the Resend HTTP API.
func (s *Sender) sendResend(msg Message) error {
	from := s.cfg.From
	if from == "" {
		from = s.cfg.User
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"from":    from,
		"to":      msg.To,
		"subject": msg.Subject,
		"html":    msg.HTML,
	})

	req, err := http.NewRequest("POST", "https://api.resend.com/emails", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.ResendKey)
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp struct {
			Message string `json:"message"`
		}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return fmt.Errorf("resend error %d: %s", resp.StatusCode, errResp.Message)
	}
	return nil
}

const serviceAlertTpl = `<!DOCTYPE html>
<html>
<body style="font-family:sans-serif;background:#f5f5f5;padding:20px">
<div style="max-width:600px;margin:0 auto;background:#fff;border-radius:8px;padding:24px">
  <h2 style="color:{{if .Recovered}}#16a34a{{else}}#dc2626{{end}}">Analysis service {{if .Recovered}}recovered{{else}}unreachable{{end}}</h2>
  <p>The health probe against <code>{{.Endpoint}}</code> reported:</p>
  <div style="background:#f3f4f6;border-radius:8px;padding:12px;font-size:13px;color:#333">{{.Detail}}</div>
  <p style="color:#666;font-size:13px">Checked at {{.CheckedAt}}. Comment analysis requests will fail until the service is back.</p>
  <p style="color:#999;font-size:12px">This mail was sent automatically. &copy;{{year}} TubeLens</p>
</div>
</body>
</html>`

const backupReportTpl = `<!DOCTYPE html>
<html>
<body style="font-family:sans-serif;background:#f5f5f5;padding:20px">
<div style="max-width:600px;margin:0 auto;background:#fff;border-radius:8px;padding:24px">
  <h2 style="color:{{if .Success}}#16a34a{{else}}#dc2626{{end}}">Backup {{if .Success}}completed{{else}}failed{{end}}</h2>
  {{if .Success}}
  <p>Archive <strong>{{.Filename}}</strong> ({{.SizeLabel}}) was written{{if .Uploaded}} and uploaded to S3{{end}}.</p>
  {{else}}
  <p>The scheduled backup did not complete:</p>
  <div style="background:#f3f4f6;border-radius:8px;padding:12px;font-size:13px;color:#333">{{.Detail}}</div>
  {{end}}
  <p style="color:#999;font-size:12px">This mail was sent automatically. &copy;{{year}} TubeLens</p>
</div>
</body>
</html>`

// ServiceAlertData is the data for analysis service health alerts.
type ServiceAlertData struct {
	Recovered bool
	Endpoint  string
	Detail    string
	CheckedAt string
}

// BackupReportData is the data for backup completion mails.
type BackupReportData struct {
	Success   bool
	Filename  string
	SizeLabel string
	Uploaded  bool
	Detail    string
}

func renderTemplate(tpl string, data interface{}) (string, error) {
	t, err := template.New("").Funcs(template.FuncMap{
		"year": func() int {
			return time.Now().Year()
		},
	}).Parse(tpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// SendServiceAlert notifies the operator about an analysis service outage
// or its recovery.
func (s *Sender) SendServiceAlert(to string, data ServiceAlertData) error {
	if strings.TrimSpace(data.CheckedAt) == "" {
		data.CheckedAt = time.Now().Format("2006-01-02 15:04:05")
	}
	if strings.TrimSpace(data.Detail) == "" {
		data.Detail = "-"
	}
	html, err := renderTemplate(serviceAlertTpl, data)
	if err != nil {
		return err
	}
	subject := "[TubeLens] analysis service unreachable"
	if data.Recovered {
		subject = "[TubeLens] analysis service recovered"
	}
	return s.Send(Message{
		To:      []string{to},
		Subject: subject,
		HTML:    html,
	})
}

// SendBackupReport notifies the operator about a finished or failed backup.
func (s *Sender) SendBackupReport(to string, data BackupReportData) error {
	html, err := renderTemplate(backupReportTpl, data)
	if err != nil {
		return err
	}
	subject := "[TubeLens] backup failed"
	if data.Success {
		subject = "[TubeLens] backup completed"
	}
	return s.Send(Message{
		To:      []string{to},
		Subject: subject,
		HTML:    html,
	})
}
