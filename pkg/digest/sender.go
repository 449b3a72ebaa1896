package digest

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/dsaquest/contestscope/pkg/contest"
	"github.com/dsaquest/contestscope/pkg/platforms"
	"github.com/dsaquest/contestscope/pkg/storage"
)

// SMTPConfig holds the outgoing mail server settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// Window is named in the message body. Zero means DefaultWindow.
	Window   time.Duration
}

// SMTPSender sends a plain-text digest through an SMTP relay with STARTTLS
// when the server offers it.
type SMTPSender struct {
	cfg SMTPConfig
	// send is smtp.SendMail; swapped in tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host is not configured")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("smtp from address is not configured")
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	return &SMTPSender{cfg: cfg, send: smtp.SendMail}, nil
}

func (s *SMTPSender) SendDigest(ctx context.Context, to storage.Subscriber, contests []contest.Contest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	return s.send(addr, auth, s.cfg.From, []string{to.Email}, ComposeMessage(s.cfg.From, to, contests, s.cfg.Window))
}

// ComposeMessage renders an RFC 5322 text message listing the contests
// starting within window.
func ComposeMessage(from string, to storage.Subscriber, contests []contest.Contest, window time.Duration) []byte {
	name := to.Name
	if name == "" {
		name = "Coder"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to.Email)
	fmt.Fprintf(&b, "Subject: %s\r\n", Subject(len(contests)))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "Hey %s!\r\n\r\nContests starting in the next %s:\r\n\r\n", name, windowPhrase(window))
	for _, c := range contests {
		fmt.Fprintf(&b, "- [%s] %s\r\n  %s, %s\r\n  %s\r\n",
			c.Platform, c.Title, c.StartTime.UTC().Format("Mon Jan 2 15:04 MST"), FormatDuration(c), c.URL)
	}
	b.WriteString("\r\nHappy coding!\r\n")
	return []byte(b.String())
}

// FormatDuration renders "2h 30m", "45m" or "unknown".
func FormatDuration(c contest.Contest) string {
	if !c.DurationKnown {
		return "unknown"
	}
	d := c.Duration.Round(time.Minute)
	h, m := int(d/time.Hour), int((d%time.Hour)/time.Minute)
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

// windowPhrase renders "24 hours", "1 hour", "90 minutes" or "1h 30m".
func windowPhrase(d time.Duration) string {
	d = d.Round(time.Minute)
	switch {
	case d == time.Hour:
		return "1 hour"
	case d%time.Hour == 0:
		return fmt.Sprintf("%d hours", d/time.Hour)
	case d < time.Hour:
		return fmt.Sprintf("%d minutes", d/time.Minute)
	}
	return fmt.Sprintf("%dh %dm", d/time.Hour, (d%time.Hour)/time.Minute)
}

// LogSender only logs what it would send. Used when SMTP is not configured.
type LogSender struct {
	Log platforms.Logger
}

func (s LogSender) SendDigest(_ context.Context, to storage.Subscriber, contests []contest.Contest) error {
	log := s.Log
	if log == nil {
		log = platforms.NopLogger()
	}
	log.Infof("digest for %s: %s", to.Email, Subject(len(contests)))
	for _, c := range contests {
		log.Debugf("  %s %s %s", c.StartTime.Format(time.RFC3339), c.Platform, c.Title)
	}
	return nil
}
