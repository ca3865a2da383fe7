// Package notify emails users when a report they requested is ready.
package notify

import (
	"bytes"
	"context"
	"embed"
	"html/template"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	gomail "github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/exitschool/offmarket/internal/config"
	"github.com/exitschool/offmarket/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

var readyTemplate = template.Must(template.ParseFS(templateFS, "templates/report_ready.html"))

// UserLookup resolves a user id to an email address.
type UserLookup interface {
	GetUserEmail(ctx context.Context, userID string) (string, error)
}

type email struct {
	To      string
	Subject string
	HTML    string
}

type readyData struct {
	Title       string
	TierLabel   string
	CompanyName string
	GeneratedAt string
	ReportURL   string
}

// Notifier sends report-ready emails over SMTP. It is disabled when no SMTP
// host is configured.
type Notifier struct {
	cfg          config.SMTPConfig
	users        UserLookup
	dashboardURL string
	send         func(ctx context.Context, e email) error
}

// New creates a Notifier.
func New(cfg config.SMTPConfig, users UserLookup, dashboardURL string) *Notifier {
	n := &Notifier{cfg: cfg, users: users, dashboardURL: strings.TrimRight(dashboardURL, "/")}
	n.send = n.sendSMTP
	return n
}

// Enabled reports whether email delivery is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && n.cfg.Host != ""
}

// ReportReady emails the requesting user. Failures are logged and dropped.
func (n *Notifier) ReportReady(ctx context.Context, userID string, r model.Report, companyName string) {
	if !n.Enabled() || userID == "" || n.users == nil {
		return
	}
	log := zap.L().With(zap.String("report_id", r.ID), zap.String("user_id", userID))

	to, err := n.users.GetUserEmail(ctx, userID)
	if err != nil || to == "" {
		log.Warn("notify: no email for user", zap.Error(err))
		return
	}

	e, err := n.reportReadyEmail(to, r, companyName)
	if err != nil {
		log.Warn("notify: render email", zap.Error(err))
		return
	}
	if err := n.send(ctx, e); err != nil {
		log.Warn("notify: send email", zap.Error(err))
		return
	}
	log.Info("notify: report email sent")
}

func (n *Notifier) reportReadyEmail(to string, r model.Report, companyName string) (email, error) {
	data := readyData{
		Title:       "Your report is ready",
		TierLabel:   r.Tier.Label(),
		CompanyName: companyName,
		GeneratedAt: r.GeneratedAt.UTC().Format(time.RFC1123),
	}
	if n.dashboardURL != "" {
		data.ReportURL = n.dashboardURL + "/reports/" + r.ID
	}

	var buf bytes.Buffer
	if err := readyTemplate.ExecuteTemplate(&buf, "email", data); err != nil {
		return email{}, eris.Wrap(err, "notify: execute template")
	}
	return email{
		To:      to,
		Subject: r.Tier.Label() + " report ready: " + companyName,
		HTML:    buf.String(),
	}, nil
}

func (n *Notifier) message(e email) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(n.cfg.FromName, n.cfg.From); err != nil {
		return nil, eris.Wrap(err, "notify: from")
	}
	if err := msg.To(e.To); err != nil {
		return nil, eris.Wrap(err, "notify: to")
	}
	msg.Subject(e.Subject)
	msg.SetBodyString(gomail.TypeTextHTML, e.HTML)
	return msg, nil
}

func (n *Notifier) sendSMTP(ctx context.Context, e email) error {
	msg, err := n.message(e)
	if err != nil {
		return err
	}

	opts := []gomail.Option{
		gomail.WithPort(n.cfg.Port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15 * time.Second),
	}
	if n.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(n.cfg.Username),
			gomail.WithPassword(n.cfg.Password),
		)
	}
	client, err := gomail.NewClient(n.cfg.Host, opts...)
	if err != nil {
		return eris.Wrap(err, "notify: smtp client")
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return eris.Wrap(err, "notify: smtp send")
	}
	return nil
}
