package auth

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"strings"

	"github.com/gofiber/template/django/v3"
	"github.com/goliatone/go-errors"
	"github.com/wneessen/go-mail"
)

const (
	mailTemplateVerification      = "verification"
	mailTemplateResetRequest      = "reset_request"
	mailTemplateResetConfirmation = "reset_confirmation"

	mailSubjectVerification      = "Verify your email - Syntra.AI"
	mailSubjectResetRequest      = "Reset your password - Syntra.AI"
	mailSubjectResetConfirmation = "Your password was changed - Syntra.AI"
)

// MailerOptions configures the SMTP dispatcher
type MailerOptions struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// AppURL is the public base URL used to build verification and reset links
	AppURL string
}

// Mailer delivers account notifications over SMTP, rendering bodies from the
// embedded templates.
type Mailer struct {
	client *mail.Client
	engine *django.Engine
	from   string
	appURL string
	logger Logger
}

var _ NotificationDispatcher = (*Mailer)(nil)

// NewMailer creates an SMTP backed NotificationDispatcher
func NewMailer(opts MailerOptions) (*Mailer, error) {
	if opts.From == "" {
		return nil, errors.New("mailer requires a from address", errors.CategoryBadInput)
	}

	clientOpts := []mail.Option{
		mail.WithPort(opts.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}

	if opts.Username != "" {
		clientOpts = append(clientOpts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(opts.Username),
			mail.WithPassword(opts.Password),
		)
	}

	client, err := mail.NewClient(opts.Host, clientOpts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to create mail client")
	}

	engine, err := newMailTemplateEngine()
	if err != nil {
		return nil, err
	}

	return &Mailer{
		client: client,
		engine: engine,
		from:   opts.From,
		appURL: strings.TrimSuffix(opts.AppURL, "/"),
		logger: defLogger{},
	}, nil
}

func (m *Mailer) WithLogger(l Logger) *Mailer {
	if l != nil {
		m.logger = l
	}
	return m
}

// SendVerification emails the account activation link
func (m *Mailer) SendVerification(ctx context.Context, user *User, token string) error {
	return m.send(ctx, user.Email, mailSubjectVerification, mailTemplateVerification, map[string]any{
		"name":       user.Name,
		"verify_url": m.challengeURL("/auth/verify-email", token),
	})
}

// SendResetRequest emails the password reset link
func (m *Mailer) SendResetRequest(ctx context.Context, user *User, token string) error {
	return m.send(ctx, user.Email, mailSubjectResetRequest, mailTemplateResetRequest, map[string]any{
		"name":      user.Name,
		"reset_url": m.challengeURL("/auth/reset-password", token),
	})
}

// SendResetConfirmation emails a notice that the password changed
func (m *Mailer) SendResetConfirmation(ctx context.Context, user *User) error {
	return m.send(ctx, user.Email, mailSubjectResetConfirmation, mailTemplateResetConfirmation, map[string]any{
		"name": user.Name,
	})
}

func (m *Mailer) send(ctx context.Context, to, subject, template string, binding map[string]any) error {
	var body bytes.Buffer
	if err := m.engine.Render(&body, template, binding); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to render mail template").
			WithMetadata(map[string]any{"template": template})
	}

	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "invalid mail from address")
	}
	if err := msg.To(to); err != nil {
		return errors.Wrap(err, errors.CategoryBadInput, "invalid mail recipient address")
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, body.String())

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return errors.Wrap(err, ErrMailDeliveryFailed.Category, ErrMailDeliveryFailed.Message).
			WithTextCode(ErrMailDeliveryFailed.TextCode)
	}

	return nil
}

func (m *Mailer) challengeURL(path, token string) string {
	return fmt.Sprintf("%s%s?token=%s", m.appURL, path, url.QueryEscape(token))
}

func newMailTemplateEngine() (*django.Engine, error) {
	sub, err := fs.Sub(GetMailTemplatesFS(), "data/templates/mail")
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to mount mail templates")
	}

	engine := django.NewFileSystem(http.FS(sub), ".html")
	if err := engine.Load(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load mail templates")
	}

	return engine, nil
}

// LogMailer writes notification links to the logger instead of sending email.
// Meant for local development.
type LogMailer struct {
	appURL string
	logger Logger
}

var _ NotificationDispatcher = (*LogMailer)(nil)

func NewLogMailer(appURL string, logger Logger) *LogMailer {
	if logger == nil {
		logger = defLogger{}
	}
	return &LogMailer{
		appURL: strings.TrimSuffix(appURL, "/"),
		logger: logger,
	}
}

func (m *LogMailer) SendVerification(_ context.Context, user *User, token string) error {
	m.logger.Info("verification email for %s: %s/auth/verify-email?token=%s", user.Email, m.appURL, token)
	return nil
}

func (m *LogMailer) SendResetRequest(_ context.Context, user *User, token string) error {
	m.logger.Info("reset email for %s: %s/auth/reset-password?token=%s", user.Email, m.appURL, token)
	return nil
}

func (m *LogMailer) SendResetConfirmation(_ context.Context, user *User) error {
	m.logger.Info("reset confirmation email for %s", user.Email)
	return nil
}
