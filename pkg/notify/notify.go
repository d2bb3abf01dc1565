// Package notify e-mails operators about failed scheduled refreshes.
package notify

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
)

// Failure describes a refresh that did not complete.
type Failure struct {
	RunID    string
	Stage    string
	Err      error
	Source   string
	Occurred time.Time
}

// Notifier sends failure e-mails through Resend.
type Notifier struct {
	client *resend.Client
	from   string
	to     []string
	logger *slog.Logger
}

// NewNotifier creates a notifier. An empty apiKey yields a notifier that
// only logs.
func NewNotifier(apiKey, from string, to []string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	var client *resend.Client
	if apiKey != "" {
		client = resend.NewClient(apiKey)
	}
	return &Notifier{client: client, from: from, to: to, logger: logger}
}

// WithBaseURL points the Resend client at another endpoint.
func (n *Notifier) WithBaseURL(raw string) (*Notifier, error) {
	if n.client == nil {
		return n, nil
	}
	u, err := url.Parse(strings.TrimSuffix(raw, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("invalid resend base url: %w", err)
	}
	n.client.BaseURL = u
	return n, nil
}

// Enabled reports whether e-mails are actually sent.
func (n *Notifier) Enabled() bool {
	return n.client != nil && len(n.to) > 0
}

// RefreshFailed reports f to the configured recipients.
func (n *Notifier) RefreshFailed(ctx context.Context, f Failure) error {
	if !n.Enabled() {
		n.logger.Warn("resend client not configured, skipping failure email",
			slog.String("run_id", f.RunID),
			slog.String("stage", f.Stage),
		)
		return nil
	}

	resp, err := n.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    n.from,
		To:      n.to,
		Subject: fmt.Sprintf("Salarios mínimos: falló la actualización (%s)", stageOrUnknown(f.Stage)),
		Html:    failureHTML(f),
		Text:    failureText(f),
		Tags:    []resend.Tag{{Name: "category", Value: "refresh_failure"}},
	})
	if err != nil {
		return fmt.Errorf("failed to send failure email: %w", err)
	}

	n.logger.Info("failure email sent", slog.String("email_id", resp.Id), slog.String("run_id", f.RunID))
	return nil
}

func stageOrUnknown(stage string) string {
	if stage == "" {
		return "desconocida"
	}
	return stage
}

func failureText(f Failure) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ejecución: %s\n", f.RunID)
	fmt.Fprintf(&b, "Etapa: %s\n", stageOrUnknown(f.Stage))
	fmt.Fprintf(&b, "Fuente: %s\n", f.Source)
	fmt.Fprintf(&b, "Fecha: %s\n", f.Occurred.UTC().Format(time.RFC3339))
	if f.Err != nil {
		fmt.Fprintf(&b, "Error: %s\n", f.Err)
	}
	return b.String()
}

func failureHTML(f Failure) string {
	errText := ""
	if f.Err != nil {
		errText = f.Err.Error()
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif;">
  <h2>La actualización programada de salarios mínimos falló</h2>
  <table>
    <tr><td><b>Ejecución</b></td><td>%s</td></tr>
    <tr><td><b>Etapa</b></td><td>%s</td></tr>
    <tr><td><b>Fuente</b></td><td>%s</td></tr>
    <tr><td><b>Fecha</b></td><td>%s</td></tr>
  </table>
  <pre>%s</pre>
  <p>El conjunto de datos anterior sigue publicado.</p>
</body>
</html>`,
		html.EscapeString(f.RunID),
		html.EscapeString(stageOrUnknown(f.Stage)),
		html.EscapeString(f.Source),
		f.Occurred.UTC().Format(time.RFC3339),
		html.EscapeString(errText),
	)
}
