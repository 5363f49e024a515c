// Package notify delivers price-drop signals raised by reconciliation.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"

	"github.com/aluiziolira/go-price-tracker/models"
)

// Notifier receives a signal when a reconciled price lands at or below
// the product's target price. Implementations must not fail the caller;
// delivery problems are theirs to log.
type Notifier interface {
	PriceDrop(ctx context.Context, product *models.Product, newPrice float64)
}

// LogNotifier records price drops as structured log lines.
type LogNotifier struct{}

func (LogNotifier) PriceDrop(_ context.Context, product *models.Product, newPrice float64) {
	target := 0.0
	if product.TargetPrice != nil {
		target = *product.TargetPrice
	}
	slog.Warn("price drop",
		slog.String("product_id", product.ID.String()),
		slog.String("name", product.Name),
		slog.String("url", product.URL),
		slog.Float64("price", newPrice),
		slog.Float64("target", target),
	)
}

// SMTPNotifier emails price drops to a fixed recipient.
type SMTPNotifier struct {
	host     string
	port     string
	username string
	password string
	to       string
}

// NewSMTPNotifier validates the connection settings up front so a
// misconfigured mailer fails at startup, not mid-batch.
func NewSMTPNotifier(host, port, username, password, to string) (*SMTPNotifier, error) {
	if host == "" {
		return nil, fmt.Errorf("notify: smtp host not set")
	}
	if port == "" {
		return nil, fmt.Errorf("notify: smtp port not set")
	}
	if to == "" {
		return nil, fmt.Errorf("notify: recipient not set")
	}
	return &SMTPNotifier{host: host, port: port, username: username, password: password, to: to}, nil
}

// PriceDrop sends the alert email. Errors are logged and swallowed so a
// flaky mail server cannot fail a reconciliation cycle.
func (s *SMTPNotifier) PriceDrop(_ context.Context, product *models.Product, newPrice float64) {
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	auth := smtp.PlainAuth("", s.username, s.password, s.host)

	if err := smtp.SendMail(addr, auth, s.username, []string{s.to}, s.message(product, newPrice)); err != nil {
		slog.Error("price drop email failed",
			slog.String("product_id", product.ID.String()),
			slog.String("to", s.to),
			slog.Any("error", err),
		)
		return
	}

	slog.Info("price drop email sent",
		slog.String("product_id", product.ID.String()),
		slog.String("to", s.to),
	)
}

func (s *SMTPNotifier) message(product *models.Product, newPrice float64) []byte {
	subject := fmt.Sprintf("Price drop: %s", product.Name)
	body := fmt.Sprintf("%s is now %.2f %s.\r\n\r\n%s\r\n", product.Name, newPrice, product.Currency, product.URL)
	if product.TargetPrice != nil {
		body = fmt.Sprintf("%s is now %.2f %s (target %.2f).\r\n\r\n%s\r\n",
			product.Name, newPrice, product.Currency, *product.TargetPrice, product.URL)
	}

	return []byte(
		"From: " + s.username + "\r\n" +
			"To: " + s.to + "\r\n" +
			"Subject: " + subject + "\r\n" +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/plain; charset=UTF-8\r\n" +
			"\r\n" +
			body,
	)
}
