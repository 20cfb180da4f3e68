// Package mailer submits messages through the configured mail provider's
// SMTP submission endpoint.
package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// Settings describe a provider's SMTP submission endpoint.
type Settings struct {
	Host        string
	Port        int
	ImplicitTLS bool // connect over TLS instead of STARTTLS
	SkipVerify  bool // accept any certificate (local bridge only)
}

// providerSettings maps provider names to submission endpoints. ProtonMail
// goes through the local Bridge, which uses a self-signed certificate.
var providerSettings = map[string]Settings{
	"gmail":      {Host: "smtp.gmail.com", Port: 587},
	"outlook":    {Host: "smtp.live.com", Port: 587},
	"protonmail": {Host: "127.0.0.1", Port: 1025, ImplicitTLS: true, SkipVerify: true},
}

// ProviderSettings returns the submission endpoint for a provider name.
func ProviderSettings(provider string) (Settings, error) {
	s, ok := providerSettings[provider]
	if !ok {
		return Settings{}, fmt.Errorf("unknown email provider: %s", provider)
	}
	return s, nil
}

// DeliveryError represents a submission error with type information
type DeliveryError struct {
	Temporary bool
	Message   string
}

func (e *DeliveryError) Error() string {
	return e.Message
}

// Config holds mail account settings for a Mailer.
type Config struct {
	Settings    Settings
	Address     string
	AppPassword string
	Timeout     time.Duration
	MinInterval time.Duration // minimum gap between consecutive sends
}

// Mailer submits messages, pacing consecutive sends by MinInterval.
type Mailer struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	lastSend time.Time

	// submit is swapped out in tests.
	submit func(ctx context.Context, from string, to []string, data []byte) error
}

// New creates a Mailer for the given account.
func New(cfg Config, logger *slog.Logger) *Mailer {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	m := &Mailer{
		cfg:    cfg,
		logger: logger.With("component", "mailer"),
	}
	m.submit = m.submitSMTP
	return m
}

// Send encodes and submits a message. Consecutive calls are spaced at
// least MinInterval apart; the wait respects ctx cancellation.
func (m *Mailer) Send(ctx context.Context, msg *Message) error {
	if msg.To == "" {
		return &DeliveryError{Temporary: false, Message: "no recipient"}
	}

	if err := m.waitTurn(ctx); err != nil {
		return err
	}

	if err := m.submit(ctx, m.cfg.Address, []string{msg.To}, msg.Encode()); err != nil {
		m.logger.Warn("submission failed", "to", msg.To, "error", err)
		return err
	}

	m.logger.Info("message submitted",
		"to", msg.To,
		"subject", msg.Subject,
		"attachment", msg.Attachment != nil,
	)
	return nil
}

// waitTurn blocks until MinInterval has passed since the previous send.
func (m *Mailer) waitTurn(ctx context.Context) error {
	if m.cfg.MinInterval <= 0 {
		return nil
	}

	m.mu.Lock()
	wait := m.cfg.MinInterval - time.Since(m.lastSend)
	if wait > 0 {
		m.mu.Unlock()
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
		m.mu.Lock()
	}
	m.lastSend = time.Now()
	m.mu.Unlock()
	return nil
}

// submitSMTP performs the SMTP submission with PLAIN auth.
func (m *Mailer) submitSMTP(ctx context.Context, from string, to []string, data []byte) error {
	addr := net.JoinHostPort(m.cfg.Settings.Host, strconv.Itoa(m.cfg.Settings.Port))
	tlsConfig := &tls.Config{
		ServerName:         m.cfg.Settings.Host,
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: m.cfg.Settings.SkipVerify,
	}

	var (
		client *smtp.Client
		err    error
	)
	if m.cfg.Settings.ImplicitTLS {
		client, err = smtp.DialTLS(addr, tlsConfig)
	} else {
		client, err = smtp.DialStartTLS(addr, tlsConfig)
	}
	if err != nil {
		return &DeliveryError{
			Temporary: true,
			Message:   fmt.Sprintf("connection failed to %s: %v", addr, err),
		}
	}
	defer client.Close()

	if deadline, ok := ctx.Deadline(); ok {
		client.CommandTimeout = time.Until(deadline)
	} else {
		client.CommandTimeout = m.cfg.Timeout
	}

	auth := sasl.NewPlainClient("", m.cfg.Address, m.cfg.AppPassword)
	if err := client.Auth(auth); err != nil {
		return categorizeError(err, "AUTH")
	}

	if err := client.SendMail(from, to, bytes.NewReader(data)); err != nil {
		return categorizeError(err, "submission")
	}

	client.Quit()
	return nil
}

// smtpCodePattern matches SMTP response codes at word boundaries
var smtpCodePattern = regexp.MustCompile(`\b(4\d{2}|5\d{2})\b`)

// categorizeError determines if an SMTP error is temporary or permanent
func categorizeError(err error, stage string) *DeliveryError {
	msg := fmt.Sprintf("%s failed: %v", stage, err)

	matches := smtpCodePattern.FindStringSubmatch(err.Error())
	if len(matches) > 1 {
		code := matches[1]
		// 5xx codes are permanent errors
		if strings.HasPrefix(code, "5") {
			return &DeliveryError{Temporary: false, Message: msg}
		}
		// 4xx codes are temporary errors
		if strings.HasPrefix(code, "4") {
			return &DeliveryError{Temporary: true, Message: msg}
		}
	}

	// Assume temporary by default
	return &DeliveryError{Temporary: true, Message: msg}
}

// IsTemporaryError checks if the error is temporary
func IsTemporaryError(err error) bool {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Temporary
	}
	return true
}
