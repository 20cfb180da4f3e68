// Package review implements the human-in-the-loop walk over a fixed
// ordered list of precomputed email previews.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/avetel/outreach/internal/recipient"
)

// Preview is a fully personalized (subject, body) pair for one
// recipient, awaiting human review before send. Subject and body may be
// hand-edited at the review step; everything else is fixed at creation.
type Preview struct {
	ID             string              `json:"id"`
	Recipient      recipient.Recipient `json:"recipient"`
	Subject        string              `json:"subject"`
	Body           string              `json:"body"`
	VariationIndex int                 `json:"variation_index"`
}

// Transport performs the actual send for one preview.
type Transport interface {
	Send(ctx context.Context, p Preview) error
}

// State of a review session.
type State string

const (
	StateNotStarted State = "not_started"
	StateReviewing  State = "reviewing"
	StateComplete   State = "complete"
)

// Session walk errors.
var (
	ErrNoPreviews     = errors.New("nothing to review")
	ErrAlreadyStarted = errors.New("review already started")
	ErrNotReviewing   = errors.New("no review in progress")
	ErrSendInFlight   = errors.New("a send is already in progress")
)

// Summary reports the outcome of a session. Remaining counts items that
// ended up in neither set (failed sends and anything cut off by Stop).
type Summary struct {
	Total     int `json:"total"`
	Sent      int `json:"sent"`
	Skipped   int `json:"skipped"`
	Remaining int `json:"remaining"`
}

// Session is the stateful walk over an ordered preview list. The cursor
// only advances; sent and skipped are disjoint. Only one send may be
// outstanding at a time; a second concurrent call is rejected rather
// than queued.
type Session struct {
	mu        sync.Mutex
	state     State
	previews  []Preview
	cursor    int
	sent      []Preview
	skipped   []Preview
	inFlight  bool
	transport Transport
	logger    *slog.Logger
}

// NewSession creates a session that sends through the given transport.
func NewSession(transport Transport, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		state:     StateNotStarted,
		transport: transport,
		logger:    logger,
	}
}

// Start begins reviewing the given previews. The list must be non-empty
// and a session starts exactly once.
func (s *Session) Start(previews []Preview) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateNotStarted {
		return ErrAlreadyStarted
	}
	if len(previews) == 0 {
		return ErrNoPreviews
	}

	s.previews = append([]Preview(nil), previews...)
	s.cursor = 0
	s.sent = nil
	s.skipped = nil
	s.state = StateReviewing

	s.logger.Info("review started", "total", len(s.previews))
	return nil
}

// Current returns the preview under the cursor.
func (s *Session) Current() (Preview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReviewing {
		return Preview{}, ErrNotReviewing
	}
	return s.previews[s.cursor], nil
}

// SendCurrent sends the preview under the cursor with the reviewer's
// edited subject and body, then advances. On transport failure the
// cursor still advances and the item lands in neither set: failures are
// reported, never retried, and never stall the queue. The transport
// error, if any, is returned for reporting.
func (s *Session) SendCurrent(ctx context.Context, subject, body string) error {
	s.mu.Lock()
	if s.state != StateReviewing {
		s.mu.Unlock()
		return ErrNotReviewing
	}
	if s.inFlight {
		s.mu.Unlock()
		return ErrSendInFlight
	}
	s.inFlight = true
	p := s.previews[s.cursor]
	p.Subject = subject
	p.Body = body
	s.mu.Unlock()

	err := s.transport.Send(ctx, p)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false

	if err != nil {
		s.logger.Error("send failed", "recipient", p.Recipient.Email, "error", err)
	} else {
		s.sent = append(s.sent, p)
		s.logger.Info("email sent", "recipient", p.Recipient.Email)
	}

	s.advanceLocked()

	if err != nil {
		return fmt.Errorf("send to %s: %w", p.Recipient.Email, err)
	}
	return nil
}

// SkipCurrent records the preview under the cursor as skipped and
// advances. No transport call is made.
func (s *Session) SkipCurrent() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReviewing {
		return ErrNotReviewing
	}
	if s.inFlight {
		return ErrSendInFlight
	}

	p := s.previews[s.cursor]
	s.skipped = append(s.skipped, p)
	s.logger.Info("email skipped", "recipient", p.Recipient.Email)

	s.advanceLocked()
	return nil
}

// Stop forces the session to Complete regardless of cursor position.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReviewing {
		return ErrNotReviewing
	}
	s.state = StateComplete
	s.logSummaryLocked()
	return nil
}

// MarkRemainingSent hands the remaining previews over to bulk
// scheduling: every item from the cursor onward is recorded as sent and
// the session completes immediately. "Sent" here means scheduled, not
// delivered; the summary is an optimistic projection.
func (s *Session) MarkRemainingSent() ([]Preview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReviewing {
		return nil, ErrNotReviewing
	}
	if s.inFlight {
		return nil, ErrSendInFlight
	}

	remaining := append([]Preview(nil), s.previews[s.cursor:]...)
	s.sent = append(s.sent, remaining...)
	s.cursor = len(s.previews)
	s.state = StateComplete
	s.logSummaryLocked()
	return remaining, nil
}

// advanceLocked moves the cursor and completes the session when it
// passes the last preview. Caller holds s.mu.
func (s *Session) advanceLocked() {
	s.cursor++
	if s.cursor >= len(s.previews) {
		s.state = StateComplete
		s.logSummaryLocked()
	}
}

func (s *Session) logSummaryLocked() {
	sum := s.summaryLocked()
	s.logger.Info("review complete",
		"total", sum.Total,
		"sent", sum.Sent,
		"skipped", sum.Skipped,
		"remaining", sum.Remaining,
	)
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Progress returns the 0-based cursor and the total preview count.
func (s *Session) Progress() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor, len(s.previews)
}

// Summary returns the session totals.
func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summaryLocked()
}

func (s *Session) summaryLocked() Summary {
	total := len(s.previews)
	return Summary{
		Total:     total,
		Sent:      len(s.sent),
		Skipped:   len(s.skipped),
		Remaining: total - len(s.sent) - len(s.skipped),
	}
}
