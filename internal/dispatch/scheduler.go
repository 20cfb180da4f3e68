// Package dispatch spreads the remaining review queue across a send
// window and fires each email from an independent timer. Scheduling is
// in-memory only: armed sends do not survive a process restart.
package dispatch

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/avetel/outreach/internal/review"
)

// Item is one preview paired with its future send timestamp.
type Item struct {
	Preview     review.Preview `json:"preview"`
	ScheduledAt time.Time      `json:"scheduled_at"`
}

// Result is one fired send, appended in completion order.
type Result struct {
	PreviewID string    `json:"preview_id"`
	Recipient string    `json:"recipient"`
	FiredAt   time.Time `json:"fired_at"`
	Error     string    `json:"error,omitempty"`
}

// Scheduler arms deferred sends over a window with bounded jitter.
type Scheduler struct {
	transport   review.Transport
	window      time.Duration
	jitter      time.Duration
	sendTimeout time.Duration
	logger      *slog.Logger

	rng   *rand.Rand
	rngMu sync.Mutex

	now func() time.Time

	mu      sync.Mutex
	timers  []*time.Timer
	results []Result
	pending int
}

// Config holds scheduler tuning. Zero values fall back to the 12 hour
// window with ±10 minute jitter; a negative Jitter disables jitter.
type Config struct {
	Window      time.Duration
	Jitter      time.Duration
	SendTimeout time.Duration
}

// New creates a scheduler that sends through the given transport. rng
// is injectable for reproducible schedules in tests; nil uses a
// time-seeded source.
func New(transport review.Transport, cfg Config, rng *rand.Rand, logger *slog.Logger) *Scheduler {
	if cfg.Window <= 0 {
		cfg.Window = 12 * time.Hour
	}
	if cfg.Jitter < 0 {
		cfg.Jitter = 0
	} else if cfg.Jitter == 0 {
		cfg.Jitter = 10 * time.Minute
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 2 * time.Minute
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		transport:   transport,
		window:      cfg.Window,
		jitter:      cfg.Jitter,
		sendTimeout: cfg.SendTimeout,
		logger:      logger,
		rng:         rng,
		now:         time.Now,
	}
}

// ScheduleRemaining takes the remaining slice of a reviewing session,
// marks all of it sent, and arms one timer per item. The session
// transitions to Complete before any timer has fired: its sent count is
// an optimistic projection, not a delivery confirmation.
func (d *Scheduler) ScheduleRemaining(session *review.Session) ([]Item, error) {
	remaining, err := session.MarkRemainingSent()
	if err != nil {
		return nil, err
	}

	now := d.now()
	items := make([]Item, len(remaining))
	for i, p := range remaining {
		items[i] = Item{Preview: p, ScheduledAt: d.scheduledAt(now, i, len(remaining))}
	}

	d.mu.Lock()
	for _, item := range items {
		delay := item.ScheduledAt.Sub(d.now())
		if delay < 0 {
			delay = 0
		}
		p := item.Preview
		d.pending++
		d.timers = append(d.timers, time.AfterFunc(delay, func() {
			d.fire(p)
		}))

		d.logger.Info("email scheduled",
			"recipient", p.Recipient.Email,
			"scheduled_at", item.ScheduledAt,
		)
	}
	d.mu.Unlock()

	d.logger.Info("bulk schedule armed", "count", len(items), "window", d.window)
	return items, nil
}

// scheduledAt spreads item i of n evenly across the window and adds
// uniform jitter in [-jitter, +jitter]. Jittered timestamps may swap
// two adjacent items; absolute order is not guaranteed.
func (d *Scheduler) scheduledAt(now time.Time, i, n int) time.Time {
	base := time.Duration(i) * (d.window / time.Duration(n))

	d.rngMu.Lock()
	offset := time.Duration((d.rng.Float64()*2 - 1) * float64(d.jitter))
	d.rngMu.Unlock()

	at := now.Add(base + offset)
	if at.Before(now) {
		return now
	}
	return at
}

// fire sends one scheduled preview and records the outcome. Failures
// are logged, never retried.
func (d *Scheduler) fire(p review.Preview) {
	ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
	defer cancel()

	err := d.transport.Send(ctx, p)

	res := Result{
		PreviewID: p.ID,
		Recipient: p.Recipient.Email,
		FiredAt:   d.now(),
	}
	if err != nil {
		res.Error = err.Error()
		d.logger.Error("scheduled send failed", "recipient", p.Recipient.Email, "error", err)
	} else {
		d.logger.Info("scheduled email sent", "recipient", p.Recipient.Email)
	}

	d.mu.Lock()
	d.results = append(d.results, res)
	if d.pending > 0 {
		d.pending--
	}
	d.mu.Unlock()
}

// Cancel stops all armed timers that have not fired yet and returns how
// many were retracted.
func (d *Scheduler) Cancel() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	cancelled := 0
	for _, t := range d.timers {
		if t.Stop() {
			cancelled++
		}
	}
	d.timers = nil
	d.pending -= cancelled
	if d.pending < 0 {
		d.pending = 0
	}

	if cancelled > 0 {
		d.logger.Info("scheduled sends cancelled", "count", cancelled)
	}
	return cancelled
}

// Results returns a copy of the completion log, in completion order.
func (d *Scheduler) Results() []Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Result(nil), d.results...)
}

// Pending returns how many armed sends have not fired or been
// cancelled.
func (d *Scheduler) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}
