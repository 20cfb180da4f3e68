package dispatch

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/avetel/outreach/internal/recipient"
	"github.com/avetel/outreach/internal/review"
)

type countingTransport struct {
	mu   sync.Mutex
	sent []review.Preview
	fail bool
}

func (c *countingTransport) Send(ctx context.Context, p review.Preview) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return fmt.Errorf("relay unavailable")
	}
	c.sent = append(c.sent, p)
	return nil
}

func (c *countingTransport) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func startedSession(t *testing.T, transport review.Transport, n int) *review.Session {
	t.Helper()
	s := review.NewSession(transport, nil)
	ps := make([]review.Preview, n)
	for i := range ps {
		ps[i] = review.Preview{
			ID:        fmt.Sprintf("p%d", i),
			Recipient: recipient.Recipient{Email: fmt.Sprintf("r%d@x.com", i)},
		}
	}
	if err := s.Start(ps); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestScheduledTimestampsWithinWindow(t *testing.T) {
	transport := &countingTransport{}
	d := New(transport, Config{Window: 12 * time.Hour, Jitter: 10 * time.Minute}, rand.New(rand.NewSource(7)), nil)
	session := startedSession(t, transport, 20)

	before := time.Now()
	items, err := d.ScheduleRemaining(session)
	if err != nil {
		t.Fatalf("ScheduleRemaining() error = %v", err)
	}
	d.Cancel()

	if len(items) != 20 {
		t.Fatalf("scheduled %d items, want 20", len(items))
	}

	latest := before.Add(12*time.Hour + 10*time.Minute + time.Second)
	for i, item := range items {
		if item.ScheduledAt.Before(before) {
			t.Errorf("item %d scheduled in the past: %v", i, item.ScheduledAt)
		}
		if item.ScheduledAt.After(latest) {
			t.Errorf("item %d scheduled past window end: %v", i, item.ScheduledAt)
		}
	}

	// Pairwise distinct with high probability; assert for this seed.
	seen := make(map[time.Time]bool)
	for _, item := range items {
		if seen[item.ScheduledAt] {
			t.Errorf("duplicate timestamp %v", item.ScheduledAt)
		}
		seen[item.ScheduledAt] = true
	}
}

func TestScheduleRemainingCompletesSession(t *testing.T) {
	transport := &countingTransport{}
	d := New(transport, Config{Window: time.Hour}, rand.New(rand.NewSource(1)), nil)
	session := startedSession(t, transport, 3)

	if _, err := d.ScheduleRemaining(session); err != nil {
		t.Fatalf("ScheduleRemaining() error = %v", err)
	}
	defer d.Cancel()

	// Marked sent before any timer fires.
	if session.State() != review.StateComplete {
		t.Errorf("session state = %v, want complete", session.State())
	}
	if sum := session.Summary(); sum.Sent != 3 {
		t.Errorf("Summary().Sent = %d, want 3", sum.Sent)
	}
}

func TestScheduleRemainingRequiresReviewing(t *testing.T) {
	transport := &countingTransport{}
	d := New(transport, Config{}, nil, nil)
	session := review.NewSession(transport, nil)

	if _, err := d.ScheduleRemaining(session); err == nil {
		t.Fatal("ScheduleRemaining() on unstarted session expected error")
	}
}

func TestTimersFireAndRecordResults(t *testing.T) {
	transport := &countingTransport{}
	d := New(transport, Config{Window: 40 * time.Millisecond, Jitter: -1}, rand.New(rand.NewSource(1)), nil)
	session := startedSession(t, transport, 4)

	if _, err := d.ScheduleRemaining(session); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for transport.count() < 4 {
		select {
		case <-deadline:
			t.Fatalf("only %d of 4 scheduled sends fired", transport.count())
		case <-time.After(5 * time.Millisecond):
		}
	}

	results := d.Results()
	if len(results) != 4 {
		t.Fatalf("Results() = %d entries, want 4", len(results))
	}
	for _, r := range results {
		if r.Error != "" {
			t.Errorf("result %s has error %q", r.Recipient, r.Error)
		}
	}
	if d.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", d.Pending())
	}
}

func TestFailedSendsRecorded(t *testing.T) {
	transport := &countingTransport{fail: true}
	d := New(transport, Config{Window: 20 * time.Millisecond, Jitter: -1}, rand.New(rand.NewSource(1)), nil)
	session := startedSession(t, transport, 2)

	if _, err := d.ScheduleRemaining(session); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for len(d.Results()) < 2 {
		select {
		case <-deadline:
			t.Fatalf("only %d of 2 results recorded", len(d.Results()))
		case <-time.After(5 * time.Millisecond):
		}
	}

	for _, r := range d.Results() {
		if r.Error == "" {
			t.Errorf("result %s should carry the transport error", r.Recipient)
		}
	}
}

func TestCancelStopsArmedTimers(t *testing.T) {
	transport := &countingTransport{}
	d := New(transport, Config{Window: time.Hour, Jitter: -1}, rand.New(rand.NewSource(1)), nil)
	session := startedSession(t, transport, 5)

	if _, err := d.ScheduleRemaining(session); err != nil {
		t.Fatal(err)
	}

	// The first slot fires immediately; let it land so the remaining
	// four are the only armed timers.
	deadline := time.After(2 * time.Second)
	for transport.count() < 1 {
		select {
		case <-deadline:
			t.Fatal("first scheduled send never fired")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancelled := d.Cancel()
	if cancelled != 4 {
		t.Errorf("Cancel() = %d, want 4", cancelled)
	}
	if d.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", d.Pending())
	}

	time.Sleep(20 * time.Millisecond)
	if transport.count() != 1 {
		t.Errorf("cancelled timers still fired: %d sends", transport.count())
	}
}
