// Package recipient manages the batch of people an outreach run targets.
package recipient

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Recipient is one person in a batch. Email is the unique key.
type Recipient struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Position  string `json:"position"`
}

// DuplicateError is returned when a recipient email is already in the batch.
type DuplicateError struct {
	Email string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("recipient %s already in batch", e.Email)
}

// BatchFullError is returned when adding would exceed the batch maximum.
type BatchFullError struct {
	Max int
}

func (e *BatchFullError) Error() string {
	return fmt.Sprintf("too many recipients, maximum %d per batch", e.Max)
}

// Batch holds the current recipient list, de-duplicated by
// case-insensitive email at insertion.
type Batch struct {
	mu         sync.Mutex
	recipients []Recipient
	max        int
}

// NewBatch creates an empty batch. max <= 0 means unlimited.
func NewBatch(max int) *Batch {
	return &Batch{max: max}
}

// Add appends a recipient. Recipients without an email are rejected,
// duplicates return a DuplicateError.
func (b *Batch) Add(r Recipient) error {
	if strings.TrimSpace(r.Email) == "" {
		return fmt.Errorf("email is required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.max > 0 && len(b.recipients) >= b.max {
		return &BatchFullError{Max: b.max}
	}
	for _, existing := range b.recipients {
		if strings.EqualFold(existing.Email, r.Email) {
			return &DuplicateError{Email: r.Email}
		}
	}

	b.recipients = append(b.recipients, r)
	return nil
}

// AddAll adds every recipient in the slice, skipping duplicates.
// It returns the number actually added; a full batch stops the import.
func (b *Batch) AddAll(rs []Recipient) (int, error) {
	added := 0
	for _, r := range rs {
		err := b.Add(r)
		if err == nil {
			added++
			continue
		}
		var dup *DuplicateError
		if errors.As(err, &dup) {
			continue
		}
		return added, err
	}
	return added, nil
}

// Remove deletes the recipient with the given email (case-insensitive).
func (b *Batch) Remove(email string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, r := range b.recipients {
		if strings.EqualFold(r.Email, email) {
			b.recipients = append(b.recipients[:i], b.recipients[i+1:]...)
			return true
		}
	}
	return false
}

// Reset clears the batch.
func (b *Batch) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recipients = nil
}

// List returns a copy of the current recipients in insertion order.
func (b *Batch) List() []Recipient {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Recipient, len(b.recipients))
	copy(out, b.recipients)
	return out
}

// Len returns the number of recipients in the batch.
func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.recipients)
}
