// Package store persists named drafts and message templates in bbolt.
// Records are keyed by a slug of their display name, so saving under an
// existing name overwrites the previous record.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketDrafts    = []byte("drafts")
	bucketTemplates = []byte("templates")
)

// Draft is a saved base message together with its variations.
type Draft struct {
	Name      string    `json:"name"`
	Message   string    `json:"message"`
	Generated []string  `json:"generated,omitempty"`
	Manual    []string  `json:"manual,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Template is a reusable message template for a job role.
type Template struct {
	Name      string    `json:"name"`
	JobTitle  string    `json:"job_title"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Keywords  []string  `json:"keywords,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store provides draft and template persistence
type Store struct {
	db *bolt.DB
}

// New creates the store buckets if needed
func New(db *bolt.DB) (*Store, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketDrafts); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketTemplates); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create store buckets: %w", err)
	}
	return &Store{db: db}, nil
}

// Slug derives the storage key for a display name: lowercase with every
// non-alphanumeric run collapsed to underscores.
func Slug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// PutDraft saves a draft under the slug of its name. An existing draft
// with the same slug is overwritten; its creation time is preserved.
func (s *Store) PutDraft(ctx context.Context, d *Draft) error {
	if d.Name == "" {
		return fmt.Errorf("draft name is required")
	}

	key := []byte(Slug(d.Name))
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketDrafts)

		now := time.Now()
		d.UpdatedAt = now
		d.CreatedAt = now
		if existing := bucket.Get(key); existing != nil {
			var prev Draft
			if err := json.Unmarshal(existing, &prev); err == nil {
				d.CreatedAt = prev.CreatedAt
			}
		}

		data, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("failed to marshal draft: %w", err)
		}
		return bucket.Put(key, data)
	})
}

// GetDraft retrieves a draft by name or slug. Returns nil if not found.
func (s *Store) GetDraft(ctx context.Context, name string) (*Draft, error) {
	var draft *Draft

	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketDrafts).Get([]byte(Slug(name)))
		if data == nil {
			return nil
		}
		draft = &Draft{}
		return json.Unmarshal(data, draft)
	})

	return draft, err
}

// ListDrafts returns all saved drafts in key order
func (s *Store) ListDrafts(ctx context.Context) ([]*Draft, error) {
	var drafts []*Draft

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketDrafts).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var d Draft
			if err := json.Unmarshal(v, &d); err != nil {
				continue
			}
			drafts = append(drafts, &d)
		}
		return nil
	})

	return drafts, err
}

// DeleteDraft removes a draft by name or slug
func (s *Store) DeleteDraft(ctx context.Context, name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDrafts).Delete([]byte(Slug(name)))
	})
}

// PutTemplate saves a template under the slug of its name. Keywords are
// extracted from the template text if none are set.
func (s *Store) PutTemplate(ctx context.Context, t *Template) error {
	if t.Name == "" {
		return fmt.Errorf("template name is required")
	}

	if len(t.Keywords) == 0 {
		t.Keywords = ExtractKeywords(t.Text)
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}

	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal template: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTemplates).Put([]byte(Slug(t.Name)), data)
	})
}

// GetTemplate retrieves a template by name or slug. Returns nil if not found.
func (s *Store) GetTemplate(ctx context.Context, name string) (*Template, error) {
	var tmpl *Template

	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketTemplates).Get([]byte(Slug(name)))
		if data == nil {
			return nil
		}
		tmpl = &Template{}
		return json.Unmarshal(data, tmpl)
	})

	return tmpl, err
}

// ListTemplates returns all saved templates in key order
func (s *Store) ListTemplates(ctx context.Context) ([]*Template, error) {
	var templates []*Template

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketTemplates).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var t Template
			if err := json.Unmarshal(v, &t); err != nil {
				continue
			}
			templates = append(templates, &t)
		}
		return nil
	})

	return templates, err
}

// DeleteTemplate removes a template by name or slug
func (s *Store) DeleteTemplate(ctx context.Context, name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTemplates).Delete([]byte(Slug(name)))
	})
}

// commonWords are skipped during keyword extraction.
var commonWords = map[string]bool{
	"the": true, "and": true, "or": true, "but": true, "in": true,
	"on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "from": true, "as": true, "is": true,
	"was": true, "are": true, "were": true, "be": true, "been": true,
	"have": true, "has": true, "had": true, "do": true, "does": true,
	"did": true, "will": true, "would": true, "could": true, "should": true,
}

// ExtractKeywords returns up to ten distinctive lowercase words from the
// text, skipping short words and common stopwords.
func ExtractKeywords(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == ' ' || r == '\n' || r == '\t' {
			return r
		}
		return ' '
	}, strings.ToLower(text))

	var keywords []string
	for _, word := range strings.Fields(cleaned) {
		if len(word) <= 3 || commonWords[word] {
			continue
		}
		keywords = append(keywords, word)
		if len(keywords) == 10 {
			break
		}
	}
	return keywords
}
