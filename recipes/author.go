package recipes

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Author is the author aggregate root.
type Author struct {
	id        string
	name      string
	country   string
	tags      []Tag
	discarded bool
	version   int64
	createdAt time.Time
}

// NewAuthor returns an unsaved author with a fresh id.
func NewAuthor(name, country string) (*Author, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &FieldError{Field: "name", Message: "is required"}
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("author id: %w", err)
	}
	return &Author{
		id:        id.String(),
		name:      name,
		country:   strings.ToUpper(strings.TrimSpace(country)),
		createdAt: time.Now().UTC(),
	}, nil
}

func (a *Author) ID() string                  { return a.id }
func (a *Author) EntityID() string            { return a.id }
func (a *Author) Name() string                { return a.name }
func (a *Author) Country() string             { return a.country }
func (a *Author) CreatedAt() time.Time        { return a.createdAt }
func (a *Author) Version() int64              { return a.version }
func (a *Author) Discarded() bool             { return a.discarded }
func (a *Author) SetDiscarded(discarded bool) { a.discarded = discarded }
func (a *Author) Tags() []Tag                 { return append([]Tag(nil), a.tags...) }

// Rename changes the display name.
func (a *Author) Rename(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &FieldError{Field: "name", Message: "is required"}
	}
	a.name = name
	a.version++
	return nil
}

// Relocate changes the ISO country code.
func (a *Author) Relocate(country string) {
	a.country = strings.ToUpper(strings.TrimSpace(country))
	a.version++
}

// SetTags replaces the author's tags.
func (a *Author) SetTags(tags []Tag) {
	a.tags = append([]Tag(nil), tags...)
	a.version++
}

// Discard marks the author for soft deletion on the next Persist.
func (a *Author) Discard() {
	a.discarded = true
	a.version++
}
