package model

import (
	"strings"
	"time"
)

// Address is the postal address of a theater.
type Address struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	ZipCode string `json:"zipCode,omitempty"`
	Country string `json:"country,omitempty"`
}

// Theater is a venue with one or more halls.
type Theater struct {
	ID            uint64    `json:"id"`
	Name          string    `json:"name"`
	Address       Address   `json:"address"`
	ContactNumber string    `json:"contactNumber"`
	Email         string    `json:"email"`
	Halls         []Hall    `json:"halls"`
	Amenities     []string  `json:"amenities"`
	IsActive      bool      `json:"isActive"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Hall looks up a hall by name.
func (t *Theater) Hall(name string) (*Hall, bool) {
	for i := range t.Halls {
		if t.Halls[i].Name == name {
			return &t.Halls[i], true
		}
	}
	return nil, false
}

// Validate checks the theater fields and every hall it carries.
func (t *Theater) Validate() error {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return invalid("name", "is required")
	}
	if strings.TrimSpace(t.ContactNumber) == "" {
		return invalid("contactNumber", "is required")
	}
	if strings.TrimSpace(t.Email) == "" {
		return invalid("email", "is required")
	}
	names := make(map[string]struct{}, len(t.Halls))
	for i := range t.Halls {
		if err := t.Halls[i].Validate(); err != nil {
			return err
		}
		if _, dup := names[t.Halls[i].Name]; dup {
			return invalid("halls", "duplicate hall name %q", t.Halls[i].Name)
		}
		names[t.Halls[i].Name] = struct{}{}
	}
	return nil
}

// Movie is a film that can be scheduled into shows.
type Movie struct {
	ID          uint64    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Duration    int       `json:"duration"` // minutes
	Genre       []string  `json:"genre"`
	Language    string    `json:"language"`
	ReleaseDate string    `json:"releaseDate,omitempty"`
	Rating      float64   `json:"rating"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Validate checks the movie fields.
func (m *Movie) Validate() error {
	m.Title = strings.TrimSpace(m.Title)
	if m.Title == "" {
		return invalid("title", "is required")
	}
	if m.Duration <= 0 {
		return invalid("duration", "must be positive")
	}
	if m.Rating < 0 || m.Rating > 10 {
		return invalid("rating", "must be between 0 and 10")
	}
	return nil
}

// TheaterFilter selects theaters for listing.
type TheaterFilter struct {
	City       string // case-insensitive substring
	ActiveOnly bool
	Page       int
	Limit      int
}

// MovieFilter selects movies for listing.
type MovieFilter struct {
	Genre      string
	ActiveOnly bool
	Page       int
	Limit      int
}

// Paginate clamps page and limit to the listing defaults and returns the
// row offset.
func Paginate(page, limit *int) int {
	if *page < 1 {
		*page = 1
	}
	if *limit < 1 {
		*limit = 10
	}
	if *limit > 100 {
		*limit = 100
	}
	return (*page - 1) * *limit
}
