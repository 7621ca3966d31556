// Package queue defines booking lifecycle events and moves them over
// RabbitMQ.
package queue

import (
	"time"

	"github.com/iliyamo/movie-booking/internal/model"
)

// BookingEventsQueue is the durable queue carrying every lifecycle event.
const BookingEventsQueue = "booking.events"

// Event types.
const (
	EventBookingCreated   = "booking.created"
	EventBookingConfirmed = "booking.confirmed"
	EventBookingCancelled = "booking.cancelled"
	EventBookingExpired   = "booking.expired"
)

// BookingEvent is published whenever a booking is created or changes status.
// It carries enough for downstream consumers to log, notify or aggregate
// without reading the primary store.
type BookingEvent struct {
	Type             string   `json:"type"`
	BookingID        string   `json:"booking_id"`
	ShowID           uint64   `json:"show_id"`
	MovieID          uint64   `json:"movie_id"`
	TheaterID        uint64   `json:"theater_id"`
	Hall             string   `json:"hall"`
	Date             string   `json:"date"`
	StartTime        string   `json:"start_time"`
	SeatLabels       []string `json:"seats"`
	TotalAmountCents uint32   `json:"total_amount_cents"`
	CustomerEmail    string   `json:"customer_email"`
	Status           string   `json:"status"`
	OccurredAt       string   `json:"occurred_at"`
}

// EventTypeFor maps a booking status to the event announcing it.
func EventTypeFor(s model.BookingStatus) string {
	switch s {
	case model.BookingConfirmed:
		return EventBookingConfirmed
	case model.BookingCancelled:
		return EventBookingCancelled
	case model.BookingExpired:
		return EventBookingExpired
	}
	return EventBookingCreated
}

// NewBookingEvent snapshots b into an event of the given type.
func NewBookingEvent(typ string, b *model.Booking, at time.Time) BookingEvent {
	labels := make([]string, len(b.Seats))
	for i, s := range b.Seats {
		labels[i] = s.SeatNumber
	}
	return BookingEvent{
		Type:             typ,
		BookingID:        b.BookingID,
		ShowID:           b.ShowID,
		MovieID:          b.MovieID,
		TheaterID:        b.TheaterID,
		Hall:             b.Hall,
		Date:             b.Date,
		StartTime:        b.StartTime,
		SeatLabels:       labels,
		TotalAmountCents: b.TotalAmountCents,
		CustomerEmail:    b.Email,
		Status:           string(b.Status),
		OccurredAt:       at.UTC().Format(time.RFC3339),
	}
}
