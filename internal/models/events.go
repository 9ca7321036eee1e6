package models

import "time"

// Lifecycle events streamed to Kafka so downstream services (notifications,
// search indexing, analytics) can follow state changes.

type TicketEvent struct {
	EventType string    `json:"event_type"` // created, approved, rejected, advertised, unadvertised, updated, deleted
	TicketID  string    `json:"ticket_id"`
	VendorID  string    `json:"vendor_id"`
	Timestamp time.Time `json:"timestamp"`
}

type BookingEvent struct {
	EventType  string    `json:"event_type"` // created, accepted, rejected, paid, payment_unreconciled
	BookingID  string    `json:"booking_id"`
	TicketID   string    `json:"ticket_id"`
	UserID     string    `json:"user_id"`
	Quantity   int       `json:"quantity"`
	TotalPrice float64   `json:"total_price"`
	Timestamp  time.Time `json:"timestamp"`
}

type UserEvent struct {
	EventType string    `json:"event_type"` // registered, promoted_vendor, promoted_admin, marked_fraud
	UserID    string    `json:"user_id"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`
}

func NewTicketEvent(eventType string, t Ticket) TicketEvent {
	return TicketEvent{
		EventType: eventType,
		TicketID:  t.ID,
		VendorID:  t.VendorID,
		Timestamp: time.Now().UTC(),
	}
}

func NewBookingEvent(eventType string, b Booking) BookingEvent {
	return BookingEvent{
		EventType:  eventType,
		BookingID:  b.ID,
		TicketID:   b.TicketID,
		UserID:     b.UserID,
		Quantity:   b.Quantity,
		TotalPrice: b.TotalPrice,
		Timestamp:  time.Now().UTC(),
	}
}

func NewUserEvent(eventType string, u User) UserEvent {
	return UserEvent{
		EventType: eventType,
		UserID:    u.ID,
		Role:      u.Role,
		Timestamp: time.Now().UTC(),
	}
}
