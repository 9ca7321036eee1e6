package models

import (
	"time"

	"github.com/uptrace/bun"
)

type BookingStatus string

const (
	BookingPending  BookingStatus = "pending"
	BookingAccepted BookingStatus = "accepted"
	BookingRejected BookingStatus = "rejected"
	BookingPaid     BookingStatus = "paid"

	// BookingExpired is a derived display classification for accepted
	// bookings whose departure has passed unpaid. It is never stored.
	BookingExpired = "expired"
)

type Booking struct {
	bun.BaseModel `bun:"table:bookings"`

	ID          string        `bun:"id,pk" json:"id"`
	TicketID    string        `bun:"ticket_id" json:"ticket_id"`
	UserID      string        `bun:"user_id" json:"user_id"`
	Quantity    int           `bun:"quantity" json:"quantity"`
	TotalPrice  float64       `bun:"total_price" json:"total_price"`
	Status      BookingStatus `bun:"status" json:"status"`
	BookingDate time.Time     `bun:"booking_date" json:"booking_date"`
	PaidAt      time.Time     `bun:"paid_at,nullzero" json:"paid_at,omitempty"`
	ReceiptQR   []byte        `bun:"receipt_qr,nullzero" json:"-"`
}

// DisplayStatus classifies the booking for presentation. Accepted bookings
// whose departure has passed unpaid read as "expired"; stored state is
// untouched.
func (b *Booking) DisplayStatus(departure, now time.Time) string {
	if b.Status == BookingAccepted && !now.Before(departure) {
		return BookingExpired
	}
	return string(b.Status)
}
