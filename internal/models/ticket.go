package models

import (
	"strings"
	"time"

	"github.com/uptrace/bun"
)

type TransportType string

const (
	TransportBus    TransportType = "Bus"
	TransportTrain  TransportType = "Train"
	TransportPlane  TransportType = "Plane"
	TransportLaunch TransportType = "Launch"
)

// ParseTransportType normalises a user supplied transport type string.
// Matching is case-insensitive; the canonical casing is returned.
func ParseTransportType(s string) (TransportType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bus":
		return TransportBus, true
	case "train":
		return TransportTrain, true
	case "plane":
		return TransportPlane, true
	case "launch":
		return TransportLaunch, true
	}
	return "", false
}

type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationApproved VerificationStatus = "approved"
	VerificationRejected VerificationStatus = "rejected"
)

type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	ID                 string             `bun:"id,pk" json:"id"`
	Title              string             `bun:"title" json:"title"`
	ImageURL           string             `bun:"image_url" json:"image_url,omitempty"`
	From               string             `bun:"from_location" json:"from"`
	To                 string             `bun:"to_location" json:"to"`
	TransportType      TransportType      `bun:"transport_type" json:"transport_type"`
	Price              float64            `bun:"price" json:"price"`
	Quantity           int                `bun:"quantity" json:"quantity"`
	DepartureTime      time.Time          `bun:"departure_time" json:"departure_time"`
	Perks              []string           `bun:"perks" json:"perks"`
	VendorID           string             `bun:"vendor_id" json:"vendor_id"`
	VerificationStatus VerificationStatus `bun:"verification_status" json:"verification_status"`
	IsAdvertised       bool               `bun:"is_advertised" json:"is_advertised"`
	Version            int64              `bun:"version" json:"-"`
	CreatedAt          time.Time          `bun:"created_at" json:"created_at"`
}

// Departed reports whether the departure time has passed.
func (t *Ticket) Departed(now time.Time) bool {
	return !now.Before(t.DepartureTime)
}

// Bookable reports whether new bookings may be created against the ticket.
func (t *Ticket) Bookable(now time.Time) bool {
	return t.VerificationStatus == VerificationApproved && !t.Departed(now)
}
