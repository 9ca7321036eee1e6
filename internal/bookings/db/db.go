package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"ticket-marketplace/internal/domain"
	"ticket-marketplace/internal/models"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) CreateBooking(ctx context.Context, booking models.Booking) error {
	_, err := d.Bun.NewInsert().Model(&booking).Exec(ctx)
	return err
}

func (d *DB) GetBookingByID(ctx context.Context, id string) (*models.Booking, error) {
	var booking models.Booking
	err := d.Bun.NewSelect().
		Model(&booking).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// SetStatus moves a booking between states with the current state as a
// guard, so two concurrent decisions cannot both land.
func (d *DB) SetStatus(ctx context.Context, id string, from, to models.BookingStatus) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Booking)(nil)).
		Set("status = ?", to).
		Where("id = ?", id).
		Where("status = ?", from).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkPaid stamps payment metadata together with the guarded transition.
func (d *DB) MarkPaid(ctx context.Context, booking models.Booking) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model(&booking).
		Column("status", "paid_at", "receipt_qr").
		Where("id = ?", booking.ID).
		Where("status = ?", models.BookingAccepted).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (d *DB) ListByUser(ctx context.Context, userID string) ([]models.Booking, error) {
	var bookings []models.Booking
	err := d.Bun.NewSelect().
		Model(&bookings).
		Where("user_id = ?", userID).
		Order("booking_date DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

// ListPaidByUser backs the transaction history page.
func (d *DB) ListPaidByUser(ctx context.Context, userID string) ([]models.Booking, error) {
	var bookings []models.Booking
	err := d.Bun.NewSelect().
		Model(&bookings).
		Where("user_id = ?", userID).
		Where("status = ?", models.BookingPaid).
		Order("paid_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

// ListForVendor returns bookings made against any of the vendor's tickets.
func (d *DB) ListForVendor(ctx context.Context, vendorID string) ([]models.Booking, error) {
	var bookings []models.Booking
	err := d.Bun.NewSelect().
		Model(&bookings).
		Join("JOIN tickets AS t ON t.id = booking.ticket_id").
		Where("t.vendor_id = ?", vendorID).
		Order("booking.booking_date DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

// ListByTicket returns bookings against one ticket, any status.
func (d *DB) ListByTicket(ctx context.Context, ticketID string) ([]models.Booking, error) {
	var bookings []models.Booking
	err := d.Bun.NewSelect().
		Model(&bookings).
		Where("ticket_id = ?", ticketID).
		Order("booking_date DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return bookings, nil
}
