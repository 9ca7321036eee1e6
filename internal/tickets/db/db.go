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

// GetTicketByID fetches one ticket or domain.ErrNotFound.
func (d *DB) GetTicketByID(ctx context.Context, id string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (d *DB) CreateTicket(ctx context.Context, ticket models.Ticket) error {
	_, err := d.Bun.NewInsert().Model(&ticket).Exec(ctx)
	return err
}

// UpdateTicket rewrites vendor-editable fields. Verification status and the
// advertisement flag go through their own guarded updates.
func (d *DB) UpdateTicket(ctx context.Context, ticket models.Ticket) error {
	res, err := d.Bun.NewUpdate().
		Model(&ticket).
		Column("title", "image_url", "from_location", "to_location", "transport_type",
			"price", "quantity", "departure_time", "perks").
		Where("id = ?", ticket.ID).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (d *DB) DeleteTicket(ctx context.Context, id string) error {
	res, err := d.Bun.NewDelete().
		Model((*models.Ticket)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// SetVerificationStatus moves a ticket between verification states with the
// current state as a guard. Returns false when the guard did not match,
// meaning the ticket was not in the expected state anymore.
func (d *DB) SetVerificationStatus(ctx context.Context, id string, from, to models.VerificationStatus) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("verification_status = ?", to).
		Set("version = version + 1").
		Where("id = ?", id).
		Where("verification_status = ?", from).
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

// SetAdvertised flips the advertisement flag. Guarded on approved status
// and on the current flag value, so the flag can never be set on pending
// or rejected tickets, and racing toggles resolve to exactly one winner.
// The caller pairs each true result with one slot acquire or release;
// without the flag guard two racing toggles would both report success and
// desynchronize the slot counter.
func (d *DB) SetAdvertised(ctx context.Context, id string, advertised bool) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("is_advertised = ?", advertised).
		Set("version = version + 1").
		Where("id = ?", id).
		Where("verification_status = ?", models.VerificationApproved).
		Where("is_advertised = ?", !advertised).
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

// ReserveSeats decrements remaining quantity by n if the version still
// matches and enough seats remain. Returns false on a version conflict or
// insufficient quantity; the caller distinguishes by reloading.
func (d *DB) ReserveSeats(ctx context.Context, id string, n int, version int64) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("quantity = quantity - ?", n).
		Set("version = version + 1").
		Where("id = ?", id).
		Where("version = ?", version).
		Where("quantity >= ?", n).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// ReleaseSeats gives seats back after a failed accept.
func (d *DB) ReleaseSeats(ctx context.Context, id string, n int) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("quantity = quantity + ?", n).
		Set("version = version + 1").
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// ListApproved returns publicly browsable tickets: approved, and not owned
// by a vendor flagged as fraud.
func (d *DB) ListApproved(ctx context.Context) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Join("JOIN users AS vendor ON vendor.id = ticket.vendor_id").
		Where("ticket.verification_status = ?", models.VerificationApproved).
		Where("vendor.is_fraud = ?", false).
		Order("ticket.created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

// ListAdvertised returns the featured set for the homepage.
func (d *DB) ListAdvertised(ctx context.Context) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Join("JOIN users AS vendor ON vendor.id = ticket.vendor_id").
		Where("ticket.is_advertised = ?", true).
		Where("ticket.verification_status = ?", models.VerificationApproved).
		Where("vendor.is_fraud = ?", false).
		Order("ticket.created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

func (d *DB) ListByVendor(ctx context.Context, vendorID string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("vendor_id = ?", vendorID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

// ListPending returns tickets awaiting admin review, oldest first.
func (d *DB) ListPending(ctx context.Context) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("verification_status = ?", models.VerificationPending).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

// ListAll returns every ticket for the admin review table.
func (d *DB) ListAll(ctx context.Context) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

// CountAdvertised is used to seed the Redis slot counter on startup.
func (d *DB) CountAdvertised(ctx context.Context) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("is_advertised = ?", true).
		Count(ctx)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
