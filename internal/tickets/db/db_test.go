package db_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ticket-marketplace/internal/domain"
	"ticket-marketplace/internal/models"
	"ticket-marketplace/internal/tickets/db"
)

func setupTestDB(t *testing.T) *db.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { sqldb.Close() })

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	ctx := context.Background()
	require.NoError(t, bunDB.ResetModel(ctx, (*models.User)(nil)))
	require.NoError(t, bunDB.ResetModel(ctx, (*models.Ticket)(nil)))

	return &db.DB{Bun: bunDB}
}

func seedVendor(t *testing.T, d *db.DB, id string, fraud bool) {
	t.Helper()
	_, err := d.Bun.NewInsert().Model(&models.User{
		ID:        id,
		Name:      "Vendor " + id,
		Email:     id + "@example.com",
		Role:      models.RoleVendor,
		IsActive:  true,
		IsFraud:   fraud,
		CreatedAt: time.Now(),
	}).Exec(context.Background())
	require.NoError(t, err)
}

func seedTicket(t *testing.T, d *db.DB, ticket models.Ticket) {
	t.Helper()
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = time.Now()
	}
	if ticket.DepartureTime.IsZero() {
		ticket.DepartureTime = time.Now().Add(48 * time.Hour)
	}
	require.NoError(t, d.CreateTicket(context.Background(), ticket))
}

func TestCreateAndGetTicket(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	seedTicket(t, d, models.Ticket{
		ID:                 "t1",
		Title:              "Dhaka to Chittagong Express",
		From:               "Dhaka",
		To:                 "Chittagong",
		TransportType:      models.TransportBus,
		Price:              850,
		Quantity:           45,
		Perks:              []string{"AC", "WiFi"},
		VendorID:           "v1",
		VerificationStatus: models.VerificationPending,
	})

	got, err := d.GetTicketByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "Dhaka", got.From)
	assert.Equal(t, models.TransportBus, got.TransportType)
	assert.Equal(t, []string{"AC", "WiFi"}, got.Perks)
	assert.Equal(t, 45, got.Quantity)
}

func TestGetMissingTicketIsNotFound(t *testing.T) {
	d := setupTestDB(t)

	_, err := d.GetTicketByID(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSetVerificationStatusGuard(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	seedTicket(t, d, models.Ticket{ID: "t1", VendorID: "v1", VerificationStatus: models.VerificationPending})

	ok, err := d.SetVerificationStatus(ctx, "t1", models.VerificationPending, models.VerificationApproved)
	require.NoError(t, err)
	assert.True(t, ok)

	// Second transition from pending no longer matches.
	ok, err = d.SetVerificationStatus(ctx, "t1", models.VerificationPending, models.VerificationRejected)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := d.GetTicketByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.VerificationApproved, got.VerificationStatus)
}

func TestSetAdvertisedRequiresApproval(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	seedTicket(t, d, models.Ticket{ID: "pending", VendorID: "v1", VerificationStatus: models.VerificationPending})
	seedTicket(t, d, models.Ticket{ID: "approved", VendorID: "v1", VerificationStatus: models.VerificationApproved})

	ok, err := d.SetAdvertised(ctx, "pending", true)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = d.SetAdvertised(ctx, "approved", true)
	require.NoError(t, err)
	assert.True(t, ok)

	count, err := d.CountAdvertised(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSetAdvertisedGuardsCurrentFlag(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	seedTicket(t, d, models.Ticket{ID: "t1", VendorID: "v1", VerificationStatus: models.VerificationApproved, IsAdvertised: true})

	// Two requests racing to take the ticket down: only the first wins, so
	// only one slot release happens.
	ok, err := d.SetAdvertised(ctx, "t1", false)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.SetAdvertised(ctx, "t1", false)
	require.NoError(t, err)
	assert.False(t, ok)

	// Same for the way up: the loser must not pair a second acquire with
	// a ticket that is already featured.
	ok, err = d.SetAdvertised(ctx, "t1", true)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.SetAdvertised(ctx, "t1", true)
	require.NoError(t, err)
	assert.False(t, ok)

	count, err := d.CountAdvertised(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestReserveSeats(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	seedTicket(t, d, models.Ticket{
		ID:                 "t1",
		VendorID:           "v1",
		Quantity:           45,
		VerificationStatus: models.VerificationApproved,
	})

	ok, err := d.ReserveSeats(ctx, "t1", 2, 0)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := d.GetTicketByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 43, got.Quantity)
	assert.Equal(t, int64(1), got.Version)
}

func TestReserveSeatsVersionConflict(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	seedTicket(t, d, models.Ticket{ID: "t1", VendorID: "v1", Quantity: 45, VerificationStatus: models.VerificationApproved})

	// Stale version does not match after the first reservation bumps it.
	ok, err := d.ReserveSeats(ctx, "t1", 2, 0)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = d.ReserveSeats(ctx, "t1", 2, 0)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := d.GetTicketByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 43, got.Quantity)
}

func TestReserveSeatsInsufficientQuantity(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	seedTicket(t, d, models.Ticket{ID: "t1", VendorID: "v1", Quantity: 1, VerificationStatus: models.VerificationApproved})

	ok, err := d.ReserveSeats(ctx, "t1", 2, 0)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := d.GetTicketByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Quantity)
}

func TestReleaseSeats(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	seedTicket(t, d, models.Ticket{ID: "t1", VendorID: "v1", Quantity: 43, VerificationStatus: models.VerificationApproved})

	require.NoError(t, d.ReleaseSeats(ctx, "t1", 2))

	got, err := d.GetTicketByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 45, got.Quantity)
}

func TestListApprovedExcludesFraudVendors(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	seedVendor(t, d, "good", false)
	seedVendor(t, d, "bad", true)

	seedTicket(t, d, models.Ticket{ID: "t1", VendorID: "good", VerificationStatus: models.VerificationApproved})
	seedTicket(t, d, models.Ticket{ID: "t2", VendorID: "bad", VerificationStatus: models.VerificationApproved})
	seedTicket(t, d, models.Ticket{ID: "t3", VendorID: "good", VerificationStatus: models.VerificationPending})

	list, err := d.ListApproved(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "t1", list[0].ID)
}

func TestListAdvertised(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	seedVendor(t, d, "v1", false)
	seedTicket(t, d, models.Ticket{ID: "t1", VendorID: "v1", VerificationStatus: models.VerificationApproved, IsAdvertised: true})
	seedTicket(t, d, models.Ticket{ID: "t2", VendorID: "v1", VerificationStatus: models.VerificationApproved})

	list, err := d.ListAdvertised(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "t1", list[0].ID)
}

func TestUpdateTicketDoesNotTouchStatus(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	seedTicket(t, d, models.Ticket{
		ID:                 "t1",
		Title:              "Old title",
		VendorID:           "v1",
		Quantity:           10,
		VerificationStatus: models.VerificationApproved,
		IsAdvertised:       true,
	})

	updated := models.Ticket{
		ID:                 "t1",
		Title:              "New title",
		From:               "Dhaka",
		To:                 "Sylhet",
		TransportType:      models.TransportTrain,
		Price:              650,
		Quantity:           20,
		DepartureTime:      time.Now().Add(24 * time.Hour),
		VerificationStatus: models.VerificationPending, // must be ignored
	}
	require.NoError(t, d.UpdateTicket(ctx, updated))

	got, err := d.GetTicketByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "New title", got.Title)
	assert.Equal(t, 20, got.Quantity)
	assert.Equal(t, models.VerificationApproved, got.VerificationStatus)
	assert.True(t, got.IsAdvertised)
}

func TestDeleteTicket(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	seedTicket(t, d, models.Ticket{ID: "t1", VendorID: "v1", VerificationStatus: models.VerificationPending})

	require.NoError(t, d.DeleteTicket(ctx, "t1"))
	assert.ErrorIs(t, d.DeleteTicket(ctx, "t1"), domain.ErrNotFound)

	_, err := d.GetTicketByID(ctx, "t1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListByVendor(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	seedTicket(t, d, models.Ticket{ID: "t1", VendorID: "v1", VerificationStatus: models.VerificationPending})
	seedTicket(t, d, models.Ticket{ID: "t2", VendorID: "v2", VerificationStatus: models.VerificationPending})
	seedTicket(t, d, models.Ticket{ID: "t3", VendorID: "v1", VerificationStatus: models.VerificationRejected})

	list, err := d.ListByVendor(ctx, "v1")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
