package bookings_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ticket-marketplace/internal/bookings"
	"ticket-marketplace/internal/domain"
	"ticket-marketplace/internal/logger"
	"ticket-marketplace/internal/models"
)

// Mock implementations
type MockBookingDB struct {
	mock.Mock
}

func (m *MockBookingDB) CreateBooking(ctx context.Context, booking models.Booking) error {
	args := m.Called(ctx, booking)
	return args.Error(0)
}

func (m *MockBookingDB) GetBookingByID(ctx context.Context, id string) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *MockBookingDB) SetStatus(ctx context.Context, id string, from, to models.BookingStatus) (bool, error) {
	args := m.Called(ctx, id, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *MockBookingDB) MarkPaid(ctx context.Context, booking models.Booking) (bool, error) {
	args := m.Called(ctx, booking)
	return args.Bool(0), args.Error(1)
}

func (m *MockBookingDB) ListByUser(ctx context.Context, userID string) ([]models.Booking, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Booking), args.Error(1)
}

func (m *MockBookingDB) ListPaidByUser(ctx context.Context, userID string) ([]models.Booking, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Booking), args.Error(1)
}

func (m *MockBookingDB) ListForVendor(ctx context.Context, vendorID string) ([]models.Booking, error) {
	args := m.Called(ctx, vendorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Booking), args.Error(1)
}

func (m *MockBookingDB) ListByTicket(ctx context.Context, ticketID string) ([]models.Booking, error) {
	args := m.Called(ctx, ticketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Booking), args.Error(1)
}

type MockTicketStore struct {
	mock.Mock
}

func (m *MockTicketStore) GetTicketByID(ctx context.Context, id string) (*models.Ticket, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Ticket), args.Error(1)
}

func (m *MockTicketStore) ReserveSeats(ctx context.Context, id string, n int, version int64) (bool, error) {
	args := m.Called(ctx, id, n, version)
	return args.Bool(0), args.Error(1)
}

func (m *MockTicketStore) ReleaseSeats(ctx context.Context, id string, n int) error {
	args := m.Called(ctx, id, n)
	return args.Error(0)
}

type MockUsers struct {
	mock.Mock
}

func (m *MockUsers) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(topic, key string, payload interface{}) error {
	args := m.Called(topic, key, payload)
	return args.Error(0)
}

type FakeProcessor struct {
	Reference string
	Err       error
	Charged   []float64
}

func (f *FakeProcessor) Charge(ctx context.Context, bookingID string, amount float64) (string, error) {
	if f.Err != nil {
		return "", f.Err
	}
	f.Charged = append(f.Charged, amount)
	return f.Reference, nil
}

func newService(db *MockBookingDB, ts *MockTicketStore, users *MockUsers, proc *FakeProcessor) *bookings.BookingService {
	return bookings.NewBookingService(
		db, ts, users, nil, proc,
		bookings.NewReceiptGenerator("test-receipt-secret"),
		logger.NewLogger(),
		"test.bookings",
	)
}

func buyer() *models.User {
	return &models.User{ID: "user-1", Role: models.RoleUser, IsActive: true}
}

func seller() *models.User {
	return &models.User{ID: "vendor-1", Role: models.RoleVendor, IsActive: true}
}

func openTicket() *models.Ticket {
	return &models.Ticket{
		ID:                 "t1",
		Title:              "Dhaka to Chittagong Express",
		From:               "Dhaka",
		To:                 "Chittagong",
		TransportType:      models.TransportBus,
		Price:              850,
		Quantity:           45,
		DepartureTime:      time.Now().Add(72 * time.Hour),
		VendorID:           "vendor-1",
		VerificationStatus: models.VerificationApproved,
		Version:            3,
	}
}

func TestCreateBookingFreezesTotalPrice(t *testing.T) {
	ts := new(MockTicketStore)
	ts.On("GetTicketByID", mock.Anything, "t1").Return(openTicket(), nil)

	users := new(MockUsers)
	users.On("GetUserByID", mock.Anything, "vendor-1").Return(seller(), nil)

	db := new(MockBookingDB)
	db.On("CreateBooking", mock.Anything, mock.MatchedBy(func(b models.Booking) bool {
		return b.Status == models.BookingPending && b.Quantity == 2 && b.TotalPrice == 1700
	})).Return(nil)

	svc := newService(db, ts, users, &FakeProcessor{})
	booking, err := svc.Create(context.Background(), buyer(), bookings.BookingInput{TicketID: "t1", Quantity: 2})

	require.NoError(t, err)
	assert.Equal(t, 1700.0, booking.TotalPrice)
	assert.Equal(t, models.BookingPending, booking.Status)
	db.AssertExpectations(t)
}

func TestCreateBookingRequiresUserRole(t *testing.T) {
	svc := newService(new(MockBookingDB), new(MockTicketStore), new(MockUsers), &FakeProcessor{})

	_, err := svc.Create(context.Background(), seller(), bookings.BookingInput{TicketID: "t1", Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestCreateBookingRejectsDepartedTicket(t *testing.T) {
	departed := openTicket()
	departed.DepartureTime = time.Now().Add(-time.Hour)

	ts := new(MockTicketStore)
	ts.On("GetTicketByID", mock.Anything, "t1").Return(departed, nil)

	svc := newService(new(MockBookingDB), ts, new(MockUsers), &FakeProcessor{})
	_, err := svc.Create(context.Background(), buyer(), bookings.BookingInput{TicketID: "t1", Quantity: 1})

	assert.ErrorIs(t, err, domain.ErrTicketNotBookable)
}

func TestCreateBookingRejectsUnapprovedTicket(t *testing.T) {
	pending := openTicket()
	pending.VerificationStatus = models.VerificationPending

	ts := new(MockTicketStore)
	ts.On("GetTicketByID", mock.Anything, "t1").Return(pending, nil)

	svc := newService(new(MockBookingDB), ts, new(MockUsers), &FakeProcessor{})
	_, err := svc.Create(context.Background(), buyer(), bookings.BookingInput{TicketID: "t1", Quantity: 1})

	assert.ErrorIs(t, err, domain.ErrTicketNotBookable)
}

func TestCreateBookingRejectsFraudVendorTicket(t *testing.T) {
	ts := new(MockTicketStore)
	ts.On("GetTicketByID", mock.Anything, "t1").Return(openTicket(), nil)

	flagged := seller()
	flagged.IsFraud = true
	users := new(MockUsers)
	users.On("GetUserByID", mock.Anything, "vendor-1").Return(flagged, nil)

	svc := newService(new(MockBookingDB), ts, users, &FakeProcessor{})
	_, err := svc.Create(context.Background(), buyer(), bookings.BookingInput{TicketID: "t1", Quantity: 1})

	assert.ErrorIs(t, err, domain.ErrTicketNotBookable)
}

func TestCreateBookingInsufficientSeats(t *testing.T) {
	scarce := openTicket()
	scarce.Quantity = 1

	ts := new(MockTicketStore)
	ts.On("GetTicketByID", mock.Anything, "t1").Return(scarce, nil)

	users := new(MockUsers)
	users.On("GetUserByID", mock.Anything, "vendor-1").Return(seller(), nil)

	svc := newService(new(MockBookingDB), ts, users, &FakeProcessor{})
	_, err := svc.Create(context.Background(), buyer(), bookings.BookingInput{TicketID: "t1", Quantity: 2})

	assert.ErrorIs(t, err, domain.ErrInsufficientSeats)
}

func TestCreateBookingQuantityValidation(t *testing.T) {
	svc := newService(new(MockBookingDB), new(MockTicketStore), new(MockUsers), &FakeProcessor{})

	_, err := svc.Create(context.Background(), buyer(), bookings.BookingInput{TicketID: "t1", Quantity: 0})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestAcceptReservesSeats(t *testing.T) {
	db := new(MockBookingDB)
	db.On("GetBookingByID", mock.Anything, "b1").Return(&models.Booking{
		ID:       "b1",
		TicketID: "t1",
		UserID:   "user-1",
		Quantity: 2,
		Status:   models.BookingPending,
	}, nil)
	db.On("SetStatus", mock.Anything, "b1", models.BookingPending, models.BookingAccepted).Return(true, nil)

	ts := new(MockTicketStore)
	ts.On("GetTicketByID", mock.Anything, "t1").Return(openTicket(), nil)
	ts.On("ReserveSeats", mock.Anything, "t1", 2, int64(3)).Return(true, nil)

	svc := newService(db, ts, new(MockUsers), &FakeProcessor{})
	err := svc.Accept(context.Background(), seller(), "b1")

	require.NoError(t, err)
	ts.AssertExpectations(t)
	db.AssertExpectations(t)
}

func TestAcceptRetriesOnceOnVersionConflict(t *testing.T) {
	db := new(MockBookingDB)
	db.On("GetBookingByID", mock.Anything, "b1").Return(&models.Booking{
		ID:       "b1",
		TicketID: "t1",
		Quantity: 2,
		Status:   models.BookingPending,
	}, nil)
	db.On("SetStatus", mock.Anything, "b1", models.BookingPending, models.BookingAccepted).Return(true, nil)

	fresh := openTicket()
	fresh.Version = 4
	fresh.Quantity = 43

	ts := new(MockTicketStore)
	ts.On("GetTicketByID", mock.Anything, "t1").Return(openTicket(), nil).Once()
	ts.On("ReserveSeats", mock.Anything, "t1", 2, int64(3)).Return(false, nil).Once()
	ts.On("GetTicketByID", mock.Anything, "t1").Return(fresh, nil).Once()
	ts.On("ReserveSeats", mock.Anything, "t1", 2, int64(4)).Return(true, nil).Once()

	svc := newService(db, ts, new(MockUsers), &FakeProcessor{})
	err := svc.Accept(context.Background(), seller(), "b1")

	require.NoError(t, err)
	ts.AssertExpectations(t)
}

func TestAcceptGivesUpAfterSecondConflict(t *testing.T) {
	db := new(MockBookingDB)
	db.On("GetBookingByID", mock.Anything, "b1").Return(&models.Booking{
		ID:       "b1",
		TicketID: "t1",
		Quantity: 2,
		Status:   models.BookingPending,
	}, nil)

	ts := new(MockTicketStore)
	ts.On("GetTicketByID", mock.Anything, "t1").Return(openTicket(), nil)
	ts.On("ReserveSeats", mock.Anything, "t1", 2, int64(3)).Return(false, nil)

	svc := newService(db, ts, new(MockUsers), &FakeProcessor{})
	err := svc.Accept(context.Background(), seller(), "b1")

	assert.ErrorIs(t, err, domain.ErrConflict)
	db.AssertNotCalled(t, "SetStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAcceptInsufficientSeatsAfterReload(t *testing.T) {
	db := new(MockBookingDB)
	db.On("GetBookingByID", mock.Anything, "b1").Return(&models.Booking{
		ID:       "b1",
		TicketID: "t1",
		Quantity: 10,
		Status:   models.BookingPending,
	}, nil)

	drained := openTicket()
	drained.Version = 4
	drained.Quantity = 3

	ts := new(MockTicketStore)
	ts.On("GetTicketByID", mock.Anything, "t1").Return(openTicket(), nil).Once()
	ts.On("ReserveSeats", mock.Anything, "t1", 10, int64(3)).Return(false, nil).Once()
	ts.On("GetTicketByID", mock.Anything, "t1").Return(drained, nil).Once()

	svc := newService(db, ts, new(MockUsers), &FakeProcessor{})
	err := svc.Accept(context.Background(), seller(), "b1")

	assert.ErrorIs(t, err, domain.ErrInsufficientSeats)
}

func TestAcceptReleasesSeatsWhenStatusWriteFails(t *testing.T) {
	db := new(MockBookingDB)
	db.On("GetBookingByID", mock.Anything, "b1").Return(&models.Booking{
		ID:       "b1",
		TicketID: "t1",
		Quantity: 2,
		Status:   models.BookingPending,
	}, nil)
	db.On("SetStatus", mock.Anything, "b1", models.BookingPending, models.BookingAccepted).Return(false, nil)

	ts := new(MockTicketStore)
	ts.On("GetTicketByID", mock.Anything, "t1").Return(openTicket(), nil)
	ts.On("ReserveSeats", mock.Anything, "t1", 2, int64(3)).Return(true, nil)
	ts.On("ReleaseSeats", mock.Anything, "t1", 2).Return(nil)

	svc := newService(db, ts, new(MockUsers), &FakeProcessor{})
	err := svc.Accept(context.Background(), seller(), "b1")

	assert.ErrorIs(t, err, domain.ErrConflict)
	ts.AssertCalled(t, "ReleaseSeats", mock.Anything, "t1", 2)
}

func TestAcceptOnlyPendingBookings(t *testing.T) {
	db := new(MockBookingDB)
	db.On("GetBookingByID", mock.Anything, "b1").Return(&models.Booking{
		ID:       "b1",
		TicketID: "t1",
		Status:   models.BookingAccepted,
	}, nil)

	ts := new(MockTicketStore)
	ts.On("GetTicketByID", mock.Anything, "t1").Return(openTicket(), nil)

	svc := newService(db, ts, new(MockUsers), &FakeProcessor{})
	err := svc.Accept(context.Background(), seller(), "b1")

	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestAcceptOnlyOwnTickets(t *testing.T) {
	db := new(MockBookingDB)
	db.On("GetBookingByID", mock.Anything, "b1").Return(&models.Booking{
		ID:       "b1",
		TicketID: "t1",
		Status:   models.BookingPending,
	}, nil)

	other := openTicket()
	other.VendorID = "someone-else"
	ts := new(MockTicketStore)
	ts.On("GetTicketByID", mock.Anything, "t1").Return(other, nil)

	svc := newService(db, ts, new(MockUsers), &FakeProcessor{})
	err := svc.Accept(context.Background(), seller(), "b1")

	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestRejectLeavesSeatsAlone(t *testing.T) {
	db := new(MockBookingDB)
	db.On("GetBookingByID", mock.Anything, "b1").Return(&models.Booking{
		ID:       "b1",
		TicketID: "t1",
		Quantity: 2,
		Status:   models.BookingPending,
	}, nil)
	db.On("SetStatus", mock.Anything, "b1", models.BookingPending, models.BookingRejected).Return(true, nil)

	ts := new(MockTicketStore)
	ts.On("GetTicketByID", mock.Anything, "t1").Return(openTicket(), nil)

	svc := newService(db, ts, new(MockUsers), &FakeProcessor{})
	err := svc.Reject(context.Background(), seller(), "b1")

	require.NoError(t, err)
	ts.AssertNotCalled(t, "ReserveSeats", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPayAcceptedBooking(t *testing.T) {
	db := new(MockBookingDB)
	db.On("GetBookingByID", mock.Anything, "b1").Return(&models.Booking{
		ID:         "b1",
		TicketID:   "t1",
		UserID:     "user-1",
		Quantity:   2,
		TotalPrice: 1700,
		Status:     models.BookingAccepted,
	}, nil)
	db.On("MarkPaid", mock.Anything, mock.MatchedBy(func(b models.Booking) bool {
		return b.Status == models.BookingPaid && !b.PaidAt.IsZero() && len(b.ReceiptQR) > 0
	})).Return(true, nil)

	ts := new(MockTicketStore)
	ts.On("GetTicketByID", mock.Anything, "t1").Return(openTicket(), nil)

	proc := &FakeProcessor{Reference: "pi_test_123"}
	svc := newService(db, ts, new(MockUsers), proc)

	booking, err := svc.Pay(context.Background(), buyer(), "b1")

	require.NoError(t, err)
	assert.Equal(t, models.BookingPaid, booking.Status)
	assert.Equal(t, []float64{1700}, proc.Charged)
	assert.NotEmpty(t, booking.ReceiptQR)
	db.AssertExpectations(t)
}

func TestPayAfterDepartureFails(t *testing.T) {
	db := new(MockBookingDB)
	db.On("GetBookingByID", mock.Anything, "b1").Return(&models.Booking{
		ID:       "b1",
		TicketID: "t1",
		UserID:   "user-1",
		Status:   models.BookingAccepted,
	}, nil)

	departed := openTicket()
	departed.DepartureTime = time.Now().Add(-time.Minute)

	ts := new(MockTicketStore)
	ts.On("GetTicketByID", mock.Anything, "t1").Return(departed, nil)

	proc := &FakeProcessor{Reference: "pi_test_123"}
	svc := newService(db, ts, new(MockUsers), proc)

	_, err := svc.Pay(context.Background(), buyer(), "b1")

	assert.ErrorIs(t, err, domain.ErrPaymentWindowExpired)
	assert.Empty(t, proc.Charged)
}

func TestPayOnlyAcceptedBookings(t *testing.T) {
	db := new(MockBookingDB)
	db.On("GetBookingByID", mock.Anything, "b1").Return(&models.Booking{
		ID:     "b1",
		UserID: "user-1",
		Status: models.BookingPending,
	}, nil)

	svc := newService(db, new(MockTicketStore), new(MockUsers), &FakeProcessor{})
	_, err := svc.Pay(context.Background(), buyer(), "b1")

	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestPaySomeoneElsesBookingFails(t *testing.T) {
	db := new(MockBookingDB)
	db.On("GetBookingByID", mock.Anything, "b1").Return(&models.Booking{
		ID:     "b1",
		UserID: "someone-else",
		Status: models.BookingAccepted,
	}, nil)

	svc := newService(db, new(MockTicketStore), new(MockUsers), &FakeProcessor{})
	_, err := svc.Pay(context.Background(), buyer(), "b1")

	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestPayFlagsUnrecordedChargeForReconciliation(t *testing.T) {
	db := new(MockBookingDB)
	db.On("GetBookingByID", mock.Anything, "b1").Return(&models.Booking{
		ID:         "b1",
		TicketID:   "t1",
		UserID:     "user-1",
		Quantity:   2,
		TotalPrice: 1700,
		Status:     models.BookingAccepted,
	}, nil)
	// The charge lands but the guarded settle loses to a concurrent write.
	db.On("MarkPaid", mock.Anything, mock.Anything).Return(false, nil)

	ts := new(MockTicketStore)
	ts.On("GetTicketByID", mock.Anything, "t1").Return(openTicket(), nil)

	events := new(MockPublisher)
	events.On("Publish", "test.bookings", "b1", mock.MatchedBy(func(payload interface{}) bool {
		event, ok := payload.(models.BookingEvent)
		return ok && event.EventType == "payment_unreconciled"
	})).Return(nil)

	proc := &FakeProcessor{Reference: "pi_orphan_1"}
	svc := bookings.NewBookingService(
		db, ts, new(MockUsers), events, proc,
		bookings.NewReceiptGenerator("test-receipt-secret"),
		logger.NewLogger(),
		"test.bookings",
	)

	_, err := svc.Pay(context.Background(), buyer(), "b1")

	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, []float64{1700}, proc.Charged)
	events.AssertExpectations(t)
}

func TestPayChargeFailureKeepsBookingAccepted(t *testing.T) {
	db := new(MockBookingDB)
	db.On("GetBookingByID", mock.Anything, "b1").Return(&models.Booking{
		ID:       "b1",
		TicketID: "t1",
		UserID:   "user-1",
		Status:   models.BookingAccepted,
	}, nil)

	ts := new(MockTicketStore)
	ts.On("GetTicketByID", mock.Anything, "t1").Return(openTicket(), nil)

	svc := newService(db, ts, new(MockUsers), &FakeProcessor{Err: errors.New("card declined")})
	_, err := svc.Pay(context.Background(), buyer(), "b1")

	require.Error(t, err)
	db.AssertNotCalled(t, "MarkPaid", mock.Anything, mock.Anything)
}

func TestListForUserDerivesExpiredDisplayStatus(t *testing.T) {
	db := new(MockBookingDB)
	db.On("ListByUser", mock.Anything, "user-1").Return([]models.Booking{
		{ID: "b1", TicketID: "t1", UserID: "user-1", Status: models.BookingAccepted},
	}, nil)

	departed := openTicket()
	departed.DepartureTime = time.Now().Add(-time.Hour)

	ts := new(MockTicketStore)
	ts.On("GetTicketByID", mock.Anything, "t1").Return(departed, nil)

	svc := newService(db, ts, new(MockUsers), &FakeProcessor{})
	views, err := svc.ListForUser(context.Background(), buyer())

	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, models.BookingExpired, views[0].DisplayStatus)
	// Storage view stays accepted; expiry is presentation only.
	assert.Equal(t, models.BookingAccepted, views[0].Booking.Status)
	assert.Equal(t, "Departed", views[0].Countdown)
}

func TestVendorRevenueCountsOnlyPaid(t *testing.T) {
	db := new(MockBookingDB)
	db.On("ListForVendor", mock.Anything, "vendor-1").Return([]models.Booking{
		{ID: "b1", Status: models.BookingPaid, TotalPrice: 1700, Quantity: 2},
		{ID: "b2", Status: models.BookingPaid, TotalPrice: 850.50, Quantity: 1},
		{ID: "b3", Status: models.BookingAccepted, TotalPrice: 999},
		{ID: "b4", Status: models.BookingPending, TotalPrice: 500},
		{ID: "b5", Status: models.BookingRejected, TotalPrice: 100},
	}, nil)

	svc := newService(db, new(MockTicketStore), new(MockUsers), &FakeProcessor{})
	overview, err := svc.VendorRevenue(context.Background(), seller())

	require.NoError(t, err)
	assert.Equal(t, 2550.50, overview.TotalRevenue)
	assert.Equal(t, 2, overview.PaidBookings)
	assert.Equal(t, 1, overview.AcceptedPending)
	assert.Equal(t, 1, overview.PendingRequests)
	assert.Equal(t, 3, overview.SeatsSold)
}
