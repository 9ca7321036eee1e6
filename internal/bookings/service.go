package bookings

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ticket-marketplace/internal/domain"
	"ticket-marketplace/internal/logger"
	"ticket-marketplace/internal/models"
	"ticket-marketplace/internal/monitoring"
	"ticket-marketplace/internal/payment"
	"ticket-marketplace/internal/policy"
	"ticket-marketplace/internal/utils"
)

type BookingDBLayer interface {
	CreateBooking(ctx context.Context, booking models.Booking) error
	GetBookingByID(ctx context.Context, id string) (*models.Booking, error)
	SetStatus(ctx context.Context, id string, from, to models.BookingStatus) (bool, error)
	MarkPaid(ctx context.Context, booking models.Booking) (bool, error)
	ListByUser(ctx context.Context, userID string) ([]models.Booking, error)
	ListPaidByUser(ctx context.Context, userID string) ([]models.Booking, error)
	ListForVendor(ctx context.Context, vendorID string) ([]models.Booking, error)
	ListByTicket(ctx context.Context, ticketID string) ([]models.Booking, error)
}

// TicketStore is the slice of the ticket storage layer the booking flow
// needs: reads plus the seat counter.
type TicketStore interface {
	GetTicketByID(ctx context.Context, id string) (*models.Ticket, error)
	ReserveSeats(ctx context.Context, id string, n int, version int64) (bool, error)
	ReleaseSeats(ctx context.Context, id string, n int) error
}

type UserDirectory interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

type EventPublisher interface {
	Publish(topic, key string, payload interface{}) error
}

type BookingService struct {
	DB       BookingDBLayer
	Tickets  TicketStore
	Users    UserDirectory
	Events   EventPublisher
	Payments payment.Processor
	Receipts *ReceiptGenerator
	Logger   *logger.Logger
	Topic    string

	now func() time.Time
}

func NewBookingService(db BookingDBLayer, tickets TicketStore, users UserDirectory, events EventPublisher, payments payment.Processor, receipts *ReceiptGenerator, log *logger.Logger, topic string) *BookingService {
	return &BookingService{
		DB:       db,
		Tickets:  tickets,
		Users:    users,
		Events:   events,
		Payments: payments,
		Receipts: receipts,
		Logger:   log,
		Topic:    topic,
		now:      time.Now,
	}
}

type BookingInput struct {
	TicketID string `json:"ticket_id"`
	Quantity int    `json:"quantity"`
}

// BookingView is a booking joined with its ticket for dashboards: the
// display status and countdown are derived at read time.
type BookingView struct {
	models.Booking
	Ticket        *models.Ticket `json:"ticket,omitempty"`
	DisplayStatus string         `json:"display_status"`
	Countdown     string         `json:"countdown"`
}

// Create places a booking request against a bookable ticket. Seats are
// NOT decremented here; they come off the ticket when the vendor accepts.
// The total price is frozen now, so later price edits never change what
// the buyer owes.
func (s *BookingService) Create(ctx context.Context, actor *models.User, in BookingInput) (*models.Booking, error) {
	if !policy.Allowed(actor.Role, policy.ActionCreateBooking) {
		return nil, fmt.Errorf("%w: role %s cannot book tickets", domain.ErrForbidden, actor.Role)
	}
	if in.Quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", domain.ErrValidation)
	}

	ticket, err := s.Tickets.GetTicketByID(ctx, in.TicketID)
	if err != nil {
		return nil, fmt.Errorf("ticket %s: %w", in.TicketID, err)
	}

	now := s.now()
	if !ticket.Bookable(now) {
		return nil, fmt.Errorf("%w: ticket %s is not open for booking", domain.ErrTicketNotBookable, ticket.ID)
	}

	vendor, err := s.Users.GetUserByID(ctx, ticket.VendorID)
	if err != nil {
		return nil, fmt.Errorf("vendor for ticket %s: %w", ticket.ID, err)
	}
	if vendor.IsFraud {
		return nil, fmt.Errorf("%w: ticket %s is not open for booking", domain.ErrTicketNotBookable, ticket.ID)
	}

	if in.Quantity > ticket.Quantity {
		return nil, fmt.Errorf("%w: %d seats requested, %d remaining", domain.ErrInsufficientSeats, in.Quantity, ticket.Quantity)
	}

	total := decimal.NewFromFloat(ticket.Price).
		Mul(decimal.NewFromInt(int64(in.Quantity)))

	booking := models.Booking{
		ID:          uuid.NewString(),
		TicketID:    ticket.ID,
		UserID:      actor.ID,
		Quantity:    in.Quantity,
		TotalPrice:  total.InexactFloat64(),
		Status:      models.BookingPending,
		BookingDate: now,
	}

	if err := s.DB.CreateBooking(ctx, booking); err != nil {
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	s.Logger.LogBooking("CREATE", booking.ID, fmt.Sprintf("%d x %s for user %s, total %.2f", in.Quantity, ticket.ID, actor.ID, booking.TotalPrice))
	monitoring.RecordBookingTransition(string(models.BookingPending))
	s.publish("created", booking)
	return &booking, nil
}

// Accept is the vendor's approval of a pending booking. Seats come off
// the ticket here, atomically against the ticket version; a single retry
// absorbs one concurrent seat change before giving up with a conflict.
func (s *BookingService) Accept(ctx context.Context, actor *models.User, bookingID string) error {
	booking, ticket, err := s.vendorBooking(ctx, actor, bookingID)
	if err != nil {
		return err
	}
	if booking.Status != models.BookingPending {
		return fmt.Errorf("%w: booking %s is %s, not pending", domain.ErrInvalidTransition, bookingID, booking.Status)
	}

	reserved, err := s.Tickets.ReserveSeats(ctx, ticket.ID, booking.Quantity, ticket.Version)
	if err != nil {
		return fmt.Errorf("failed to reserve seats for booking %s: %w", bookingID, err)
	}
	if !reserved {
		// Reload once; the version may have moved under us without the
		// remaining seats dropping below what we need.
		ticket, err = s.Tickets.GetTicketByID(ctx, ticket.ID)
		if err != nil {
			return fmt.Errorf("ticket for booking %s: %w", bookingID, err)
		}
		if booking.Quantity > ticket.Quantity {
			return fmt.Errorf("%w: %d seats requested, %d remaining", domain.ErrInsufficientSeats, booking.Quantity, ticket.Quantity)
		}
		reserved, err = s.Tickets.ReserveSeats(ctx, ticket.ID, booking.Quantity, ticket.Version)
		if err != nil {
			return fmt.Errorf("failed to reserve seats for booking %s: %w", bookingID, err)
		}
		if !reserved {
			return fmt.Errorf("%w: seats for ticket %s changed concurrently", domain.ErrConflict, ticket.ID)
		}
	}

	ok, err := s.DB.SetStatus(ctx, bookingID, models.BookingPending, models.BookingAccepted)
	if err != nil || !ok {
		if relErr := s.Tickets.ReleaseSeats(ctx, ticket.ID, booking.Quantity); relErr != nil {
			s.Logger.Error("BOOKING", fmt.Sprintf("Failed to release seats for booking %s: %v", bookingID, relErr))
		}
		if err != nil {
			return fmt.Errorf("failed to accept booking %s: %w", bookingID, err)
		}
		return fmt.Errorf("%w: booking %s changed state concurrently", domain.ErrConflict, bookingID)
	}

	s.Logger.LogBooking("ACCEPT", bookingID, fmt.Sprintf("%d seats reserved on %s", booking.Quantity, ticket.ID))
	monitoring.RecordBookingTransition(string(models.BookingAccepted))
	booking.Status = models.BookingAccepted
	s.publish("accepted", *booking)
	return nil
}

// Reject declines a pending booking. Terminal, seats untouched.
func (s *BookingService) Reject(ctx context.Context, actor *models.User, bookingID string) error {
	booking, _, err := s.vendorBooking(ctx, actor, bookingID)
	if err != nil {
		return err
	}
	if booking.Status != models.BookingPending {
		return fmt.Errorf("%w: booking %s is %s, not pending", domain.ErrInvalidTransition, bookingID, booking.Status)
	}

	ok, err := s.DB.SetStatus(ctx, bookingID, models.BookingPending, models.BookingRejected)
	if err != nil {
		return fmt.Errorf("failed to reject booking %s: %w", bookingID, err)
	}
	if !ok {
		return fmt.Errorf("%w: booking %s changed state concurrently", domain.ErrConflict, bookingID)
	}

	s.Logger.LogBooking("REJECT", bookingID, "declined by vendor")
	monitoring.RecordBookingTransition(string(models.BookingRejected))
	booking.Status = models.BookingRejected
	s.publish("rejected", *booking)
	return nil
}

// Pay settles an accepted booking. The payment window closes at
// departure; past it the booking stays accepted in storage but can no
// longer be paid.
func (s *BookingService) Pay(ctx context.Context, actor *models.User, bookingID string) (*models.Booking, error) {
	if !policy.Allowed(actor.Role, policy.ActionPayBooking) {
		return nil, fmt.Errorf("%w: role %s cannot pay bookings", domain.ErrForbidden, actor.Role)
	}

	booking, err := s.DB.GetBookingByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("booking %s: %w", bookingID, err)
	}
	if booking.UserID != actor.ID {
		return nil, fmt.Errorf("%w: booking %s belongs to another user", domain.ErrForbidden, bookingID)
	}
	if booking.Status != models.BookingAccepted {
		return nil, fmt.Errorf("%w: booking %s is %s, only accepted bookings can be paid", domain.ErrInvalidTransition, bookingID, booking.Status)
	}

	ticket, err := s.Tickets.GetTicketByID(ctx, booking.TicketID)
	if err != nil {
		return nil, fmt.Errorf("ticket for booking %s: %w", bookingID, err)
	}

	now := s.now()
	if !now.Before(ticket.DepartureTime) {
		return nil, fmt.Errorf("%w: ticket %s departed %s", domain.ErrPaymentWindowExpired, ticket.ID, ticket.DepartureTime.Format(time.RFC3339))
	}

	reference, err := s.Payments.Charge(ctx, bookingID, booking.TotalPrice)
	if err != nil {
		return nil, fmt.Errorf("payment for booking %s failed: %w", bookingID, err)
	}

	booking.Status = models.BookingPaid
	booking.PaidAt = now

	if s.Receipts != nil {
		qr, err := s.Receipts.Generate(booking.ID, booking.TicketID, booking.UserID, booking.Quantity, booking.TotalPrice, booking.PaidAt, reference)
		if err != nil {
			s.Logger.Error("BOOKING", fmt.Sprintf("Failed to generate receipt QR for %s: %v", bookingID, err))
		} else {
			booking.ReceiptQR = qr
		}
	}

	ok, err := s.DB.MarkPaid(ctx, *booking)
	if err != nil || !ok {
		// The customer has been charged but the booking record did not
		// settle. Surface the charge reference so operators can refund.
		s.Logger.Error("BOOKING", fmt.Sprintf("Charge %s for booking %s is unrecorded, manual refund needed: %v", reference, bookingID, err))
		s.publish("payment_unreconciled", *booking)
		if err != nil {
			return nil, fmt.Errorf("failed to record payment for booking %s: %w", bookingID, err)
		}
		return nil, fmt.Errorf("%w: booking %s changed state concurrently", domain.ErrConflict, bookingID)
	}

	s.Logger.LogBooking("PAY", bookingID, fmt.Sprintf("%.2f charged, reference %s", booking.TotalPrice, reference))
	monitoring.RecordBookingTransition(string(models.BookingPaid))
	s.publish("paid", *booking)
	return booking, nil
}

// ListForUser returns the buyer's bookings with derived display status
// and a departure countdown for each.
func (s *BookingService) ListForUser(ctx context.Context, actor *models.User) ([]BookingView, error) {
	if !policy.Allowed(actor.Role, policy.ActionViewUserBoard) {
		return nil, fmt.Errorf("%w: user dashboard", domain.ErrForbidden)
	}

	bookings, err := s.DB.ListByUser(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return s.toViews(ctx, bookings)
}

// ListForVendor returns bookings made against the vendor's tickets.
func (s *BookingService) ListForVendor(ctx context.Context, actor *models.User) ([]BookingView, error) {
	if !policy.Allowed(actor.Role, policy.ActionViewVendorBoard) {
		return nil, fmt.Errorf("%w: vendor dashboard", domain.ErrForbidden)
	}

	bookings, err := s.DB.ListForVendor(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list vendor bookings: %w", err)
	}
	return s.toViews(ctx, bookings)
}

// TicketBookings returns the requests against one of the vendor's tickets.
func (s *BookingService) TicketBookings(ctx context.Context, actor *models.User, ticketID string) ([]BookingView, error) {
	if !policy.Allowed(actor.Role, policy.ActionViewVendorBoard) {
		return nil, fmt.Errorf("%w: vendor dashboard", domain.ErrForbidden)
	}

	ticket, err := s.Tickets.GetTicketByID(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("ticket %s: %w", ticketID, err)
	}
	if ticket.VendorID != actor.ID {
		return nil, fmt.Errorf("%w: ticket %s belongs to another vendor", domain.ErrForbidden, ticketID)
	}

	list, err := s.DB.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings for ticket %s: %w", ticketID, err)
	}
	return s.toViews(ctx, list)
}

// TransactionHistory returns the buyer's paid bookings.
func (s *BookingService) TransactionHistory(ctx context.Context, actor *models.User) ([]BookingView, error) {
	if !policy.Allowed(actor.Role, policy.ActionViewUserBoard) {
		return nil, fmt.Errorf("%w: transaction history", domain.ErrForbidden)
	}

	bookings, err := s.DB.ListPaidByUser(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return s.toViews(ctx, bookings)
}

// RevenueOverview sums a vendor's settled earnings with decimal
// arithmetic, so fractional prices never drift.
type RevenueOverview struct {
	TotalRevenue    float64 `json:"total_revenue"`
	PaidBookings    int     `json:"paid_bookings"`
	AcceptedPending int     `json:"accepted_unpaid"`
	PendingRequests int     `json:"pending_requests"`
	SeatsSold       int     `json:"seats_sold"`
}

func (s *BookingService) VendorRevenue(ctx context.Context, actor *models.User) (*RevenueOverview, error) {
	if !policy.Allowed(actor.Role, policy.ActionViewVendorBoard) {
		return nil, fmt.Errorf("%w: vendor revenue", domain.ErrForbidden)
	}

	bookings, err := s.DB.ListForVendor(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load vendor bookings: %w", err)
	}

	total := decimal.Zero
	overview := RevenueOverview{}
	for _, b := range bookings {
		switch b.Status {
		case models.BookingPaid:
			total = total.Add(decimal.NewFromFloat(b.TotalPrice))
			overview.PaidBookings++
			overview.SeatsSold += b.Quantity
		case models.BookingAccepted:
			overview.AcceptedPending++
		case models.BookingPending:
			overview.PendingRequests++
		}
	}
	overview.TotalRevenue = total.InexactFloat64()
	return &overview, nil
}

func (s *BookingService) toViews(ctx context.Context, bookings []models.Booking) ([]BookingView, error) {
	now := s.now()
	views := make([]BookingView, 0, len(bookings))
	tickets := map[string]*models.Ticket{}

	for _, b := range bookings {
		ticket, seen := tickets[b.TicketID]
		if !seen {
			loaded, err := s.Tickets.GetTicketByID(ctx, b.TicketID)
			if err != nil {
				return nil, fmt.Errorf("ticket for booking %s: %w", b.ID, err)
			}
			ticket = loaded
			tickets[b.TicketID] = ticket
		}

		views = append(views, BookingView{
			Booking:       b,
			Ticket:        ticket,
			DisplayStatus: b.DisplayStatus(ticket.DepartureTime, now),
			Countdown:     utils.Countdown(ticket.DepartureTime, now),
		})
	}
	return views, nil
}

func (s *BookingService) vendorBooking(ctx context.Context, actor *models.User, bookingID string) (*models.Booking, *models.Ticket, error) {
	if !policy.Allowed(actor.Role, policy.ActionDecideBooking) {
		return nil, nil, fmt.Errorf("%w: role %s cannot decide bookings", domain.ErrForbidden, actor.Role)
	}

	booking, err := s.DB.GetBookingByID(ctx, bookingID)
	if err != nil {
		return nil, nil, fmt.Errorf("booking %s: %w", bookingID, err)
	}

	ticket, err := s.Tickets.GetTicketByID(ctx, booking.TicketID)
	if err != nil {
		return nil, nil, fmt.Errorf("ticket for booking %s: %w", bookingID, err)
	}
	if ticket.VendorID != actor.ID {
		return nil, nil, fmt.Errorf("%w: booking %s is against another vendor's ticket", domain.ErrForbidden, bookingID)
	}
	return booking, ticket, nil
}

func (s *BookingService) publish(eventType string, booking models.Booking) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Publish(s.Topic, booking.ID, models.NewBookingEvent(eventType, booking)); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish booking %s event for %s: %v", eventType, booking.ID, err))
	}
}
