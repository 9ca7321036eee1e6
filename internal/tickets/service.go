package tickets

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ticket-marketplace/internal/domain"
	"ticket-marketplace/internal/logger"
	"ticket-marketplace/internal/models"
	"ticket-marketplace/internal/monitoring"
	"ticket-marketplace/internal/policy"
)

type TicketDBLayer interface {
	GetTicketByID(ctx context.Context, id string) (*models.Ticket, error)
	CreateTicket(ctx context.Context, ticket models.Ticket) error
	UpdateTicket(ctx context.Context, ticket models.Ticket) error
	DeleteTicket(ctx context.Context, id string) error
	SetVerificationStatus(ctx context.Context, id string, from, to models.VerificationStatus) (bool, error)
	SetAdvertised(ctx context.Context, id string, advertised bool) (bool, error)
	ListApproved(ctx context.Context) ([]models.Ticket, error)
	ListAdvertised(ctx context.Context) ([]models.Ticket, error)
	ListByVendor(ctx context.Context, vendorID string) ([]models.Ticket, error)
	ListPending(ctx context.Context) ([]models.Ticket, error)
	ListAll(ctx context.Context) ([]models.Ticket, error)
	CountAdvertised(ctx context.Context) (int, error)
}

// SlotReserver is the atomic advertisement-slot counter (Redis-backed in
// production).
type SlotReserver interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type EventPublisher interface {
	Publish(topic, key string, payload interface{}) error
}

type UserDirectory interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// MaxAdvertised caps the system-wide featured set.
const MaxAdvertised = 6

type TicketService struct {
	DB     TicketDBLayer
	Slots  SlotReserver
	Events EventPublisher
	Users  UserDirectory
	Logger *logger.Logger
	Topic  string

	now func() time.Time
}

func NewTicketService(db TicketDBLayer, slots SlotReserver, events EventPublisher, users UserDirectory, log *logger.Logger, topic string) *TicketService {
	return &TicketService{
		DB:     db,
		Slots:  slots,
		Events: events,
		Users:  users,
		Logger: log,
		Topic:  topic,
		now:    time.Now,
	}
}

// TicketInput carries the vendor-editable fields.
type TicketInput struct {
	Title         string    `json:"title"`
	ImageURL      string    `json:"image_url"`
	From          string    `json:"from"`
	To            string    `json:"to"`
	TransportType string    `json:"transport_type"`
	Price         float64   `json:"price"`
	Quantity      int       `json:"quantity"`
	DepartureTime time.Time `json:"departure_time"`
	Perks         []string  `json:"perks"`
}

func (in *TicketInput) validate() (models.TransportType, error) {
	if in.Title == "" || in.From == "" || in.To == "" {
		return "", fmt.Errorf("%w: title, from and to are required", domain.ErrValidation)
	}
	transport, ok := models.ParseTransportType(in.TransportType)
	if !ok {
		return "", fmt.Errorf("%w: unknown transport type %q", domain.ErrValidation, in.TransportType)
	}
	if in.Price <= 0 {
		return "", fmt.Errorf("%w: price must be positive", domain.ErrValidation)
	}
	if in.Quantity < 0 {
		return "", fmt.Errorf("%w: quantity must not be negative", domain.ErrValidation)
	}
	if in.DepartureTime.IsZero() {
		return "", fmt.Errorf("%w: departure time is required", domain.ErrValidation)
	}
	return transport, nil
}

// Create lists a new ticket for the vendor. New tickets always start
// pending verification. Fraud-flagged vendors may not list.
func (s *TicketService) Create(ctx context.Context, actor *models.User, in TicketInput) (*models.Ticket, error) {
	if !policy.Allowed(actor.Role, policy.ActionCreateTicket) {
		return nil, fmt.Errorf("%w: role %s cannot create tickets", domain.ErrForbidden, actor.Role)
	}
	if actor.IsFraud {
		return nil, fmt.Errorf("%w: vendor is flagged as fraud", domain.ErrForbidden)
	}

	transport, err := in.validate()
	if err != nil {
		return nil, err
	}

	ticket := models.Ticket{
		ID:                 uuid.NewString(),
		Title:              in.Title,
		ImageURL:           in.ImageURL,
		From:               in.From,
		To:                 in.To,
		TransportType:      transport,
		Price:              in.Price,
		Quantity:           in.Quantity,
		DepartureTime:      in.DepartureTime,
		Perks:              in.Perks,
		VendorID:           actor.ID,
		VerificationStatus: models.VerificationPending,
		CreatedAt:          s.now(),
	}

	if err := s.DB.CreateTicket(ctx, ticket); err != nil {
		return nil, fmt.Errorf("failed to create ticket: %w", err)
	}

	s.Logger.LogTicket("CREATE", ticket.ID, fmt.Sprintf("%s -> %s by vendor %s", ticket.From, ticket.To, actor.ID))
	monitoring.RecordTicketTransition(string(models.VerificationPending))
	s.publish("created", ticket)
	return &ticket, nil
}

// Update edits a vendor's own non-rejected ticket. Rejected tickets are
// immutable.
func (s *TicketService) Update(ctx context.Context, actor *models.User, id string, in TicketInput) (*models.Ticket, error) {
	ticket, err := s.ownedTicket(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if ticket.VerificationStatus == models.VerificationRejected {
		return nil, fmt.Errorf("%w: rejected tickets cannot be edited", domain.ErrInvalidTransition)
	}

	transport, err := in.validate()
	if err != nil {
		return nil, err
	}

	ticket.Title = in.Title
	ticket.ImageURL = in.ImageURL
	ticket.From = in.From
	ticket.To = in.To
	ticket.TransportType = transport
	ticket.Price = in.Price
	ticket.Quantity = in.Quantity
	ticket.DepartureTime = in.DepartureTime
	ticket.Perks = in.Perks

	if err := s.DB.UpdateTicket(ctx, *ticket); err != nil {
		return nil, fmt.Errorf("failed to update ticket %s: %w", id, err)
	}

	s.Logger.LogTicket("UPDATE", id, "vendor edit")
	s.publish("updated", *ticket)
	return ticket, nil
}

// Delete removes a vendor's own ticket. Disabled for rejected tickets.
func (s *TicketService) Delete(ctx context.Context, actor *models.User, id string) error {
	ticket, err := s.ownedTicket(ctx, actor, id)
	if err != nil {
		return err
	}
	if ticket.VerificationStatus == models.VerificationRejected {
		return fmt.Errorf("%w: rejected tickets cannot be deleted", domain.ErrInvalidTransition)
	}

	if err := s.DB.DeleteTicket(ctx, id); err != nil {
		return fmt.Errorf("failed to delete ticket %s: %w", id, err)
	}

	s.Logger.LogTicket("DELETE", id, "vendor delete")
	s.publish("deleted", *ticket)
	return nil
}

// Approve moves a pending ticket to approved. Admin only.
func (s *TicketService) Approve(ctx context.Context, actor *models.User, id string) error {
	return s.verify(ctx, actor, id, models.VerificationApproved)
}

// Reject moves a pending ticket to rejected, a terminal state. Admin only.
func (s *TicketService) Reject(ctx context.Context, actor *models.User, id string) error {
	return s.verify(ctx, actor, id, models.VerificationRejected)
}

func (s *TicketService) verify(ctx context.Context, actor *models.User, id string, to models.VerificationStatus) error {
	if !policy.Allowed(actor.Role, policy.ActionVerifyTicket) {
		return fmt.Errorf("%w: only admins verify tickets", domain.ErrForbidden)
	}

	ticket, err := s.DB.GetTicketByID(ctx, id)
	if err != nil {
		return fmt.Errorf("ticket %s: %w", id, err)
	}
	if ticket.VerificationStatus != models.VerificationPending {
		return fmt.Errorf("%w: ticket %s is %s, not pending", domain.ErrInvalidTransition, id, ticket.VerificationStatus)
	}

	ok, err := s.DB.SetVerificationStatus(ctx, id, models.VerificationPending, to)
	if err != nil {
		return fmt.Errorf("failed to verify ticket %s: %w", id, err)
	}
	if !ok {
		// Someone else moved it between our read and the guarded write.
		return fmt.Errorf("%w: ticket %s changed state concurrently", domain.ErrConflict, id)
	}

	s.Logger.LogTicket("VERIFY", id, string(to))
	monitoring.RecordTicketTransition(string(to))
	ticket.VerificationStatus = to
	s.publish(string(to), *ticket)
	return nil
}

// SetAdvertised toggles the featured flag. The global cap is reserved in
// Redis first, then persisted; the slot is rolled back if persisting
// fails, so the counter never exceeds the cap nor leaks slots.
func (s *TicketService) SetAdvertised(ctx context.Context, actor *models.User, id string, advertised bool) error {
	if !policy.Allowed(actor.Role, policy.ActionAdvertiseTicket) {
		return fmt.Errorf("%w: only admins curate advertisements", domain.ErrForbidden)
	}

	ticket, err := s.DB.GetTicketByID(ctx, id)
	if err != nil {
		return fmt.Errorf("ticket %s: %w", id, err)
	}

	if advertised {
		if ticket.VerificationStatus != models.VerificationApproved {
			return fmt.Errorf("%w: only approved tickets can be advertised", domain.ErrInvalidTransition)
		}
		if ticket.IsAdvertised {
			return nil
		}

		ok, err := s.Slots.Acquire(ctx)
		if err != nil {
			return fmt.Errorf("failed to reserve advertisement slot: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: at most %d tickets can be advertised", domain.ErrCapacityExceeded, MaxAdvertised)
		}

		ok, err = s.DB.SetAdvertised(ctx, id, true)
		if err != nil || !ok {
			if relErr := s.Slots.Release(ctx); relErr != nil {
				s.Logger.Error("TICKET", fmt.Sprintf("Failed to roll back ad slot for %s: %v", id, relErr))
			}
			if err != nil {
				return fmt.Errorf("failed to advertise ticket %s: %w", id, err)
			}
			return fmt.Errorf("%w: ticket %s changed state concurrently", domain.ErrConflict, id)
		}

		monitoring.AdvertisedSlotAcquired()
		s.Logger.LogTicket("ADVERTISE", id, "added to featured set")
		ticket.IsAdvertised = true
		s.publish("advertised", *ticket)
		return nil
	}

	if !ticket.IsAdvertised {
		return nil
	}

	ok, err := s.DB.SetAdvertised(ctx, id, false)
	if err != nil {
		return fmt.Errorf("failed to unadvertise ticket %s: %w", id, err)
	}
	if !ok {
		// A concurrent request already took the ticket down and released
		// the slot. Releasing again would let the counter drift below the
		// real advertised count.
		return nil
	}

	if err := s.Slots.Release(ctx); err != nil {
		s.Logger.Error("TICKET", fmt.Sprintf("Failed to release ad slot for %s: %v", id, err))
	}
	monitoring.AdvertisedSlotReleased()

	s.Logger.LogTicket("UNADVERTISE", id, "removed from featured set")
	ticket.IsAdvertised = false
	s.publish("unadvertised", *ticket)
	return nil
}

// Browse runs the public listing query pipeline over approved tickets.
func (s *TicketService) Browse(ctx context.Context, params ListParams) (BrowseResult, error) {
	tickets, err := s.DB.ListApproved(ctx)
	if err != nil {
		return BrowseResult{}, fmt.Errorf("failed to list tickets: %w", err)
	}
	return ApplyListParams(tickets, params), nil
}

// Featured returns the advertised set for the homepage.
func (s *TicketService) Featured(ctx context.Context) ([]models.Ticket, error) {
	return s.DB.ListAdvertised(ctx)
}

// Get returns a single publicly visible ticket. Pending and rejected
// tickets, and tickets of fraud-flagged vendors, read as not found.
func (s *TicketService) Get(ctx context.Context, id string) (*models.Ticket, error) {
	ticket, err := s.DB.GetTicketByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ticket %s: %w", id, err)
	}
	if ticket.VerificationStatus != models.VerificationApproved {
		return nil, fmt.Errorf("ticket %s: %w", id, domain.ErrNotFound)
	}

	vendor, err := s.Users.GetUserByID(ctx, ticket.VendorID)
	if err != nil {
		return nil, fmt.Errorf("vendor for ticket %s: %w", id, err)
	}
	if vendor.IsFraud {
		return nil, fmt.Errorf("ticket %s: %w", id, domain.ErrNotFound)
	}

	return ticket, nil
}

// VendorTickets lists a vendor's own tickets for the dashboard, any status.
func (s *TicketService) VendorTickets(ctx context.Context, actor *models.User) ([]models.Ticket, error) {
	if !policy.Allowed(actor.Role, policy.ActionViewVendorBoard) {
		return nil, fmt.Errorf("%w: vendor dashboard", domain.ErrForbidden)
	}
	return s.DB.ListByVendor(ctx, actor.ID)
}

// AdminTickets lists everything for the review table.
func (s *TicketService) AdminTickets(ctx context.Context, actor *models.User) ([]models.Ticket, error) {
	if !policy.Allowed(actor.Role, policy.ActionViewAdminBoard) {
		return nil, fmt.Errorf("%w: admin dashboard", domain.ErrForbidden)
	}
	return s.DB.ListAll(ctx)
}

// PendingTickets lists the verification queue, oldest submission first.
func (s *TicketService) PendingTickets(ctx context.Context, actor *models.User) ([]models.Ticket, error) {
	if !policy.Allowed(actor.Role, policy.ActionViewAdminBoard) {
		return nil, fmt.Errorf("%w: admin dashboard", domain.ErrForbidden)
	}
	return s.DB.ListPending(ctx)
}

func (s *TicketService) ownedTicket(ctx context.Context, actor *models.User, id string) (*models.Ticket, error) {
	if !policy.Allowed(actor.Role, policy.ActionManageOwnTicket) {
		return nil, fmt.Errorf("%w: role %s cannot manage tickets", domain.ErrForbidden, actor.Role)
	}
	ticket, err := s.DB.GetTicketByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ticket %s: %w", id, err)
	}
	if ticket.VendorID != actor.ID {
		return nil, fmt.Errorf("%w: ticket %s belongs to another vendor", domain.ErrForbidden, id)
	}
	return ticket, nil
}

func (s *TicketService) publish(eventType string, ticket models.Ticket) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Publish(s.Topic, ticket.ID, models.NewTicketEvent(eventType, ticket)); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish ticket %s event for %s: %v", eventType, ticket.ID, err))
	}
}
