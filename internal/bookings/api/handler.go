package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ticket-marketplace/internal/auth"
	"ticket-marketplace/internal/bookings"
	"ticket-marketplace/internal/logger"
	"ticket-marketplace/internal/utils"
)

type Handler struct {
	BookingService *bookings.BookingService
	Logger         *logger.Logger
}

func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())

	var in bookings.BookingInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	booking, err := h.BookingService.Create(r.Context(), actor, in)
	if err != nil {
		utils.WriteError(w, "Could not create booking", err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, "booking created", booking)
}

func (h *Handler) MyBookings(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())

	list, err := h.BookingService.ListForUser(r.Context(), actor)
	if err != nil {
		utils.WriteError(w, "Could not list bookings", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "bookings", list)
}

func (h *Handler) PayBooking(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())
	bookingID := chi.URLParam(r, "bookingId")

	booking, err := h.BookingService.Pay(r.Context(), actor, bookingID)
	if err != nil {
		utils.WriteError(w, "Could not pay booking", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "booking paid", booking)
}

func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())

	list, err := h.BookingService.TransactionHistory(r.Context(), actor)
	if err != nil {
		utils.WriteError(w, "Could not list transactions", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "transactions", list)
}

func (h *Handler) VendorBookings(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())

	list, err := h.BookingService.ListForVendor(r.Context(), actor)
	if err != nil {
		utils.WriteError(w, "Could not list vendor bookings", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "vendor bookings", list)
}

func (h *Handler) TicketBookings(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())
	ticketID := chi.URLParam(r, "ticketId")

	list, err := h.BookingService.TicketBookings(r.Context(), actor, ticketID)
	if err != nil {
		utils.WriteError(w, "Could not list ticket bookings", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "ticket bookings", list)
}

func (h *Handler) AcceptBooking(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())
	bookingID := chi.URLParam(r, "bookingId")

	if err := h.BookingService.Accept(r.Context(), actor, bookingID); err != nil {
		utils.WriteError(w, "Could not accept booking", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "booking accepted", nil)
}

func (h *Handler) RejectBooking(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())
	bookingID := chi.URLParam(r, "bookingId")

	if err := h.BookingService.Reject(r.Context(), actor, bookingID); err != nil {
		utils.WriteError(w, "Could not reject booking", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "booking rejected", nil)
}

func (h *Handler) VendorRevenue(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())

	overview, err := h.BookingService.VendorRevenue(r.Context(), actor)
	if err != nil {
		utils.WriteError(w, "Could not load revenue overview", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "revenue overview", overview)
}
