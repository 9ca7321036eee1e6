package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ticket-marketplace/internal/auth"
	"ticket-marketplace/internal/logger"
	"ticket-marketplace/internal/tickets"
	"ticket-marketplace/internal/utils"
)

type Handler struct {
	TicketService *tickets.TicketService
	Logger        *logger.Logger
}

// Browse is the public listing: search, transport filter, price sort and
// pagination via query params.
func (h *Handler) Browse(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("page_size"))

	params := tickets.ListParams{
		Search:        q.Get("search"),
		TransportType: q.Get("transport_type"),
		Sort:          q.Get("sort"),
		Page:          page,
		PageSize:      pageSize,
	}

	result, err := h.TicketService.Browse(r.Context(), params)
	if err != nil {
		utils.WriteError(w, "Could not list tickets", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, "tickets", result)
}

// Featured returns the advertised set for the homepage.
func (h *Handler) Featured(w http.ResponseWriter, r *http.Request) {
	featured, err := h.TicketService.Featured(r.Context())
	if err != nil {
		utils.WriteError(w, "Could not list featured tickets", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "featured tickets", featured)
}

func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketId")
	ticket, err := h.TicketService.Get(r.Context(), ticketID)
	if err != nil {
		utils.WriteError(w, "Ticket not found", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "ticket", ticket)
}

func (h *Handler) CreateTicket(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())

	var in tickets.TicketInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	ticket, err := h.TicketService.Create(r.Context(), actor, in)
	if err != nil {
		utils.WriteError(w, "Could not create ticket", err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, "ticket created", ticket)
}

func (h *Handler) UpdateTicket(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())
	ticketID := chi.URLParam(r, "ticketId")

	var in tickets.TicketInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	ticket, err := h.TicketService.Update(r.Context(), actor, ticketID, in)
	if err != nil {
		utils.WriteError(w, "Could not update ticket", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, "ticket updated", ticket)
}

func (h *Handler) DeleteTicket(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())
	ticketID := chi.URLParam(r, "ticketId")

	if err := h.TicketService.Delete(r.Context(), actor, ticketID); err != nil {
		utils.WriteError(w, "Could not delete ticket", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, "ticket deleted", nil)
}

func (h *Handler) VendorTickets(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())

	list, err := h.TicketService.VendorTickets(r.Context(), actor)
	if err != nil {
		utils.WriteError(w, "Could not list vendor tickets", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "vendor tickets", list)
}

func (h *Handler) AdminTickets(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())

	list, err := h.TicketService.AdminTickets(r.Context(), actor)
	if err != nil {
		utils.WriteError(w, "Could not list tickets", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "all tickets", list)
}

func (h *Handler) PendingTickets(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())

	list, err := h.TicketService.PendingTickets(r.Context(), actor)
	if err != nil {
		utils.WriteError(w, "Could not list pending tickets", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "pending tickets", list)
}

func (h *Handler) ApproveTicket(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())
	ticketID := chi.URLParam(r, "ticketId")

	if err := h.TicketService.Approve(r.Context(), actor, ticketID); err != nil {
		utils.WriteError(w, "Could not approve ticket", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "ticket approved", nil)
}

func (h *Handler) RejectTicket(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())
	ticketID := chi.URLParam(r, "ticketId")

	if err := h.TicketService.Reject(r.Context(), actor, ticketID); err != nil {
		utils.WriteError(w, "Could not reject ticket", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "ticket rejected", nil)
}

func (h *Handler) AdvertiseTicket(w http.ResponseWriter, r *http.Request) {
	h.setAdvertised(w, r, true)
}

func (h *Handler) UnadvertiseTicket(w http.ResponseWriter, r *http.Request) {
	h.setAdvertised(w, r, false)
}

func (h *Handler) setAdvertised(w http.ResponseWriter, r *http.Request, advertised bool) {
	actor, _ := auth.ActorFrom(r.Context())
	ticketID := chi.URLParam(r, "ticketId")

	if err := h.TicketService.SetAdvertised(r.Context(), actor, ticketID, advertised); err != nil {
		utils.WriteError(w, "Could not update advertisement", err)
		return
	}

	msg := "ticket advertised"
	if !advertised {
		msg = "ticket removed from advertisement"
	}
	utils.WriteJSON(w, http.StatusOK, msg, nil)
}
