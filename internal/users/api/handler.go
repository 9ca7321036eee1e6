package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"ticket-marketplace/internal/auth"
	"ticket-marketplace/internal/logger"
	"ticket-marketplace/internal/users"
	"ticket-marketplace/internal/utils"
)

type Handler struct {
	UserService *users.UserService
	Logger      *logger.Logger
}

// Me returns the caller's own stored account, role included, so the
// frontend can route to the right dashboard.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		http.Error(w, "not authenticated", http.StatusUnauthorized)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "account", actor)
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())

	list, err := h.UserService.List(r.Context(), actor)
	if err != nil {
		utils.WriteError(w, "Could not list users", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "users", list)
}

func (h *Handler) MakeVendor(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())
	userID := chi.URLParam(r, "userId")

	if err := h.UserService.PromoteToVendor(r.Context(), actor, userID); err != nil {
		utils.WriteError(w, "Could not promote user", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "user promoted to vendor", nil)
}

func (h *Handler) MakeAdmin(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())
	userID := chi.URLParam(r, "userId")

	if err := h.UserService.PromoteToAdmin(r.Context(), actor, userID); err != nil {
		utils.WriteError(w, "Could not promote user", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "user promoted to admin", nil)
}

func (h *Handler) MarkFraud(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())
	userID := chi.URLParam(r, "userId")

	if err := h.UserService.MarkFraud(r.Context(), actor, userID); err != nil {
		utils.WriteError(w, "Could not flag vendor", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "vendor flagged as fraud", nil)
}
