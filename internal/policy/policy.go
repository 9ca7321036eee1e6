package policy

import "ticket-marketplace/internal/models"

// Action enumerates every mutation a caller can request against the core.
type Action string

const (
	ActionCreateTicket     Action = "ticket.create"
	ActionManageOwnTicket  Action = "ticket.manage_own" // update/delete a non-rejected own ticket
	ActionVerifyTicket     Action = "ticket.verify"     // approve or reject
	ActionAdvertiseTicket  Action = "ticket.advertise"  // advertise or unadvertise
	ActionCreateBooking    Action = "booking.create"
	ActionDecideBooking    Action = "booking.decide" // accept or reject
	ActionPayBooking       Action = "booking.pay"
	ActionPromoteUser      Action = "user.promote"
	ActionMarkVendorFraud  Action = "user.mark_fraud"
	ActionListUsers        Action = "user.list"
	ActionViewVendorBoard  Action = "dashboard.vendor"
	ActionViewUserBoard    Action = "dashboard.user"
	ActionViewAdminBoard   Action = "dashboard.admin"
)

// capabilities is the role capability matrix. Ownership checks (a vendor may
// only touch its own tickets, a user only its own bookings) are enforced by
// the services on top of this table.
var capabilities = map[Action]map[models.Role]bool{
	ActionCreateTicket:    {models.RoleVendor: true},
	ActionManageOwnTicket: {models.RoleVendor: true},
	ActionVerifyTicket:    {models.RoleAdmin: true},
	ActionAdvertiseTicket: {models.RoleAdmin: true},
	ActionCreateBooking:   {models.RoleUser: true},
	ActionDecideBooking:   {models.RoleVendor: true},
	ActionPayBooking:      {models.RoleUser: true},
	ActionPromoteUser:     {models.RoleAdmin: true},
	ActionMarkVendorFraud: {models.RoleAdmin: true},
	ActionListUsers:       {models.RoleAdmin: true},
	ActionViewVendorBoard: {models.RoleVendor: true},
	ActionViewUserBoard:   {models.RoleUser: true},
	ActionViewAdminBoard:  {models.RoleAdmin: true},
}

// Allowed reports whether the role may perform the action. Unknown actions
// are denied.
func Allowed(role models.Role, action Action) bool {
	roles, ok := capabilities[action]
	if !ok {
		return false
	}
	return roles[role]
}
