package handler

import (
	"net/http"

	"github.com/Sardor8866/festery/internal/service"
)

// AdminHandler handles admin-only operations. Admin checks happen in the
// router middleware.
type AdminHandler struct {
	accounts *service.AccountService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(accounts *service.AccountService) *AdminHandler {
	return &AdminHandler{accounts: accounts}
}

// CreditRequest is the body of an admin credit.
type CreditRequest struct {
	UserID int64 `json:"user_id"`
	Amount int64 `json:"amount"`
}

// HandleCredit adds balance to a user.
func (h *AdminHandler) HandleCredit(w http.ResponseWriter, r *http.Request) {
	adminID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req CreditRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	user, err := h.accounts.AdminCredit(r.Context(), adminID, req.UserID, req.Amount)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{UserID: user.UserID, Balance: user.Balance})
}
