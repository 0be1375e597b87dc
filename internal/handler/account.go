package handler

import (
	"net/http"

	"github.com/Sardor8866/festery/internal/service"
)

// AccountHandler serves balance and history queries.
type AccountHandler struct {
	accounts *service.AccountService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accounts *service.AccountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

// BalanceResponse is the body of a balance query.
type BalanceResponse struct {
	UserID  int64 `json:"user_id"`
	Balance int64 `json:"balance"`
}

// HandleBalance returns the caller's balance, creating the account on first use.
func (h *AccountHandler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	user, _, err := h.accounts.EnsureUser(r.Context(), userID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{UserID: user.UserID, Balance: user.Balance})
}

// HandleHistory returns the caller's latest transactions.
func (h *AccountHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	txs, err := h.accounts.History(r.Context(), userID, queryInt(r, "limit", 20))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txs})
}
