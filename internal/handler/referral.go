package handler

import (
	"net/http"

	"github.com/Sardor8866/festery/internal/service"
)

// ReferralHandler serves referral registration and withdrawals.
type ReferralHandler struct {
	referrals *service.ReferralService
}

// NewReferralHandler creates a new ReferralHandler.
func NewReferralHandler(referrals *service.ReferralService) *ReferralHandler {
	return &ReferralHandler{referrals: referrals}
}

// ReferralRequest is the body of a referral registration.
type ReferralRequest struct {
	ReferrerID int64 `json:"referrer_id"`
}

// HandleRegister sets the caller's referrer.
func (h *ReferralHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req ReferralRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if err := h.referrals.Register(r.Context(), userID, req.ReferrerID); err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGet returns the caller's referral account.
func (h *ReferralHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	acc, err := h.referrals.Get(r.Context(), userID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

// HandleWithdraw moves the referral balance into the main balance.
func (h *ReferralHandler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	amount, err := h.referrals.Withdraw(r.Context(), userID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"withdrawn": amount})
}
