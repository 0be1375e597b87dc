// Package handler provides the JSON/HTTP handlers of the game call surface.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/Sardor8866/festery/internal/service"
	"github.com/Sardor8866/festery/internal/session"
)

type ctxKey int

const userIDKey ctxKey = iota

// WithUserID returns a context carrying the caller's user id.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserID returns the caller's user id set by WithUserID.
func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok
}

// ErrorBody is the JSON body of every error response.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type errorMapping struct {
	err    error
	status int
	code   string
}

// Order matters: a reveal on a settling session wraps both ErrInvalidMove
// and ErrSettlementPending.
var errorMappings = []errorMapping{
	{session.ErrSettlementPending, http.StatusServiceUnavailable, "settlement_pending"},
	{session.ErrEngineClosed, http.StatusServiceUnavailable, "unavailable"},
	{session.ErrAlreadyActive, http.StatusConflict, "already_active"},
	{session.ErrBusy, http.StatusConflict, "busy"},
	{session.ErrInsufficientFunds, http.StatusPaymentRequired, "insufficient_funds"},
	{session.ErrInvalidDifficulty, http.StatusBadRequest, "invalid_difficulty"},
	{session.ErrInvalidStake, http.StatusBadRequest, "invalid_stake"},
	{session.ErrNoActiveSession, http.StatusNotFound, "no_active_session"},
	{session.ErrInvalidMove, http.StatusUnprocessableEntity, "invalid_move"},
	{session.ErrNothingToCashOut, http.StatusUnprocessableEntity, "nothing_to_cash_out"},
	{service.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{service.ErrUserNotFound, http.StatusNotFound, "user_not_found"},
	{service.ErrUnknownBoard, http.StatusBadRequest, "unknown_board"},
	{service.ErrSelfReferral, http.StatusBadRequest, "self_referral"},
	{service.ErrUnknownReferrer, http.StatusNotFound, "unknown_referrer"},
	{service.ErrAlreadyReferred, http.StatusConflict, "already_referred"},
	{service.ErrNothingToWithdraw, http.StatusUnprocessableEntity, "nothing_to_withdraw"},
}

// StatusFor maps a service or engine error to an HTTP status and error code.
func StatusFor(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorBody{Error: code, Message: message})
}

// writeErr writes err with its mapped status. Unmapped errors are logged and
// their text is not exposed.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status, code := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		msg = "internal error"
	}
	writeError(w, status, code, msg)
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// requireUser returns the caller's id or writes 401.
func requireUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing user id")
	}
	return id, ok
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
