package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sardor8866/festery/internal/pkg/lock"
	"github.com/Sardor8866/festery/internal/service"
	"github.com/Sardor8866/festery/internal/session"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{session.ErrAlreadyActive, http.StatusConflict, "already_active"},
		{fmt.Errorf("%w: %w", session.ErrBusy, lock.ErrLockTimeout), http.StatusConflict, "busy"},
		{fmt.Errorf("%w: failed to debit stake: %w", session.ErrEngineClosed, context.Canceled), http.StatusServiceUnavailable, "unavailable"},
		{session.ErrInsufficientFunds, http.StatusPaymentRequired, "insufficient_funds"},
		{session.ErrInvalidDifficulty, http.StatusBadRequest, "invalid_difficulty"},
		{session.ErrInvalidStake, http.StatusBadRequest, "invalid_stake"},
		{session.ErrNoActiveSession, http.StatusNotFound, "no_active_session"},
		{fmt.Errorf("%w: slot 9 out of range", session.ErrInvalidMove), http.StatusUnprocessableEntity, "invalid_move"},
		{session.ErrNothingToCashOut, http.StatusUnprocessableEntity, "nothing_to_cash_out"},
		{fmt.Errorf("%w: %w", session.ErrInvalidMove, session.ErrSettlementPending), http.StatusServiceUnavailable, "settlement_pending"},
		{session.ErrEngineClosed, http.StatusServiceUnavailable, "unavailable"},
		{service.ErrAlreadyReferred, http.StatusConflict, "already_referred"},
		{service.ErrUnknownBoard, http.StatusBadRequest, "unknown_board"},
		{errors.New("boom"), http.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			status, code := StatusFor(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestWriteErrHidesInternalErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/balance", nil)

	writeErr(rec, req, errors.New("connection refused on 10.0.0.1"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotContains(t, rec.Body.String(), "10.0.0.1")
}

func TestUserIDContext(t *testing.T) {
	_, ok := UserID(context.Background())
	assert.False(t, ok)

	id, ok := UserID(WithUserID(context.Background(), 7))
	require.True(t, ok)
	assert.Equal(t, int64(7), id)
}

func TestRequireUser(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/session", nil)

	_, ok := requireUser(rec, req)
	assert.False(t, ok)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"stake":10,"bet":5}`))
	var body StartRequest
	assert.Error(t, decode(req, &body))
}

func TestQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=5&bad=x", nil)
	assert.Equal(t, 5, queryInt(req, "limit", 10))
	assert.Equal(t, 10, queryInt(req, "bad", 10))
	assert.Equal(t, 10, queryInt(req, "missing", 10))
}
