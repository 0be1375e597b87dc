package handler

import (
	"net/http"

	"github.com/Sardor8866/festery/internal/service"
)

// RankingHandler serves leaderboards.
type RankingHandler struct {
	ranking *service.RankingService
}

// NewRankingHandler creates a new RankingHandler.
func NewRankingHandler(ranking *service.RankingService) *RankingHandler {
	return &RankingHandler{ranking: ranking}
}

// HandleTop returns the richest users.
func (h *RankingHandler) HandleTop(w http.ResponseWriter, r *http.Request) {
	users, err := h.ranking.GetTopUsers(r.Context(), queryInt(r, "limit", 10))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

// HandleLeaders returns the turnover or wins leaderboard (?by=).
func (h *RankingHandler) HandleLeaders(w http.ResponseWriter, r *http.Request) {
	board := r.URL.Query().Get("by")
	if board == "" {
		board = service.BoardTurnover
	}
	entries, err := h.ranking.Leaders(r.Context(), board, queryInt(r, "limit", 10))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"by": board, "leaders": entries})
}

// HandleDailyTop returns today's biggest winners and losers.
func (h *RankingHandler) HandleDailyTop(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 10)
	winners, err := h.ranking.GetDailyWinners(r.Context(), limit)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	losers, err := h.ranking.GetDailyLosers(r.Context(), limit)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"winners": winners, "losers": losers})
}
