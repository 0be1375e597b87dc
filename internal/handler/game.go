package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Sardor8866/festery/internal/service"
)

// GameHandler serves session actions.
type GameHandler struct {
	games *service.GameService
}

// NewGameHandler creates a new GameHandler.
func NewGameHandler(games *service.GameService) *GameHandler {
	return &GameHandler{games: games}
}

// StartRequest is the body of a session start.
type StartRequest struct {
	Stake int64 `json:"stake"`
	Level int   `json:"level"`
}

// RevealRequest is the body of a reveal.
type RevealRequest struct {
	DecisionPoint int `json:"decision_point"`
	Slot          int `json:"slot"`
}

// HandleGames lists the playable games.
func (h *GameHandler) HandleGames(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"games": h.games.Games()})
}

// HandleStart opens a session of the game in the path.
func (h *GameHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req StartRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	v, err := h.games.Start(r.Context(), userID, mux.Vars(r)["game"], req.Level, req.Stake)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

// HandleActive returns the caller's session.
func (h *GameHandler) HandleActive(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	v, err := h.games.Active(userID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// HandleReveal opens one slot.
func (h *GameHandler) HandleReveal(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req RevealRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	out, err := h.games.Reveal(r.Context(), userID, req.DecisionPoint, req.Slot)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleCashOut settles the caller's session.
func (h *GameHandler) HandleCashOut(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	out, err := h.games.CashOut(r.Context(), userID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
