package service

import (
	"context"

	"github.com/Sardor8866/festery/internal/game"
	"github.com/Sardor8866/festery/internal/game/board"
	"github.com/Sardor8866/festery/internal/session"
)

// LevelInfo describes one difficulty of a game.
type LevelInfo struct {
	Level          int       `json:"level"`
	DecisionPoints int       `json:"decision_points"`
	Slots          int       `json:"slots"`
	Hazards        int       `json:"hazards"`
	Multipliers    []float64 `json:"multipliers"`
}

// GameInfo describes a playable game.
type GameInfo struct {
	Command     string         `json:"command"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Topology    board.Topology `json:"topology"`
	MinBet      int64          `json:"min_bet"`
	MaxBet      int64          `json:"max_bet"`
	Levels      []LevelInfo    `json:"levels"`
}

// GameService is the call surface the presentation layer drives: it makes
// sure the player has an account and forwards actions to the engine.
type GameService struct {
	engine   *session.Engine
	games    *game.Registry
	accounts *AccountService
}

// NewGameService creates a new GameService instance.
func NewGameService(engine *session.Engine, games *game.Registry, accounts *AccountService) *GameService {
	return &GameService{engine: engine, games: games, accounts: accounts}
}

// Games lists the registered games with their tables.
func (s *GameService) Games() []GameInfo {
	variants := s.games.List()
	infos := make([]GameInfo, 0, len(variants))
	for _, v := range variants {
		info := GameInfo{
			Command:     v.Command(),
			Name:        v.Name(),
			Description: v.Description(),
			Topology:    v.Topology(),
			MinBet:      v.MinBet(),
			MaxBet:      v.MaxBet(),
		}
		for _, level := range v.Levels() {
			d := game.Difficulty{Game: v.Command(), Level: level}
			spec, err := s.games.Board(d)
			if err != nil {
				continue
			}
			table, err := s.games.Table(d)
			if err != nil {
				continue
			}
			info.Levels = append(info.Levels, LevelInfo{
				Level:          level,
				DecisionPoints: spec.DecisionPoints,
				Slots:          spec.Slots,
				Hazards:        spec.Hazards,
				Multipliers:    table,
			})
		}
		infos = append(infos, info)
	}
	return infos
}

// Start opens a session of command at level for the user.
func (s *GameService) Start(ctx context.Context, userID int64, command string, level int, stake int64) (session.View, error) {
	if _, _, err := s.accounts.EnsureUser(ctx, userID); err != nil {
		return session.View{}, err
	}
	return s.engine.Start(ctx, session.StartRequest{
		UserID:     userID,
		Stake:      stake,
		Difficulty: game.Difficulty{Game: command, Level: level},
	})
}

// Active returns the user's current session.
func (s *GameService) Active(userID int64) (session.View, error) {
	return s.engine.Active(userID)
}

// Reveal opens a slot in the user's session.
func (s *GameService) Reveal(ctx context.Context, userID int64, decisionPoint, slot int) (session.Outcome, error) {
	return s.engine.Reveal(ctx, userID, decisionPoint, slot)
}

// CashOut settles the user's session at the current multiplier.
func (s *GameService) CashOut(ctx context.Context, userID int64) (session.Outcome, error) {
	return s.engine.CashOut(ctx, userID)
}
