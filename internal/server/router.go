package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Sardor8866/festery/internal/config"
	"github.com/Sardor8866/festery/internal/handler"
	"github.com/Sardor8866/festery/internal/service"
)

// Dependencies holds everything the router's handlers need.
type Dependencies struct {
	Config          *config.Config
	AccountService  *service.AccountService
	RankingService  *service.RankingService
	ReferralService *service.ReferralService
	GameService     *service.GameService
	Gatherer        prometheus.Gatherer
}

// New builds the HTTP router.
func New(deps *Dependencies) *mux.Router {
	accountHandler := handler.NewAccountHandler(deps.AccountService)
	adminHandler := handler.NewAdminHandler(deps.AccountService)
	rankingHandler := handler.NewRankingHandler(deps.RankingService)
	referralHandler := handler.NewReferralHandler(deps.ReferralService)
	gameHandler := handler.NewGameHandler(deps.GameService)

	r := mux.NewRouter()
	r.Use(RecoveryMiddleware(), UserIDMiddleware(), LoggingMiddleware())

	r.HandleFunc("/health", handleHealth).Methods(http.MethodGet)
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	v1 := r.PathPrefix("/v1").Subrouter()

	// Games
	v1.HandleFunc("/games", gameHandler.HandleGames).Methods(http.MethodGet)
	v1.HandleFunc("/games/{game}/sessions", gameHandler.HandleStart).Methods(http.MethodPost)
	v1.HandleFunc("/session", gameHandler.HandleActive).Methods(http.MethodGet)
	v1.HandleFunc("/session/reveal", gameHandler.HandleReveal).Methods(http.MethodPost)
	v1.HandleFunc("/session/cashout", gameHandler.HandleCashOut).Methods(http.MethodPost)

	// Account and rankings
	v1.HandleFunc("/balance", accountHandler.HandleBalance).Methods(http.MethodGet)
	v1.HandleFunc("/history", accountHandler.HandleHistory).Methods(http.MethodGet)
	v1.HandleFunc("/top", rankingHandler.HandleTop).Methods(http.MethodGet)
	v1.HandleFunc("/leaders", rankingHandler.HandleLeaders).Methods(http.MethodGet)
	v1.HandleFunc("/daily_top", rankingHandler.HandleDailyTop).Methods(http.MethodGet)

	// Referrals
	v1.HandleFunc("/referrals", referralHandler.HandleRegister).Methods(http.MethodPost)
	v1.HandleFunc("/referrals", referralHandler.HandleGet).Methods(http.MethodGet)
	v1.HandleFunc("/referrals/withdraw", referralHandler.HandleWithdraw).Methods(http.MethodPost)

	// Admin
	admin := v1.PathPrefix("/admin").Subrouter()
	admin.Use(AdminMiddleware(deps.Config))
	admin.HandleFunc("/credit", adminHandler.HandleCredit).Methods(http.MethodPost)

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
