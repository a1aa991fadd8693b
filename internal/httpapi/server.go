// Package httpapi exposes the REST surface: authentication, paper-account
// management, trading and market data, and the social feed.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"stocktalk/internal/brokerage"
	"stocktalk/internal/identity"
	"stocktalk/internal/social"
	"stocktalk/internal/util"
)

// Server holds the services behind the REST API.
type Server struct {
	identity *identity.Service
	broker   *brokerage.Gateway
	social   *social.Service
	signinRL *util.RateLimiter
	log      *slog.Logger
}

// NewServer creates a Server. signinPerMinute caps sign-in attempts across
// all clients; 0 disables the limit.
func NewServer(id *identity.Service, broker *brokerage.Gateway, soc *social.Service, signinPerMinute int, log *slog.Logger) *Server {
	s := &Server{
		identity: id,
		broker:   broker,
		social:   soc,
		log:      log.With("component", "httpapi"),
	}
	if signinPerMinute > 0 {
		s.signinRL = util.NewRateLimiter(signinPerMinute)
	}
	return s
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/signup", s.handleSignup)
	mux.HandleFunc("GET /auth/signin", s.rateLimited(s.handleSignin))
	mux.HandleFunc("POST /auth/admin", s.handleAdmin)
	mux.HandleFunc("POST /auth/update", s.handleUpdatePassword)
	mux.HandleFunc("POST /auth/updateUsername", s.handleUpdateUsername)

	mux.HandleFunc("POST /setup/initialsetup", s.handleInitialSetup)

	mux.HandleFunc("POST /accounts/create", s.handleCreateAccount)
	mux.HandleFunc("GET /accounts/get", s.handleGetAccounts)

	mux.HandleFunc("GET /account/portfolioHistory", s.handlePortfolioHistory)
	mux.HandleFunc("GET /account/buyingPower", s.handleBuyingPower)
	mux.HandleFunc("GET /account/getAccount", s.handleBrokerAccount)
	mux.HandleFunc("GET /account/getOrders", s.handleOrders)
	mux.HandleFunc("GET /account/positions", s.handlePositions)
	mux.HandleFunc("POST /account/closePositions", s.handleClosePositions)

	mux.HandleFunc("POST /stock/buy", s.handleBuy)
	mux.HandleFunc("POST /stock/sell", s.handleSell)
	mux.HandleFunc("GET /stock/history", s.handleStockHistory)
	mux.HandleFunc("GET /stock/position", s.handleStockPosition)
	mux.HandleFunc("GET /stock/get", s.handleStockGet)
	mux.HandleFunc("GET /stock/snapshots", s.handleSnapshots)
	mux.HandleFunc("GET /stock/company", s.handleCompany)

	mux.HandleFunc("POST /social/post", s.handleCreatePost)
	mux.HandleFunc("POST /social/comment", s.handleCreateComment)
	mux.HandleFunc("POST /social/rating", s.handleRating)
	mux.HandleFunc("GET /social/getPosts", s.handleGetPosts)
}

// Handler returns an http.Handler with CORS and access-log middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(s.accessLog(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("request",
			"method", r.Method, "path", r.URL.Path,
			"duration", time.Since(start))
	})
}

// rateLimited rejects requests once the shared token bucket is drained.
func (s *Server) rateLimited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.signinRL != nil && !s.signinRL.Allow() {
			writeError(w, http.StatusTooManyRequests, "Too many requests")
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Success: false, Error: msg})
}

// decodeBody parses a JSON request body into dst. A failure is reported to
// the client and false is returned.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusInternalServerError, "Invalid request body")
		return false
	}
	return true
}
