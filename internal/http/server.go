package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/uniride/internal/apperrors"
	"github.com/example/uniride/internal/dispatch"
	"github.com/example/uniride/internal/identity"
	"github.com/example/uniride/internal/kvstore"
	"github.com/example/uniride/internal/leaderboard"
	"github.com/example/uniride/internal/ratings"
	"github.com/example/uniride/internal/rides"
)

type Server struct {
	KV          kvstore.KV
	Identity    identity.Provider
	Rides       *rides.Service
	Ratings     *ratings.Service
	Leaderboard *leaderboard.Service
	WSReg       *dispatch.WSRegistry

	AllowedEmailDomain string

	logger *slog.Logger
	mux    *mux.Router
}

type Deps struct {
	KV                 kvstore.KV
	Identity           identity.Provider
	Rides              *rides.Service
	Ratings            *ratings.Service
	Leaderboard        *leaderboard.Service
	WSReg              *dispatch.WSRegistry
	AllowedEmailDomain string
	Logger             *slog.Logger
}

func NewServer(d Deps) *Server {
	s := &Server{
		KV:                 d.KV,
		Identity:           d.Identity,
		Rides:              d.Rides,
		Ratings:            d.Ratings,
		Leaderboard:        d.Leaderboard,
		WSReg:              d.WSReg,
		AllowedEmailDomain: d.AllowedEmailDomain,
		logger:             d.Logger,
		mux:                mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/auth/signup", s.handleSignup).Methods("POST")
	s.mux.HandleFunc("/auth/profile", s.handleGetProfile).Methods("GET")
	s.mux.HandleFunc("/auth/profile", s.handleUpdateProfile).Methods("PUT")

	s.mux.HandleFunc("/rides/offer", s.handlePostOffer).Methods("POST")
	s.mux.HandleFunc("/rides/request", s.handlePostRequest).Methods("POST")
	s.mux.HandleFunc("/rides", s.handleFeed).Methods("GET")
	s.mux.HandleFunc("/rides/my", s.handleMyRides).Methods("GET")
	s.mux.HandleFunc("/rides/{id}/join", s.handleJoin).Methods("POST")
	s.mux.HandleFunc("/rides/{id}/passenger/{pid}/{action}", s.handlePassengerAction).Methods("POST")
	s.mux.HandleFunc("/rides/{id}/rate", s.handleRate).Methods("POST")

	s.mux.HandleFunc("/leaderboard", s.handleLeaderboard).Methods("GET")
	s.mux.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws/{user_id}", s.handleWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := apperrors.Status(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		// Never leak internals on unexpected failures.
		if s.logger != nil {
			s.logger.Error("internal error", "error", err)
		}
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}
