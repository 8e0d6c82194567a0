package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/example/uniride/internal/apperrors"
	"github.com/example/uniride/internal/rides"
)

func (s *Server) handlePostOffer(w http.ResponseWriter, r *http.Request) {
	u, err := s.currentUser(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var in rides.OfferInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err))
		return
	}
	ride, err := s.Rides.PostOffer(r.Context(), u, in)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Ride offer posted successfully", "ride": ride})
}

func (s *Server) handlePostRequest(w http.ResponseWriter, r *http.Request) {
	u, err := s.currentUser(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var in rides.RequestInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err))
		return
	}
	ride, err := s.Rides.PostRequest(r.Context(), u, in)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Ride request posted successfully", "request": ride})
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	u, err := s.currentUser(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	feed, err := s.Rides.Feed(r.Context(), u)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rides": feed})
}

func (s *Server) handleMyRides(w http.ResponseWriter, r *http.Request) {
	uid := userIDFromContext(r.Context())
	mine, err := s.Rides.MyRides(r.Context(), uid)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rides": mine})
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	u, err := s.currentUser(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	rideID := mux.Vars(r)["id"]
	ride, err := s.Rides.Join(r.Context(), u, rideID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Join request sent successfully", "ride": ride})
}

func (s *Server) handlePassengerAction(w http.ResponseWriter, r *http.Request) {
	uid := userIDFromContext(r.Context())
	vars := mux.Vars(r)
	ride, err := s.Rides.Decide(r.Context(), uid, vars["id"], vars["pid"], vars["action"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("Passenger %sed successfully", vars["action"]),
		"ride":    ride,
	})
}

type rateRequest struct {
	Rating int    `json:"rating"`
	Review string `json:"review"`
}

func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	u, err := s.currentUser(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req rateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err))
		return
	}
	if err := s.Ratings.Rate(r.Context(), u, mux.Vars(r)["id"], req.Rating, req.Review); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Rating submitted successfully"})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := s.Leaderboard.Top(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"leaderboard": entries})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

var upgrader = websocket.Upgrader{
	// Same-origin policy enforcement happens at the edge proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWS registers a notification channel for the user. The token
// comes from the query string because browsers cannot set headers on a
// websocket upgrade.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]
	token := r.URL.Query().Get("token")
	if token == "" {
		token = bearerToken(r)
	}
	uid, err := s.resolveToken(r.Context(), token)
	if err != nil || uid != userID {
		s.writeError(w, apperrors.ErrUnauthenticated)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "upgrade failed", http.StatusBadRequest)
		return
	}
	s.WSReg.Add(userID, conn)

	// Drain the connection so close frames are processed; drop the
	// session once the peer goes away.
	go func() {
		defer s.WSReg.Remove(userID, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
