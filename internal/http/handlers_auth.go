package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/example/uniride/internal/apperrors"
	"github.com/example/uniride/internal/models"
)

type signupRequest struct {
	Email      string          `json:"email"`
	Password   string          `json:"password"`
	Name       string          `json:"name"`
	StudentID  string          `json:"studentId"`
	Batch      string          `json:"batch"`
	Department string          `json:"department"`
	UserType   models.UserType `json:"userType"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err))
		return
	}
	if !strings.HasSuffix(req.Email, s.AllowedEmailDomain) {
		s.writeError(w, fmt.Errorf("%w: invalid university email domain", apperrors.ErrInvalidInput))
		return
	}
	if req.Password == "" || req.Name == "" || req.StudentID == "" || req.Batch == "" {
		s.writeError(w, fmt.Errorf("%w: missing required fields", apperrors.ErrInvalidInput))
		return
	}
	if req.UserType != models.UserPassenger && req.UserType != models.UserHybrid {
		s.writeError(w, fmt.Errorf("%w: userType must be passenger or hybrid", apperrors.ErrInvalidInput))
		return
	}

	uid, err := s.Identity.CreateUser(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err))
		return
	}

	// Passengers are auto-verified; hybrid users wait for manual review
	// before they can post offers.
	isHybrid := req.UserType == models.UserHybrid
	profile := &models.User{
		ID:                 uid,
		Email:              req.Email,
		Name:               req.Name,
		StudentID:          req.StudentID,
		Batch:              req.Batch,
		Department:         req.Department,
		UserType:           req.UserType,
		Verified:           !isHybrid,
		VerificationStatus: models.VerificationVerified,
		CreatedAt:          s.Rides.Now(),
	}
	if isHybrid {
		profile.VerificationStatus = models.VerificationPending
	}

	if err := s.KV.Set(r.Context(), "user:"+uid, profile); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.KV.Set(r.Context(), "user:email:"+req.Email, uid); err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":           "User created successfully",
		"user":              profile,
		"needsVerification": isHybrid,
	})
}

// currentUser loads the authenticated caller's profile.
func (s *Server) currentUser(r *http.Request) (*models.User, error) {
	uid := userIDFromContext(r.Context())
	if uid == "" {
		return nil, apperrors.ErrUnauthenticated
	}
	var u models.User
	found, err := s.KV.Get(r.Context(), "user:"+uid, &u)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: user profile", apperrors.ErrNotFound)
	}
	return &u, nil
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	u, err := s.currentUser(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": u})
}

// profileUpdate lists the client-settable fields. Role, rating, ride
// count, points, and verification state are server-owned.
type profileUpdate struct {
	Name       *string `json:"name"`
	StudentID  *string `json:"studentId"`
	Batch      *string `json:"batch"`
	Department *string `json:"department"`
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	u, err := s.currentUser(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var upd profileUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err))
		return
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.StudentID != nil {
		u.StudentID = *upd.StudentID
	}
	if upd.Batch != nil {
		u.Batch = *upd.Batch
	}
	if upd.Department != nil {
		u.Department = *upd.Department
	}
	u.UpdatedAt = s.Rides.Now()

	if err := s.KV.Set(r.Context(), "user:"+u.ID, u); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": u})
}
