package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/uniride/internal/dispatch"
	"github.com/example/uniride/internal/identity"
	"github.com/example/uniride/internal/kvstore"
	"github.com/example/uniride/internal/leaderboard"
	"github.com/example/uniride/internal/logging"
	"github.com/example/uniride/internal/ratings"
	"github.com/example/uniride/internal/rides"
)

type testEnv struct {
	srv      *Server
	kv       kvstore.KV
	provider *identity.JWTProvider
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	kv := kvstore.NewMemoryKV()
	provider := identity.NewJWTProvider("test-secret")
	logger := logging.NewLogger("error")
	srv := NewServer(Deps{
		KV:                 kv,
		Identity:           provider,
		Rides:              rides.NewService(kv, nil, nil, logger),
		Ratings:            ratings.NewService(kv, nil, nil, logger),
		Leaderboard:        leaderboard.NewService(kv, 50, 0),
		WSReg:              dispatch.NewWSRegistry(),
		AllowedEmailDomain: "@eng.jfn.ac.lk",
		Logger:             logger,
	})
	return &testEnv{srv: srv, kv: kv, provider: provider}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.srv.ServeHTTP(w, req)
	return w
}

func (e *testEnv) signup(t *testing.T, email, userType string) (uid, token string) {
	t.Helper()
	w := e.do(t, "POST", "/auth/signup", "", map[string]any{
		"email": email, "password": "pw12345", "name": "Test User",
		"studentId": "2020E001", "batch": "2022", "department": "CSE", "userType": userType,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("signup %s: status %d body %s", email, w.Code, w.Body.String())
	}
	var resp struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	tok, err := e.provider.GenerateToken(resp.User.ID)
	if err != nil {
		t.Fatal(err)
	}
	return resp.User.ID, tok
}

func TestSignupRejectsForeignDomain(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(t, "POST", "/auth/signup", "", map[string]any{
		"email": "alice@gmail.com", "password": "pw", "name": "Alice",
		"studentId": "x", "batch": "2022", "userType": "passenger",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestSignupHybridNeedsVerification(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(t, "POST", "/auth/signup", "", map[string]any{
		"email": "d@eng.jfn.ac.lk", "password": "pw", "name": "D",
		"studentId": "s", "batch": "2022", "department": "CSE", "userType": "hybrid",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", w.Code, w.Body.String())
	}
	var resp struct {
		NeedsVerification bool `json:"needsVerification"`
		User              struct {
			Verified           bool   `json:"verified"`
			VerificationStatus string `json:"verificationStatus"`
		} `json:"user"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.NeedsVerification || resp.User.Verified || resp.User.VerificationStatus != "pending" {
		t.Fatalf("hybrid signup = %+v", resp)
	}
}

func TestAuthRequired(t *testing.T) {
	e := newTestEnv(t)
	for _, path := range []string{"/auth/profile", "/rides", "/rides/my"} {
		if w := e.do(t, "GET", path, "", nil); w.Code != http.StatusUnauthorized {
			t.Fatalf("GET %s without token: status = %d, want 401", path, w.Code)
		}
	}
	if w := e.do(t, "GET", "/rides", "garbage-token", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: status = %d, want 401", w.Code)
	}
}

func TestHealthAndLeaderboardOpen(t *testing.T) {
	e := newTestEnv(t)
	if w := e.do(t, "GET", "/health", "", nil); w.Code != http.StatusOK {
		t.Fatalf("health: %d", w.Code)
	}
	if w := e.do(t, "GET", "/leaderboard", "", nil); w.Code != http.StatusOK {
		t.Fatalf("leaderboard: %d", w.Code)
	}
}

func TestProfileRoundTrip(t *testing.T) {
	e := newTestEnv(t)
	_, tok := e.signup(t, "p@eng.jfn.ac.lk", "passenger")

	w := e.do(t, "GET", "/auth/profile", tok, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get profile: %d %s", w.Code, w.Body.String())
	}

	w = e.do(t, "PUT", "/auth/profile", tok, map[string]any{"name": "Renamed", "points": 99999})
	if w.Code != http.StatusOK {
		t.Fatalf("put profile: %d %s", w.Code, w.Body.String())
	}
	var resp struct {
		User struct {
			Name   string `json:"name"`
			Points int    `json:"points"`
		} `json:"user"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.User.Name != "Renamed" {
		t.Fatalf("name = %q", resp.User.Name)
	}
	// Server-owned fields cannot be written from the client.
	if resp.User.Points != 0 {
		t.Fatalf("points = %d, want 0", resp.User.Points)
	}
}

func TestOfferJoinDecideRateFlow(t *testing.T) {
	e := newTestEnv(t)
	driverID, driverTok := e.signup(t, "driver@eng.jfn.ac.lk", "hybrid")
	_, paxTok := e.signup(t, "pax@eng.jfn.ac.lk", "passenger")

	// Passenger cannot post an offer.
	w := e.do(t, "POST", "/rides/offer", paxTok, map[string]any{
		"from": "Campus", "to": "Town", "departureTime": "8:00 AM", "availableSeats": 2, "vehicle": "car",
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("passenger offer: %d", w.Code)
	}

	w = e.do(t, "POST", "/rides/offer", driverTok, map[string]any{
		"from": "Campus", "to": "Town", "departureTime": "8:00 AM", "availableSeats": 2, "vehicle": "car",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("offer: %d %s", w.Code, w.Body.String())
	}
	var offerResp struct {
		Ride struct {
			ID string `json:"id"`
		} `json:"ride"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &offerResp); err != nil {
		t.Fatal(err)
	}
	rideID := offerResp.Ride.ID

	// Feed shows the offer to the passenger, not to the author.
	w = e.do(t, "GET", "/rides", paxTok, nil)
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte(rideID)) {
		t.Fatalf("passenger feed: %d %s", w.Code, w.Body.String())
	}
	w = e.do(t, "GET", "/rides", driverTok, nil)
	if bytes.Contains(w.Body.Bytes(), []byte(rideID)) {
		t.Fatalf("author sees own ride in feed")
	}

	// Join, then the author accepts.
	w = e.do(t, "POST", "/rides/"+rideID+"/join", paxTok, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("join: %d %s", w.Code, w.Body.String())
	}
	var joinResp struct {
		Ride struct {
			Offer struct {
				Passengers []struct {
					ID string `json:"id"`
				} `json:"passengers"`
			} `json:"offer"`
		} `json:"ride"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &joinResp); err != nil {
		t.Fatal(err)
	}
	paxID := joinResp.Ride.Offer.Passengers[0].ID

	w = e.do(t, "POST", "/rides/"+rideID+"/passenger/"+paxID+"/accept", paxTok, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("non-author decide: %d, want 404", w.Code)
	}
	w = e.do(t, "POST", "/rides/"+rideID+"/passenger/"+paxID+"/accept", driverTok, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("accept: %d %s", w.Code, w.Body.String())
	}

	// Rating outside 1..5 is rejected, then a valid one lands.
	w = e.do(t, "POST", "/rides/"+rideID+"/rate", paxTok, map[string]any{"rating": 9})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad rating: %d", w.Code)
	}
	w = e.do(t, "POST", "/rides/"+rideID+"/rate", paxTok, map[string]any{"rating": 5, "review": "great"})
	if w.Code != http.StatusOK {
		t.Fatalf("rate: %d %s", w.Code, w.Body.String())
	}

	// The driver now appears on the leaderboard.
	w = e.do(t, "GET", "/leaderboard", "", nil)
	if !bytes.Contains(w.Body.Bytes(), []byte(driverID)) {
		t.Fatalf("driver missing from leaderboard: %s", w.Body.String())
	}
}

func TestRequestQuotaOverHTTP(t *testing.T) {
	e := newTestEnv(t)
	_, paxTok := e.signup(t, "pax@eng.jfn.ac.lk", "passenger")

	body := map[string]any{"from": "Hostel", "to": "Campus", "departureTime": "7:30 AM"}
	for i := 0; i < 2; i++ {
		if w := e.do(t, "POST", "/rides/request", paxTok, body); w.Code != http.StatusOK {
			t.Fatalf("request %d: %d %s", i+1, w.Code, w.Body.String())
		}
	}
	if w := e.do(t, "POST", "/rides/request", paxTok, body); w.Code != http.StatusTooManyRequests {
		t.Fatalf("3rd request: %d, want 429", w.Code)
	}
}
