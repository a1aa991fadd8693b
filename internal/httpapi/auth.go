package httpapi

import (
	"errors"
	"net/http"

	"stocktalk/internal/identity"
)

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decodeBody(w, r, &req) {
		return
	}

	userID, err := s.identity.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		s.log.Error("signup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Error creating user")
		return
	}
	writeJSON(w, signupResponse{Success: true, UserID: userID})
}

// handleSignin reads credentials from query parameters; the route is a GET.
func (s *Server) handleSignin(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	password := r.URL.Query().Get("password")

	userID, err := s.identity.SignIn(r.Context(), email, password)
	if err != nil {
		s.log.Warn("signin failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Error signing in")
		return
	}
	writeJSON(w, signinResponse{Success: true, UserID: userID})
}

func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	var req adminRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.identity.Promote(r.Context(), req.UserID, req.TargetID); err != nil {
		if errors.Is(err, identity.ErrNotAdmin) {
			writeError(w, http.StatusForbidden, "Admin privileges required")
			return
		}
		s.log.Error("admin promotion failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Error updating user")
		return
	}
	writeJSON(w, okResponse{Success: true, Message: "User promoted to admin"})
}

func (s *Server) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	var req updatePasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.identity.UpdatePassword(r.Context(), req.UserID, req.Password); err != nil {
		s.log.Error("password update failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Error updating password")
		return
	}
	writeJSON(w, okResponse{Success: true, Message: "Password updated"})
}

func (s *Server) handleUpdateUsername(w http.ResponseWriter, r *http.Request) {
	var req updateUsernameRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.identity.UpdateUsername(r.Context(), req.UserID, req.Username); err != nil {
		s.log.Error("username update failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Error updating username")
		return
	}
	writeJSON(w, okResponse{Success: true, Message: "Username updated"})
}

func (s *Server) handleInitialSetup(w http.ResponseWriter, r *http.Request) {
	var req initialSetupRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.identity.InitialSetup(r.Context(), req.UserID, req.Username, req.Age); err != nil {
		s.log.Error("initial setup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Error completing setup")
		return
	}
	writeJSON(w, okResponse{Success: true, Message: "Setup complete"})
}
