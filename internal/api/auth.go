package api

import (
	"encoding/json"
	"net/http"
	"net/mail"
	"strings"

	"github.com/Firebreather-heart/sensei/internal/identity"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if len(req.Username) < 3 || len(req.Username) > 50 {
		s.sendError(w, http.StatusBadRequest, "username must be 3-50 characters")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid email address")
		return
	}
	if len(req.Password) < 8 {
		s.sendError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	user, err := s.ids.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.sendJSON(w, http.StatusCreated, user.Secure())
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		s.sendError(w, http.StatusBadRequest, "email and password required")
		return
	}

	token, err := s.ids.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, token)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user := identity.GetUser(r.Context())
	s.sendJSON(w, http.StatusOK, user.Secure())
}

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	user := identity.GetUser(r.Context())

	var patch identity.UserUpdate
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := s.ids.Update(r.Context(), user.ID, patch)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, updated.Secure())
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	user := identity.GetUser(r.Context())
	if user.Role != identity.RoleAdmin {
		s.sendError(w, http.StatusForbidden, "you do not have permission to view all users")
		return
	}

	users, err := s.ids.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if users == nil {
		users = []identity.SecureUser{}
	}
	s.sendJSON(w, http.StatusOK, users)
}
