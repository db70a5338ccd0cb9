// Package api provides the HTTP server and handlers for Sensei.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Firebreather-heart/sensei/internal/identity"
	"github.com/Firebreather-heart/sensei/internal/logging"
	"github.com/Firebreather-heart/sensei/internal/metrics"
	"github.com/Firebreather-heart/sensei/internal/vfs"
)

// Server is the Sensei HTTP server.
type Server struct {
	ids         *identity.Service
	fs          *vfs.FileSystem
	acl         *vfs.ACL
	gate        *vfs.Gate
	sharing     *vfs.Sharing
	publicLimit int
}

// NewServer creates the HTTP server over its collaborators.
func NewServer(ids *identity.Service, fs *vfs.FileSystem, acl *vfs.ACL, gate *vfs.Gate, sharing *vfs.Sharing, publicLimit int) *Server {
	return &Server{
		ids:         ids,
		fs:          fs,
		acl:         acl,
		gate:        gate,
		sharing:     sharing,
		publicLimit: publicLimit,
	}
}

// Handler returns the HTTP handler with auth, logging and metrics middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Public endpoints (no auth required)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/v1/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/v1/auth/login", s.handleLogin)
	mux.HandleFunc("GET /api/v1/fs/files/public", s.handleListPublic)
	mux.HandleFunc("GET /api/v1/fs/files/public/{id}", s.handleGetPublicFile)

	// Search is reachable anonymously; it only sees public files then.
	mux.Handle("GET /api/v1/fs/search", s.ids.OptionalMiddleware(http.HandlerFunc(s.handleSearch)))

	// Protected endpoints
	protected := http.NewServeMux()

	protected.HandleFunc("GET /api/v1/auth/me", s.handleMe)
	protected.HandleFunc("PUT /api/v1/auth/me", s.handleUpdateMe)
	protected.HandleFunc("GET /api/v1/auth/users", s.handleListUsers)

	protected.HandleFunc("POST /api/v1/fs/files", s.handleCreateFile)
	protected.HandleFunc("GET /api/v1/fs/files/{id}", s.requirePermission(vfs.ActionView, s.handleGetFile))
	protected.HandleFunc("PUT /api/v1/fs/files/{id}", s.requirePermission(vfs.ActionEdit, s.handleUpdateFile))
	protected.HandleFunc("DELETE /api/v1/fs/files/{id}", s.handleDeleteFile)

	protected.HandleFunc("GET /api/v1/fs/user/files", s.handleListOwn)
	protected.HandleFunc("GET /api/v1/fs/user/tree", s.handleTree)
	protected.HandleFunc("GET /api/v1/fs/files/shared-with-me", s.handleListShared)

	protected.HandleFunc("POST /api/v1/fs/files/{id}/share", s.requirePermission(vfs.ActionEdit, s.handleShare))
	protected.HandleFunc("POST /api/v1/fs/files/{id}/share-multiple", s.requirePermission(vfs.ActionEdit, s.handleShareMultiple))
	protected.HandleFunc("DELETE /api/v1/fs/files/{id}/share/{username}", s.requirePermission(vfs.ActionEdit, s.handleRevoke))
	protected.HandleFunc("PUT /api/v1/fs/files/{id}/public", s.requirePermission(vfs.ActionEdit, s.handleTogglePublic))
	protected.HandleFunc("GET /api/v1/fs/files/{id}/permissions", s.requirePermission(vfs.ActionView, s.handlePermissions))
	protected.HandleFunc("PUT /api/v1/fs/files/{id}/move", s.requirePermission(vfs.ActionEdit, s.handleMove))

	mux.Handle("/api/v1/", s.ids.Middleware(protected))

	return metrics.Middleware(logging.Middleware(mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requirePermission wraps a file handler with the permission gate: it
// resolves the actor and file id from the request, authorizes the action
// and hands the loaded file to the wrapped handler.
func (s *Server) requirePermission(action vfs.Action, next func(http.ResponseWriter, *http.Request, *vfs.File)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fileID := r.PathValue("id")
		if fileID == "" {
			s.sendError(w, http.StatusBadRequest, "file id required")
			return
		}

		var actor string
		if user := identity.GetUser(r.Context()); user != nil {
			actor = user.Username
		}

		file, err := s.gate.Authorize(r.Context(), actor, fileID, action)
		if err != nil {
			s.writeError(w, err)
			return
		}
		next(w, r, file)
	}
}

func (s *Server) sendJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

func (s *Server) sendError(w http.ResponseWriter, code int, message string) {
	s.sendJSON(w, code, map[string]any{
		"error": message,
		"code":  code,
	})
}

// writeError maps domain errors onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var validationErr *vfs.ValidationError
	var idValidationErr *identity.ValidationError
	var conflictErr *identity.ConflictError

	switch {
	case errors.As(err, &validationErr):
		s.sendError(w, http.StatusBadRequest, validationErr.Error())
	case errors.As(err, &idValidationErr):
		s.sendError(w, http.StatusBadRequest, idValidationErr.Error())
	case errors.As(err, &conflictErr):
		s.sendJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "conflict",
			"fields": conflictErr.Fields,
			"code":   http.StatusBadRequest,
		})
	case errors.Is(err, vfs.ErrNotFound), errors.Is(err, identity.ErrNotFound):
		s.sendError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, vfs.ErrForbidden):
		s.sendError(w, http.StatusForbidden, "you don't have permission for this file")
	case errors.Is(err, vfs.ErrMissingActor):
		s.sendError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, identity.ErrUnauthenticated):
		s.sendError(w, http.StatusUnauthorized, "invalid email or password")
	default:
		s.sendError(w, http.StatusInternalServerError, err.Error())
	}
}
