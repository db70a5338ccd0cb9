package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/Firebreather-heart/sensei/internal/identity"
	"github.com/Firebreather-heart/sensei/internal/vfs"
)

func (s *Server) handleCreateFile(w http.ResponseWriter, r *http.Request) {
	user := identity.GetUser(r.Context())

	var req struct {
		ID        string   `json:"id"`
		Name      string   `json:"name"`
		Directory bool     `json:"directory"`
		Parent    *string  `json:"parent"`
		Content   *string  `json:"content"`
		Children  []string `json:"children"`
		Public    bool     `json:"public"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	file := &vfs.File{
		ID:        req.ID,
		Root:      user.Username, // the caller cannot create into another namespace
		Directory: req.Directory,
		Parent:    req.Parent,
		Name:      req.Name,
		Content:   req.Content,
		Children:  req.Children,
		Public:    req.Public,
	}

	created, err := s.fs.Create(r.Context(), file)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.sendJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request, file *vfs.File) {
	s.sendJSON(w, http.StatusOK, file)
}

func (s *Server) handleGetPublicFile(w http.ResponseWriter, r *http.Request) {
	file, err := s.fs.Get(r.Context(), r.PathValue("id"))
	if err != nil || !file.Public {
		s.sendError(w, http.StatusNotFound, "public file not found")
		return
	}
	s.sendJSON(w, http.StatusOK, file)
}

func (s *Server) handleUpdateFile(w http.ResponseWriter, r *http.Request, file *vfs.File) {
	var req struct {
		Content *string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Content == nil {
		s.sendError(w, http.StatusBadRequest, "content is required to update the file")
		return
	}

	if err := s.fs.UpdateContent(r.Context(), file.ID, *req.Content); err != nil {
		s.writeError(w, err)
		return
	}
	updated, err := s.fs.Get(r.Context(), file.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, updated)
}

// handleDeleteFile is owner-only, not ACL-gated: edit rights do not allow
// deleting someone else's file.
func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	user := identity.GetUser(r.Context())

	file, err := s.fs.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if file.Root != user.Username {
		s.sendError(w, http.StatusForbidden, "you do not have permission to delete this file")
		return
	}

	if err := s.fs.Delete(r.Context(), file.ID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListOwn(w http.ResponseWriter, r *http.Request) {
	user := identity.GetUser(r.Context())

	files, err := s.fs.ListForOwner(r.Context(), user.Username)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if files == nil {
		files = []*vfs.File{}
	}
	s.sendJSON(w, http.StatusOK, files)
}

func (s *Server) handleListPublic(w http.ResponseWriter, r *http.Request) {
	limit := s.publicLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n < limit {
			limit = n
		}
	}

	files, err := s.fs.ListPublic(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if files == nil {
		files = []*vfs.File{}
	}
	s.sendJSON(w, http.StatusOK, files)
}

func (s *Server) handleListShared(w http.ResponseWriter, r *http.Request) {
	user := identity.GetUser(r.Context())

	files, err := s.fs.ListSharedWith(r.Context(), user.Username)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if files == nil {
		files = []*vfs.File{}
	}
	s.sendJSON(w, http.StatusOK, files)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		s.sendError(w, http.StatusBadRequest, "query parameter 'q' required")
		return
	}

	var actor string
	if user := identity.GetUser(r.Context()); user != nil {
		actor = user.Username
	}
	includeShared := boolParam(r, "include_shared", true)
	includePublic := boolParam(r, "include_public", true)

	results, err := s.fs.Search(r.Context(), query, actor, includeShared, includePublic)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if results == nil {
		results = []*vfs.File{}
	}
	s.sendJSON(w, http.StatusOK, results)
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	user := identity.GetUser(r.Context())

	tree, err := s.fs.BuildTree(r.Context(), user.Username)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, tree)
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request, file *vfs.File) {
	user := identity.GetUser(r.Context())

	var req struct {
		Username    string   `json:"username"`
		Permissions []string `json:"permissions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" {
		s.sendError(w, http.StatusBadRequest, "username required")
		return
	}

	if !s.sharing.ShareFile(r.Context(), user.Username, file.ID, req.Username, req.Permissions) {
		s.sendError(w, http.StatusBadRequest, "failed to share file; user may not exist")
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]string{
		"message": "file shared with " + req.Username,
	})
}

func (s *Server) handleShareMultiple(w http.ResponseWriter, r *http.Request, file *vfs.File) {
	user := identity.GetUser(r.Context())

	var req struct {
		Usernames   []string `json:"usernames"`
		Permissions []string `json:"permissions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Usernames) == 0 {
		s.sendError(w, http.StatusBadRequest, "usernames required")
		return
	}

	results := s.sharing.ShareWithMany(r.Context(), user.Username, file.ID, req.Usernames, req.Permissions)
	s.sendJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request, file *vfs.File) {
	user := identity.GetUser(r.Context())
	target := r.PathValue("username")

	if !s.sharing.RevokeAccess(r.Context(), user.Username, file.ID, target) {
		s.sendError(w, http.StatusBadRequest, "failed to revoke access")
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]string{
		"message": "access revoked for " + target,
	})
}

func (s *Server) handleTogglePublic(w http.ResponseWriter, r *http.Request, file *vfs.File) {
	user := identity.GetUser(r.Context())
	makePublic := boolParam(r, "make_public", false)

	var ok bool
	if makePublic {
		ok = s.sharing.MakePublic(r.Context(), user.Username, file.ID)
	} else {
		ok = s.sharing.MakePrivate(r.Context(), user.Username, file.ID)
	}
	if !ok {
		s.sendError(w, http.StatusBadRequest, "failed to update file visibility")
		return
	}

	visibility := "private"
	if makePublic {
		visibility = "public"
	}
	s.sendJSON(w, http.StatusOK, map[string]string{
		"message": "file is now " + visibility,
	})
}

func (s *Server) handlePermissions(w http.ResponseWriter, r *http.Request, file *vfs.File) {
	user := identity.GetUser(r.Context())
	s.sendJSON(w, http.StatusOK, map[string]any{
		"file_id":   file.ID,
		"owner":     file.Root,
		"is_public": file.Public,
		"can_view":  file.CanView,
		"can_edit":  file.CanEdit,
		"is_owner":  file.Root == user.Username,
	})
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request, file *vfs.File) {
	var req struct {
		NewParentID string `json:"new_parent_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.NewParentID == "" {
		s.sendError(w, http.StatusBadRequest, "new_parent_id required")
		return
	}

	if err := s.fs.Move(r.Context(), file.ID, req.NewParentID); err != nil {
		s.writeError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]string{"message": "file moved successfully"})
}

func boolParam(r *http.Request, name string, fallback bool) bool {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
